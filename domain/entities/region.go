package entities

import "fmt"

// Region is a contiguous byte range in the guest's linear memory.
// The zero Region denotes an empty payload.
type Region struct {
	Ptr  uint32 `json:"ptr"`
	Size uint32 `json:"size"`
}

// IsZero reports whether the region is the empty (0, 0) region.
func (r Region) IsZero() bool {
	return r.Ptr == 0 && r.Size == 0
}

// End returns the first address past the region. It is computed in 64 bits so a region
// ending at the top of the 32-bit address space does not wrap.
func (r Region) End() uint64 {
	return uint64(r.Ptr) + uint64(r.Size)
}

// Covers reports whether [ptr, ptr+size) lies entirely inside r.
func (r Region) Covers(ptr, size uint32) bool {
	if ptr < r.Ptr {
		return false
	}
	return uint64(ptr)+uint64(size) <= r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%x, +%d)", r.Ptr, r.Size)
}
