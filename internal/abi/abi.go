// Package abi provides memory management for the WASM linear memory.
//
// An Arena tracks every region the guest grants to the host: buffers reserved through the
// exported allocate function, and payloads exposed to the host at the end of an invocation.
// Keeping a reference to each slice prevents the Go GC from collecting it, effectively
// "pinning" the memory until the host explicitly releases it.
//
// All conversions between raw (pointer, length) pairs and owned byte slices go through
// Arena.Reconstruct and Arena.Expose. Outside this package the SDK only handles
// entities.Region values and owned slices.
package abi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
)

// DefaultMaxTotalAllocations is the default ceiling on memory pinned by an Arena.
// This prevents unbounded memory growth in WASM linear memory.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// PtrHighBits is the shift applied to the pointer half of a packed pointer/length pair.
const PtrHighBits = 32

var (
	// ErrNullRegion is returned for a null pointer paired with a non-zero length.
	ErrNullRegion = errors.New("abi: null pointer with non-zero length")

	// ErrUnknownRegion is returned when a pointer does not belong to a region the arena granted.
	ErrUnknownRegion = errors.New("abi: region not granted by this arena")

	// ErrSizeMismatch is returned when a release names a different size than was granted.
	ErrSizeMismatch = errors.New("abi: size does not match granted region")

	// ErrOutOfBounds is returned when a range runs past the end of its granted region.
	ErrOutOfBounds = errors.New("abi: range exceeds granted region")

	// ErrLimitExceeded is returned when an allocation would exceed the arena's ceiling.
	ErrLimitExceeded = errors.New("abi: memory allocation limit exceeded")
)

// Arena tracks regions of linear memory shared with the host.
// It is safe for concurrent use, although the sandbox model only ever drives it from one
// invocation at a time.
type Arena struct {
	addr           addresser
	regions        map[uint32][]byte // ptr -> slice reference
	maxTotal       int
	totalAllocated int // Total bytes currently granted
	mu             sync.Mutex
}

// Option configures an Arena.
type Option func(*Arena)

// WithMaxTotalAllocations sets the ceiling on bytes pinned at once.
// Zero or negative limits are ignored.
func WithMaxTotalAllocations(limit int) Option {
	return func(a *Arena) {
		if limit > 0 {
			a.maxTotal = limit
		}
	}
}

// NewArena creates an empty Arena.
func NewArena(opts ...Option) *Arena {
	a := &Arena{
		addr:     newAddresser(),
		regions:  make(map[uint32][]byte),
		maxTotal: DefaultMaxTotalAllocations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate reserves size bytes and returns the region's address. Every size, including
// zero, yields a distinct non-zero address that stays valid until Release.
func (a *Arena) Allocate(size uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocateLocked(size)
}

func (a *Arena) allocateLocked(size uint32) (uint32, error) {
	if a.totalAllocated+int(size) > a.maxTotal {
		return 0, fmt.Errorf("%w (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			ErrLimitExceeded, size, a.totalAllocated, a.maxTotal)
	}

	// A zero-length region still needs its own backing byte so its address is unique.
	backing := make([]byte, size, max(size, 1))
	ptr := a.addr.addressOf(backing)

	a.regions[ptr] = backing // PIN THE MEMORY: Store the slice to prevent GC
	a.totalAllocated += int(size)

	return ptr, nil
}

// Release unpins a region previously granted by Allocate or Expose. The pointer and size
// must match the grant exactly; a violation is reported and leaves the arena unchanged.
// Releasing the empty (0, 0) region is a no-op.
func (a *Arena) Release(ptr, size uint32) error {
	if ptr == 0 && size == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stored, ok := a.regions[ptr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, entities.Region{Ptr: ptr, Size: size})
	}
	if len(stored) != int(size) {
		return fmt.Errorf("%w: %s was granted %d bytes", ErrSizeMismatch, entities.Region{Ptr: ptr, Size: size}, len(stored))
	}

	delete(a.regions, ptr)
	a.totalAllocated -= len(stored)
	return nil
}

// Reconstruct returns an owned copy of exactly size bytes starting at ptr. The range must
// lie inside a region this arena granted. A zero size yields an empty, non-nil slice
// whatever the pointer.
func (a *Arena) Reconstruct(ptr, size uint32) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if ptr == 0 {
		return nil, fmt.Errorf("%w (%d)", ErrNullRegion, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	src, err := a.viewLocked(ptr, size)
	if err != nil {
		return nil, err
	}

	data := make([]byte, size) // Create a new slice to return a copy
	copy(data, src)
	return data, nil
}

// Expose copies data into a newly granted region and returns it. The copy is pinned until
// the host releases the region; the caller keeps ownership of data. Empty data is exposed
// as the zero Region and pins nothing.
func (a *Arena) Expose(data []byte) (entities.Region, error) {
	if len(data) == 0 {
		return entities.Region{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	size := uint32(len(data)) //nolint:gosec // G115: wasm32 buffers never exceed 4 GiB
	ptr, err := a.allocateLocked(size)
	if err != nil {
		return entities.Region{}, err
	}
	copy(a.regions[ptr], data)

	return entities.Region{Ptr: ptr, Size: size}, nil
}

// Write copies data into granted memory starting at ptr, the way a host fills an input
// region. It is bounds checked against the grant.
func (a *Arena) Write(ptr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if ptr == 0 {
		return fmt.Errorf("%w (%d)", ErrNullRegion, len(data))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	dst, err := a.viewLocked(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by the grant
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// viewLocked returns the live slice for [ptr, ptr+size) without copying.
func (a *Arena) viewLocked(ptr, size uint32) ([]byte, error) {
	if buf, ok := a.regions[ptr]; ok {
		if int(size) > len(buf) {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrOutOfBounds, entities.Region{Ptr: ptr, Size: size}, len(buf))
		}
		return buf[:size], nil
	}

	// Interior pointers are legal as long as the whole range stays inside one grant.
	for start, buf := range a.regions {
		granted := entities.Region{Ptr: start, Size: uint32(len(buf))} //nolint:gosec // G115: grant sizes are uint32
		if granted.Covers(ptr, size) {
			off := ptr - start
			return buf[off : off+size], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, entities.Region{Ptr: ptr, Size: size})
}

// Stats returns the number of live grants and the bytes they hold.
func (a *Arena) Stats() (allocCount, totalBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.regions), a.totalAllocated
}

// Reset frees every region the arena tracks.
// This is typically called during module shutdown or when recovering a trapped instance.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.regions)
	a.totalAllocated = 0
}

// defaultArena backs the exported allocate/deallocate functions.
var defaultArena = NewArena()

// Default returns the process-wide Arena behind the allocate/deallocate exports.
func Default() *Arena {
	return defaultArena
}

// Configure applies options to the process-wide Arena.
func Configure(opts ...Option) {
	defaultArena.mu.Lock()
	defer defaultArena.mu.Unlock()

	for _, opt := range opts {
		opt(defaultArena)
	}
}

// Stats reports the process-wide Arena's live grants.
func Stats() (allocCount, totalBytes int) {
	return defaultArena.Stats()
}

// FreeAllTracked frees all memory currently tracked by the process-wide Arena.
func FreeAllTracked() {
	defaultArena.Reset()
}

// PtrFromBytes exposes data through the process-wide Arena and returns the packed
// pointer and length. This is used when the guest sends data to a host import that takes
// a single packed i64; the host releases the region once it has read it.
func PtrFromBytes(data []byte) (uint64, error) {
	region, err := defaultArena.Expose(data)
	if err != nil {
		return 0, err
	}
	return PackPtrLen(region.Ptr, region.Size), nil
}

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed)             //nolint:gosec // G115: Packed format stores 32-bit values
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}
