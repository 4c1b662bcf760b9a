//go:build !wasip1

package abi

// simulatedBase keeps simulated addresses clear of the null page.
const simulatedBase = 0x10000

// simulatedAddresser hands out monotonically increasing, 8-byte aligned addresses so the
// arena can be exercised on a native build. Addresses are never reused.
type simulatedAddresser struct {
	next uint32
}

func newAddresser() addresser {
	return &simulatedAddresser{next: simulatedBase}
}

func (s *simulatedAddresser) addressOf(buf []byte) uint32 {
	ptr := s.next
	span := (uint32(cap(buf)) + 7) &^ 7 //nolint:gosec // G115: wasm32 buffers never exceed 4 GiB
	s.next += span
	return ptr
}
