//go:build wasip1

package abi

import "unsafe"

// linearAddresser reports the real linear-memory offset of a slice's backing array.
// The Go GC never moves heap objects on wasm, so an offset stays valid while pinned.
type linearAddresser struct{}

func newAddresser() addresser {
	return linearAddresser{}
}

func (linearAddresser) addressOf(buf []byte) uint32 {
	// WASM linear memory: pointer -> uint32 offset conversion is safe and necessary
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}
