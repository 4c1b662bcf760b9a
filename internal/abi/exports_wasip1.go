//go:build wasip1

package abi

import (
	"log/slog"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
)

// allocate reserves memory in the WASM linear memory and returns a pointer.
// The host writes invocation input here before calling run_e.
// Traps the instance if the allocation would exceed the arena's limit.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	ptr, err := defaultArena.Allocate(size)
	if err != nil {
		panic(err.Error())
	}
	return ptr
}

// deallocate releases a region granted by allocate or exposed as an invocation payload.
// A region the arena does not recognise is a host contract violation; it is logged and
// the arena is left untouched.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	if err := defaultArena.Release(ptr, size); err != nil {
		slog.Error("abi: deallocate rejected", "region", entities.Region{Ptr: ptr, Size: size}.String(), "error", err)
	}
}
