//go:build wasip1

package runnable

import (
	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/reglet-dev/runnable-sdk/internal/abi"
)

// Host callbacks, supplied by the host's "env" module.
//
//go:wasmimport env return_result
//nolint:revive // intentional snake_case to match WASM import convention
func return_result(ptr uint32, size uint32, ident int32)

//go:wasmimport env return_error
//nolint:revive // intentional snake_case to match WASM import convention
func return_error(code int32, ptr uint32, size uint32, ident int32)

// importedCallbacks implements ports.HostCallbacks with the host imports.
type importedCallbacks struct{}

func (importedCallbacks) ReturnResult(payload entities.Region, ident int32) {
	return_result(payload.Ptr, payload.Size, ident)
}

func (importedCallbacks) ReturnError(code int32, payload entities.Region, ident int32) {
	return_error(code, payload.Ptr, payload.Size, ident)
}

var dispatcher = NewDispatcher(defaultSlot, abi.Default(), importedCallbacks{})

// run_e is called by the host once per invocation.
//
//go:wasmexport run_e
//nolint:revive // intentional snake_case to match WASM export convention
func run_e(ptr uint32, size uint32, ident int32) {
	dispatcher.Dispatch(ptr, size, ident)
}
