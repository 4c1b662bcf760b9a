//go:build wasip1

package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/runnable-sdk/internal/abi"
)

// Host function for logging messages; it takes a packed pointer/length of the JSON record.
// The host reads the record synchronously, so the guest releases it when the call returns.
//
//go:wasmimport env log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(messagePacked uint64)

// Handle serializes a slog.Record and sends it to the host via a host function.
func (h *WasmLogHandler) Handle(ctx context.Context, record slog.Record) error {
	requestBytes, err := json.Marshal(h.buildMessage(ctx, record))
	if err != nil {
		// Fallback to stderr if marshaling fails.
		fmt.Fprintf(h.opts.output, "sdk: failed to marshal log message for host: %v, original: %s\n", err, record.Message)
		return nil
	}

	packed, err := abi.PtrFromBytes(requestBytes)
	if err != nil {
		fmt.Fprintf(h.opts.output, "sdk: failed to expose log message: %v, original: %s\n", err, record.Message)
		return nil
	}

	host_log_message(packed)

	ptr, length := abi.UnpackPtrLen(packed)
	_ = abi.Default().Release(ptr, length)
	return nil
}
