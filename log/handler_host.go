//go:build !wasip1

package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Handle writes the record's wire form as a JSON line to the configured output.
// Native builds (host tests, tooling) have no host import to forward to.
func (h *WasmLogHandler) Handle(ctx context.Context, record slog.Record) error {
	data, err := json.Marshal(h.buildMessage(ctx, record))
	if err != nil {
		return fmt.Errorf("failed to marshal log message: %w", err)
	}
	_, err = fmt.Fprintf(h.opts.output, "%s\n", data)
	return err
}
