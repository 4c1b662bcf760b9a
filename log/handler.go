// Package log provides structured logging (slog) adapted for the guest's WASM environment.
//
// Importing the package installs WasmLogHandler as the slog default. On wasip1 records are
// forwarded to the optional host import env.log_message; guests that never import this
// package keep the bare allocate/deallocate/run_e ABI.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strconv"

	wasmcontext "github.com/reglet-dev/runnable-sdk/internal/wasmcontext"
)

// WasmLogHandler implements slog.Handler to route logs through a host function.
type WasmLogHandler struct {
	attrs  []slog.Attr
	groups []string
	opts   handlerConfig
}

// HandlerOption configures the WasmLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	output    io.Writer
	level     slog.Level
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level will be filtered on the guest side.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithOutput sets where records go on builds that have no host to forward them to.
func WithOutput(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.output = w
	}
}

// NewHandler creates a new WasmLogHandler with the given options.
func NewHandler(opts ...HandlerOption) *WasmLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &WasmLogHandler{opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *WasmLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// WithAttrs returns a new WasmLogHandler that includes the given attributes.
func (h *WasmLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(attr))
	}
	return clone
}

// WithGroup returns a new WasmLogHandler with the given group name. Grouped keys are
// flattened with a "." separator since the wire format has no nesting.
func (h *WasmLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *WasmLogHandler) clone() *WasmLogHandler {
	return &WasmLogHandler{
		attrs:  slices.Clip(h.attrs),
		groups: slices.Clip(h.groups),
		opts:   h.opts,
	}
}

// qualify prefixes attr's key with the handler's open groups.
func (h *WasmLogHandler) qualify(attr slog.Attr) slog.Attr {
	for i := len(h.groups) - 1; i >= 0; i-- {
		attr.Key = h.groups[i] + "." + attr.Key
	}
	return attr
}

// buildMessage converts a record into its wire form.
func (h *WasmLogHandler) buildMessage(ctx context.Context, record slog.Record) LogMessageWire {
	if ctx == nil {
		ctx = wasmcontext.GetCurrentContext()
	} else if _, ok := wasmcontext.IdentFrom(ctx); !ok {
		ctx = wasmcontext.GetCurrentContext()
	}

	logMsg := LogMessageWire{
		Context:   wasmcontext.ContextToWire(ctx),
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}

	for _, attr := range h.attrs {
		logMsg.Attrs = appendAttr(logMsg.Attrs, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		logMsg.Attrs = appendAttr(logMsg.Attrs, "", h.qualify(attr))
		return true
	})

	if h.opts.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		logMsg.Attrs = append(logMsg.Attrs, LogAttrWire{
			Key:   slog.SourceKey,
			Type:  "string",
			Value: frame.File + ":" + strconv.Itoa(frame.Line),
		})
	}

	return logMsg
}

// init configures the default slog handler to use our WasmLogHandler.
func init() {
	slog.SetDefault(slog.New(NewHandler()))
}
