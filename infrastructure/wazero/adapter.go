package wazero

import (
	"context"
	"errors"
	"fmt"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

const (
	// DefaultModuleName is the import module guests resolve the callbacks from.
	DefaultModuleName = "env"

	// DefaultMaxPayloadSize limits how much guest memory a single callback may hand over.
	DefaultMaxPayloadSize uint32 = 16 * 1024 * 1024 // 16 MB
)

var (
	// ErrPayloadTooLarge is reported when a callback names a region above the configured limit.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

	// ErrGuestMemory is reported when a callback names a region outside guest memory.
	ErrGuestMemory = errors.New("region outside guest memory")
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives adapter diagnostics. Default is a no-op logger.
	Logger *zap.Logger

	// LogFunc consumes guest log_message records. Default writes them to Logger.
	LogFunc LogFunc

	// ModuleName is the host module name (default: "env").
	ModuleName string

	// CustomHandlers allows adding additional host functions to the module.
	CustomHandlers []CustomHandler

	// MaxPayloadSize limits the size of payloads read from guest memory.
	// Default is 16MB.
	MaxPayloadSize uint32
}

// CustomHandler represents an additional host function exported next to the callbacks.
type CustomHandler struct {
	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// Name is the exported function name.
	Name string

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "env").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxPayloadSize sets the maximum payload size read from guest memory.
func WithMaxPayloadSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxPayloadSize = size
	}
}

// WithLogger sets the logger for adapter diagnostics and, unless WithLogFunc is given,
// for guest log records.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithLogFunc routes guest log records to fn.
func WithLogFunc(fn LogFunc) AdapterOption {
	return func(c *AdapterConfig) {
		c.LogFunc = fn
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxPayloadSize: DefaultMaxPayloadSize,
		Logger:         zap.NewNop(),
	}
}

// RegisterWithRuntime instantiates the callback host module in runtime.
//
// Each callback is wrapped to:
//   - Bounds check the region against MaxPayloadSize and guest memory
//   - Copy the payload out of guest memory
//   - Deliver it to the Sink found in the call's context
//
// A callback made outside a run_e call (no Sink in context) is logged and dropped.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.LogFunc == nil {
		cfg.LogFunc = ZapLogFunc(cfg.Logger)
	}

	i32 := api.ValueTypeI32
	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			region := entities.Region{Ptr: api.DecodeU32(stack[0]), Size: api.DecodeU32(stack[1])}
			handleCallback(ctx, mod, &cfg, entities.CodeSuccess, region, api.DecodeI32(stack[2]))
		}), []api.ValueType{i32, i32, i32}, []api.ValueType{}).
		WithParameterNames("ptr", "size", "ident").
		Export("return_result")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			region := entities.Region{Ptr: api.DecodeU32(stack[1]), Size: api.DecodeU32(stack[2])}
			handleCallback(ctx, mod, &cfg, api.DecodeI32(stack[0]), region, api.DecodeI32(stack[3]))
		}), []api.ValueType{i32, i32, i32, i32}, []api.ValueType{}).
		WithParameterNames("code", "ptr", "size", "ident").
		Export("return_error")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handleLogMessage(ctx, mod, &cfg, stack[0])
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		WithParameterNames("packed").
		Export("log_message")

	// Register any custom handlers
	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	// Instantiate the host module
	_, err := builder.Instantiate(ctx)
	return err
}

// handleCallback reads the payload named by a return_result/return_error call and
// delivers it to the call's sink.
func handleCallback(ctx context.Context, mod api.Module, cfg *AdapterConfig, code int32, region entities.Region, ident int32) {
	cb := Callback{Code: code, Region: region, Ident: ident}
	cb.Payload, cb.Err = readRegion(mod, region, cfg.MaxPayloadSize)

	sink, ok := SinkFromContext(ctx)
	if !ok {
		cfg.Logger.Warn("wazero: callback outside of an invocation",
			zap.String("runnable", GetRunnableName(ctx, mod)),
			zap.Int32("ident", ident),
			zap.Int32("code", code))
		return
	}
	if cb.Err != nil {
		cfg.Logger.Error("wazero: failed to read callback payload",
			zap.String("runnable", GetRunnableName(ctx, mod)),
			zap.Stringer("region", region),
			zap.Error(cb.Err))
	}
	sink.Deliver(ctx, cb)
}

// handleLogMessage decodes a guest log record. The guest owns the region and releases it
// once the call returns.
func handleLogMessage(ctx context.Context, mod api.Module, cfg *AdapterConfig, packed uint64) {
	region := entities.Region{Ptr: uint32(packed >> 32), Size: uint32(packed)} //nolint:gosec // G115: Packed format stores 32-bit values
	data, err := readRegion(mod, region, cfg.MaxPayloadSize)
	if err != nil {
		cfg.Logger.Warn("wazero: dropped guest log record", zap.Stringer("region", region), zap.Error(err))
		return
	}

	rec, err := ParseGuestLog(data)
	if err != nil {
		cfg.Logger.Info("wazero: guest log (raw)",
			zap.String("runnable", GetRunnableName(ctx, mod)),
			zap.ByteString("payload", data))
		return
	}
	cfg.LogFunc(ctx, GetRunnableName(ctx, mod), rec)
}

// readRegion copies a region out of guest memory. The zero-length region reads as empty
// whatever its pointer.
func readRegion(mod api.Module, region entities.Region, limit uint32) ([]byte, error) {
	if region.Size == 0 {
		return []byte{}, nil
	}
	if region.Size > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, region.Size, limit)
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, fmt.Errorf("%w: module exports no memory", ErrGuestMemory)
	}
	view, ok := mem.Read(region.Ptr, region.Size)
	if !ok {
		return nil, fmt.Errorf("%w: %s (memory is %d bytes)", ErrGuestMemory, region, mem.Size())
	}
	// The view aliases guest memory, which the guest may reuse once the region is released.
	data := make([]byte, len(view))
	copy(data, view)
	return data, nil
}
