package wazero

import (
	"context"
	"testing"
	"time"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/reglet-dev/runnable-sdk/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// instantiate registers the callbacks in a fresh runtime and instantiates guest in it.
func instantiate(t *testing.T, guest []byte, opts ...AdapterOption) api.Module {
	t.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	require.NoError(t, RegisterWithRuntime(ctx, rt, opts...))
	mod, err := rt.InstantiateWithConfig(ctx, guest, wazero.NewModuleConfig().WithName("guest").WithStartFunctions())
	require.NoError(t, err)
	return mod
}

func collect(got *[]Callback) Sink {
	return SinkFunc(func(_ context.Context, cb Callback) {
		*got = append(*got, cb)
	})
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()

	assert.Equal(t, "env", cfg.ModuleName)
	assert.Equal(t, DefaultMaxPayloadSize, cfg.MaxPayloadSize)
	assert.NotNil(t, cfg.Logger)
	assert.Nil(t, cfg.LogFunc)
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	logger := zap.NewExample()

	WithModuleName("custom_module")(&cfg)
	WithMaxPayloadSize(2048)(&cfg)
	WithLogger(logger)(&cfg)
	WithLogger(nil)(&cfg)
	WithCustomHandler(CustomHandler{Name: "test_handler"})(&cfg)

	assert.Equal(t, "custom_module", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxPayloadSize)
	assert.Same(t, logger, cfg.Logger)
	require.Len(t, cfg.CustomHandlers, 1)
	assert.Equal(t, "test_handler", cfg.CustomHandlers[0].Name)
}

func TestReturnError_DeliversToSink(t *testing.T) {
	mod := instantiate(t, wasmtest.Fail(404, "missing"))

	var got []Callback
	ctx := WithSink(context.Background(), collect(&got))
	_, err := mod.ExportedFunction("run_e").Call(ctx, 0, 0, api.EncodeI32(9))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, int32(404), got[0].Code)
	assert.Equal(t, int32(9), got[0].Ident)
	assert.Equal(t, []byte("missing"), got[0].Payload)
	assert.Equal(t, entities.Region{Ptr: 16, Size: 7}, got[0].Region)
}

func TestReturnResult_EmptyPayload(t *testing.T) {
	mod := instantiate(t, wasmtest.Echo())

	var got []Callback
	ctx := WithSink(context.Background(), collect(&got))
	_, err := mod.ExportedFunction("run_e").Call(ctx, 0, 0, api.EncodeI32(1))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, entities.CodeSuccess, got[0].Code)
	assert.NotNil(t, got[0].Payload)
	assert.Empty(t, got[0].Payload)
}

func TestCallback_WithoutSinkIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mod := instantiate(t, wasmtest.Fail(500, "x"), WithLogger(zap.New(core)))

	_, err := mod.ExportedFunction("run_e").Call(context.Background(), 0, 0, api.EncodeI32(3))
	require.NoError(t, err)

	entries := logs.FilterMessage("wazero: callback outside of an invocation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "guest", entries[0].ContextMap()["runnable"])
}

func TestCallback_PayloadLimit(t *testing.T) {
	mod := instantiate(t, wasmtest.Fail(500, "too long"), WithMaxPayloadSize(4))

	var got []Callback
	ctx := WithSink(context.Background(), collect(&got))
	_, err := mod.ExportedFunction("run_e").Call(ctx, 0, 0, api.EncodeI32(1))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, ErrPayloadTooLarge)
	assert.Nil(t, got[0].Payload)
}

func TestReadRegion(t *testing.T) {
	b := wasmtest.NewBuilder(1)
	b.Data(8, []byte("abcdef"))
	mod := instantiate(t, b.Bytes())

	data, err := readRegion(mod, entities.Region{Ptr: 8, Size: 3}, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data, err = readRegion(mod, entities.Region{Ptr: 0xFFFF_0000, Size: 0}, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, data)

	_, err = readRegion(mod, entities.Region{Ptr: 65530, Size: 16}, 1024)
	assert.ErrorIs(t, err, ErrGuestMemory)

	_, err = readRegion(mod, entities.Region{Ptr: 8, Size: 6}, 5)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestLogMessage_ForwardsRecords(t *testing.T) {
	record := `{"timestamp":"2026-01-02T03:04:05Z","level":"WARN","message":"hi","attrs":[{"key":"k","type":"string","value":"v"}],"context":{"ident":5,"in_call":true}}`

	var runnable string
	var recs []GuestLog
	mod := instantiate(t, wasmtest.LogThenEcho(record), WithLogFunc(func(_ context.Context, name string, rec GuestLog) {
		runnable = name
		recs = append(recs, rec)
	}))

	ctx := WithRunnableName(WithSink(context.Background(), SinkFunc(func(context.Context, Callback) {})), "logger")
	_, err := mod.ExportedFunction("run_e").Call(ctx, 0, 0, api.EncodeI32(5))
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, "logger", runnable)
	assert.Equal(t, "hi", recs[0].Message)
	assert.Equal(t, int32(5), recs[0].Context.Ident)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), recs[0].Timestamp)
}

func TestGuestLog_ZapLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"DEBUG", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"WARN+2", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"DEBUG-4", zapcore.DebugLevel},
		{"panic", zapcore.ErrorLevel},
		{"fatal", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"chatty", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, GuestLog{Level: tt.level}.ZapLevel())
		})
	}
}

func TestZapLogFunc(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fn := ZapLogFunc(zap.New(core))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fn(context.Background(), "greet", GuestLog{
		Timestamp: ts,
		Level:     "ERROR",
		Message:   "boom",
		Attrs:     []GuestLogAttr{{Key: "n", Type: "int64", Value: "3"}},
		Context:   GuestLogContext{Ident: 2, InCall: true},
	})
	fn(context.Background(), "greet", GuestLog{Level: "INFO", Message: "idle"})

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, ts, entries[0].Time)
	assert.Equal(t, map[string]any{"runnable": "greet", "ident": int32(2), "n": "3"}, entries[0].ContextMap())

	assert.NotContains(t, entries[1].ContextMap(), "ident")
}

func TestParseGuestLog_Invalid(t *testing.T) {
	_, err := ParseGuestLog([]byte("not json"))
	assert.Error(t, err)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	_, ok := SinkFromContext(ctx)
	assert.False(t, ok)
	_, ok = RunnableNameFromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, "", GetRunnableName(ctx, nil))

	var delivered int
	ctx = WithSink(ctx, SinkFunc(func(context.Context, Callback) { delivered++ }))
	sink, ok := SinkFromContext(ctx)
	require.True(t, ok)
	sink.Deliver(ctx, Callback{})
	assert.Equal(t, 1, delivered)

	ctx = WithRunnableName(ctx, "greet")
	assert.Equal(t, "greet", GetRunnableName(ctx, nil))
}
