package host

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	domainerrors "github.com/reglet-dev/runnable-sdk/domain/errors"
	adapter "github.com/reglet-dev/runnable-sdk/infrastructure/wazero"
	"github.com/reglet-dev/runnable-sdk/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	ctx := context.Background()
	e, err := NewExecutor(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func load(t *testing.T, e *Executor, name string, bin []byte) *Instance {
	t.Helper()
	inst, err := e.LoadRunnable(context.Background(), name, bin)
	require.NoError(t, err)
	return inst
}

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := NewExecutor(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, e)
	if e != nil {
		err := e.Close(ctx)
		assert.NoError(t, err)
	}
}

func TestInstance_EchoHello(t *testing.T) {
	inst := load(t, newExecutor(t), "echo", wasmtest.Echo())

	out, err := inst.Run(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestInstance_EchoRoundTrip(t *testing.T) {
	inst := load(t, newExecutor(t), "echo", wasmtest.Echo())
	ctx := context.Background()

	out, err := inst.Run(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	for size := 1; size <= 4096; size *= 2 {
		input := make([]byte, size)
		_, _ = rand.Read(input)

		out, err := inst.Run(ctx, input)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, input, out, "size %d", size)
	}
}

func TestInstance_Failures(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	t.Run("run error", func(t *testing.T) {
		inst := load(t, e, "fail-500", wasmtest.Fail(500, "x"))
		_, err := inst.Run(ctx, []byte("in"))

		var runErr *domainerrors.RunError
		require.True(t, errors.As(err, &runErr))
		assert.Equal(t, int32(500), runErr.Code())
		assert.Equal(t, "x", runErr.Message)
		assert.True(t, inst.Healthy())
	})

	t.Run("host error", func(t *testing.T) {
		inst := load(t, e, "fail-host", wasmtest.Fail(domainerrors.HostErrorCode, "y"))
		_, err := inst.Run(ctx, []byte("in"))

		var hostErr *domainerrors.HostError
		require.True(t, errors.As(err, &hostErr))
		assert.Equal(t, "y", hostErr.Message)
	})

	t.Run("empty message", func(t *testing.T) {
		inst := load(t, e, "fail-default", wasmtest.Fail(domainerrors.DefaultRunCode, ""))
		_, err := inst.Run(ctx, nil)
		assert.Equal(t, domainerrors.DefaultRunCode, domainerrors.CodeOf(err))
	})
}

func TestInstance_MisbehavingGuests(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		bin     []byte
		wantErr error
	}{
		{name: "wrong ident", bin: wasmtest.WrongIdent(), wantErr: ErrIdentMismatch},
		{name: "silent", bin: wasmtest.Silent(), wantErr: ErrNoCallback},
		{name: "double callback", bin: wasmtest.DoubleCallback(), wantErr: ErrDuplicateCallback},
		{name: "payload outside memory", bin: wasmtest.OutOfBounds(), wantErr: adapter.ErrGuestMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := load(t, e, tt.name, tt.bin)

			_, err := inst.Run(ctx, []byte("abc"))
			assert.ErrorIs(t, err, tt.wantErr)
			// The guest misbehaved but did not fault; the instance stays usable.
			assert.True(t, inst.Healthy())
			_, err = inst.Run(ctx, []byte("abc"))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInstance_TrapBreaksInstance(t *testing.T) {
	inst := load(t, newExecutor(t), "trap", wasmtest.Trap())
	ctx := context.Background()

	_, err := inst.Run(ctx, []byte("boom"))
	require.ErrorIs(t, err, ErrInstanceBroken)
	assert.False(t, inst.Healthy())

	_, err = inst.Run(ctx, []byte("again"))
	assert.ErrorIs(t, err, ErrInstanceBroken)
}

func TestInstance_ContextDeadline(t *testing.T) {
	inst := load(t, newExecutor(t), "spin", wasmtest.Spin())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := inst.Run(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrInstanceBroken)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInstance_PayloadLimit(t *testing.T) {
	inst := load(t, newExecutor(t, WithMaxPayloadSize(4)), "echo", wasmtest.Echo())
	ctx := context.Background()

	out, err := inst.Run(ctx, []byte("1234"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), out)

	_, err = inst.Run(ctx, []byte("12345"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.True(t, inst.Healthy())
}

func TestInstance_Closed(t *testing.T) {
	inst := load(t, newExecutor(t), "echo", wasmtest.Echo())
	ctx := context.Background()

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))

	_, err := inst.Run(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrInstanceClosed)
}

func TestInstance_ConcurrentCallsAreSerialised(t *testing.T) {
	inst := load(t, newExecutor(t), "echo", wasmtest.Echo())
	ctx := context.Background()

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			input := []byte{byte(n), byte(n + 1), byte(n + 2)}
			out, err := inst.Run(ctx, input)
			assert.NoError(t, err)
			assert.Equal(t, input, out)
		}(n)
	}
	wg.Wait()
}

func TestInstance_IdentsAreFresh(t *testing.T) {
	inst := load(t, newExecutor(t), "echo", wasmtest.Echo())

	inst.mu.Lock()
	first := inst.nextIdent()
	second := inst.nextIdent()
	inst.lastIdent = 1<<31 - 1
	wrapped := inst.nextIdent()
	inst.mu.Unlock()

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(1), wrapped)
}

func TestExecutor_Compile(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	_, err := e.Compile(ctx, "no-run-e", wasmtest.WithoutRunE())
	assert.ErrorIs(t, err, ErrMissingExport)

	_, err = e.Compile(ctx, "garbage", []byte("not wasm"))
	assert.Error(t, err)

	mod, err := e.Compile(ctx, "echo", wasmtest.Echo())
	require.NoError(t, err)
	assert.Equal(t, "echo", mod.Name())

	// Instances of one module are isolated from each other.
	a, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	b, err := mod.Instantiate(ctx)
	require.NoError(t, err)

	outA, err := a.Run(ctx, []byte("a"))
	require.NoError(t, err)
	outB, err := b.Run(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), outA)
	assert.Equal(t, []byte("b"), outB)
}

func TestExecutor_GuestLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newExecutor(t, WithLogger(zap.New(core)))

	record := `{"level":"WARN","message":"from guest","context":{"ident":1,"in_call":true},"attrs":[{"key":"k","type":"string","value":"v"}]}`
	inst := load(t, e, "logger", wasmtest.LogThenEcho(record))

	out, err := inst.Run(context.Background(), []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)

	entries := logs.FilterMessage("from guest").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "logger", fields["runnable"])
	assert.Equal(t, int32(1), fields["ident"])
	assert.Equal(t, "v", fields["k"])
}

func TestExecutor_GuestLogFunc(t *testing.T) {
	var got []adapter.GuestLog
	e := newExecutor(t, WithGuestLogFunc(func(_ context.Context, _ string, rec adapter.GuestLog) {
		got = append(got, rec)
	}))

	inst := load(t, e, "logger", wasmtest.LogThenEcho(`{"level":"INFO","message":"hi"}`))
	_, err := inst.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Message)
}
