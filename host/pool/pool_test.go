package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/runnable-sdk/host"
	"github.com/reglet-dev/runnable-sdk/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	run     func(ctx context.Context, input []byte) ([]byte, error)
	closed  atomic.Bool
	healthy atomic.Bool
}

func newFakeRunner(run func(ctx context.Context, input []byte) ([]byte, error)) *fakeRunner {
	r := &fakeRunner{run: run}
	r.healthy.Store(true)
	return r
}

func (r *fakeRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	return r.run(ctx, input)
}

func (r *fakeRunner) Healthy() bool { return r.healthy.Load() && !r.closed.Load() }

func (r *fakeRunner) Close(context.Context) error {
	r.closed.Store(true)
	return nil
}

// countingFactory records every runner it creates.
type countingFactory struct {
	make    func(n int) (Runner, error)
	runners []Runner
	mu      sync.Mutex
}

func (f *countingFactory) Instantiate(context.Context) (Runner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, err := f.make(len(f.runners))
	if err != nil {
		f.runners = append(f.runners, nil)
		return nil, err
	}
	f.runners = append(f.runners, r)
	return r, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runners)
}

func echoFactory() *countingFactory {
	return &countingFactory{make: func(int) (Runner, error) {
		return newFakeRunner(func(_ context.Context, in []byte) ([]byte, error) { return in, nil }), nil
	}}
}

func compile(t *testing.T, bin []byte) *host.Module {
	t.Helper()
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })

	mod, err := e.Compile(ctx, "guest", bin)
	require.NoError(t, err)
	return mod
}

func stop(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, p.Stop(ctx))
}

func TestPool_EchoOnWasm(t *testing.T) {
	p := New("echo", FromModule(compile(t, wasmtest.Echo())), WithSize(3))
	defer stop(t, p)
	require.NoError(t, p.Start())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := []byte(fmt.Sprintf("job-%d", i))
			out, err := p.Do(context.Background(), input)
			assert.NoError(t, err)
			assert.Equal(t, input, out)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 3, p.Size())
}

func TestPool_LazyStart(t *testing.T) {
	f := echoFactory()
	p := New("lazy", f, WithSize(2))
	defer stop(t, p)

	require.NoError(t, p.Start())
	assert.Equal(t, 0, p.Size())

	out, err := p.Do(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 2, f.count())
}

func TestPool_PreWarm(t *testing.T) {
	f := echoFactory()
	p := New("warm", f, WithSize(3), WithPreWarm(true))
	defer stop(t, p)

	require.NoError(t, p.Start())
	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 3, f.count())
}

func TestPool_Retries(t *testing.T) {
	t.Run("gives up", func(t *testing.T) {
		f := &countingFactory{make: func(int) (Runner, error) { return nil, errors.New("no memory") }}
		p := New("broken", f, WithRetries(2, 0))
		defer stop(t, p)

		_, err := p.Do(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Contains(t, err.Error(), "no memory")
		assert.Equal(t, 3, f.count())
	})

	t.Run("recovers", func(t *testing.T) {
		f := &countingFactory{make: func(n int) (Runner, error) {
			if n < 2 {
				return nil, errors.New("not yet")
			}
			return newFakeRunner(func(_ context.Context, in []byte) ([]byte, error) { return in, nil }), nil
		}}
		p := New("flaky", f, WithRetries(5, time.Millisecond))
		defer stop(t, p)

		out, err := p.Do(context.Background(), []byte("ok"))
		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), out)
		assert.Equal(t, 3, f.count())
	})
}

func TestPool_JobTimeout(t *testing.T) {
	mod := compile(t, wasmtest.Spin())
	var made atomic.Int32
	f := FactoryFunc(func(ctx context.Context) (Runner, error) {
		made.Add(1)
		return FromModule(mod).Instantiate(ctx)
	})

	p := New("spin", f, WithJobTimeout(50*time.Millisecond))
	defer stop(t, p)

	_, err := p.Do(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.ErrorIs(t, err, host.ErrInstanceBroken)

	// The interrupted instance is replaced before the next job.
	_, err = p.Do(context.Background(), []byte("y"))
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.GreaterOrEqual(t, made.Load(), int32(2))
}

func TestPool_ReplacesFaultedInstance(t *testing.T) {
	f := &countingFactory{make: func(int) (Runner, error) {
		var r *fakeRunner
		r = newFakeRunner(func(context.Context, []byte) ([]byte, error) {
			r.healthy.Store(false)
			return nil, host.ErrInstanceBroken
		})
		return r, nil
	}}
	p := New("trap", f)
	defer stop(t, p)

	for i := 0; i < 3; i++ {
		_, err := p.Do(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, host.ErrInstanceBroken)
	}
	// The result is delivered before the worker swaps its instance.
	assert.Eventually(t, func() bool { return f.count() == 4 }, 5*time.Second, time.Millisecond)

	// Every faulted instance was closed.
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runners[:3] {
		assert.True(t, r.(*fakeRunner).closed.Load())
	}
}

func TestPool_CallerContext(t *testing.T) {
	p := New("echo", echoFactory())
	defer stop(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Do(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_Stop(t *testing.T) {
	f := echoFactory()
	p := New("echo", f, WithSize(2), WithPreWarm(true))
	require.NoError(t, p.Start())

	stop(t, p)
	stop(t, p)

	_, err := p.Do(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrPoolStopped)
	assert.Equal(t, 0, p.Size())

	for _, r := range f.runners {
		assert.True(t, r.(*fakeRunner).closed.Load())
	}
}

func TestResult(t *testing.T) {
	p := New("echo", echoFactory())
	defer stop(t, p)

	res := p.Schedule(context.Background(), []byte("later"))
	assert.NotEqual(t, uuid.Nil, res.ID())

	got := make(chan []byte, 1)
	res.ThenDo(func(data []byte, err error) {
		assert.NoError(t, err)
		got <- data
	})

	select {
	case data := <-got:
		assert.Equal(t, []byte("later"), data)
	case <-time.After(5 * time.Second):
		t.Fatal("ThenDo was never called")
	}

	// A result resolves once.
	res.resolve(nil, errors.New("late"))
	data, err := res.Then()
	assert.NoError(t, err)
	assert.Equal(t, []byte("later"), data)
}
