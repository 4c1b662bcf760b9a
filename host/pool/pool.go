package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/runnable-sdk/host"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrPoolStopped is returned for jobs scheduled on, or still queued in, a stopped pool.
	ErrPoolStopped = errors.New("pool is stopped")

	// ErrJobTimeout is the cause of a job interrupted by the pool's job timeout.
	ErrJobTimeout = errors.New("job timeout")
)

// Runner is a guest instance as the pool sees it. *host.Instance implements it.
type Runner interface {
	Run(ctx context.Context, input []byte) ([]byte, error)
	Healthy() bool
	Close(ctx context.Context) error
}

// Factory creates the instance a new worker runs jobs on.
type Factory interface {
	Instantiate(ctx context.Context) (Runner, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Runner, error)

// Instantiate calls f(ctx).
func (f FactoryFunc) Instantiate(ctx context.Context) (Runner, error) {
	return f(ctx)
}

// FromModule returns a Factory creating fresh instances of a compiled guest.
func FromModule(m *host.Module) Factory {
	return FactoryFunc(func(ctx context.Context) (Runner, error) {
		inst, err := m.Instantiate(ctx)
		if err != nil {
			return nil, err
		}
		return inst, nil
	})
}

type job struct {
	ctx    context.Context
	result *Result
	input  []byte
}

// Pool runs jobs for one Runnable on up to Size workers.
type Pool struct {
	factory Factory
	ctx     context.Context
	logger  *zap.Logger
	cancel  context.CancelFunc
	jobs    chan *job
	name    string
	workers []*worker
	cfg     poolConfig

	group     errgroup.Group
	reconcile singleflight.Group
	pending   sync.WaitGroup
	mu        sync.RWMutex // guards workers
	lifecycle sync.RWMutex // guards stopped
	stopped   bool
}

// New creates a pool for the Runnable called name. No worker exists until Start with
// WithPreWarm, or the first job.
func New(name string, factory Factory, opts ...Option) *Pool {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		factory: factory,
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		name:    name,
		jobs:    make(chan *job, cfg.queueSize),
		logger:  cfg.logger.With(zap.String("runnable", name)),
	}
}

// Name returns the name of the Runnable the pool serves.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of live workers.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.workers)
}

// Start readies the pool. With WithPreWarm it brings every worker up before returning.
func (p *Pool) Start() error {
	if !p.cfg.preWarm {
		return nil
	}
	if err := p.reconcilePoolSize(); err != nil {
		return fmt.Errorf("failed to reconcile pool size: %w", err)
	}
	return nil
}

// Schedule queues a job and returns its Result immediately. ctx bounds the job: if it
// ends before a worker picks the job up, the job fails with ctx's error.
func (p *Pool) Schedule(ctx context.Context, input []byte) *Result {
	res := newResult(uuid.New())

	p.lifecycle.RLock()
	if p.stopped {
		p.lifecycle.RUnlock()
		res.resolve(nil, ErrPoolStopped)
		return res
	}
	p.pending.Add(1)
	p.lifecycle.RUnlock()

	j := &job{ctx: ctx, input: input, result: res}
	go func() {
		defer p.pending.Done()

		if err := p.reconcilePoolSize(); err != nil {
			res.resolve(nil, fmt.Errorf("failed to reconcile pool size: %w", err))
			return
		}

		select {
		case p.jobs <- j:
		case <-ctx.Done():
			res.resolve(nil, ctx.Err())
		case <-p.ctx.Done():
			res.resolve(nil, ErrPoolStopped)
		}
	}()

	return res
}

// Do schedules a job and waits for its output.
func (p *Pool) Do(ctx context.Context, input []byte) ([]byte, error) {
	res := p.Schedule(ctx, input)
	select {
	case <-res.Done():
		return res.Then()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop winds every worker down. Running jobs finish; queued jobs fail with ErrPoolStopped.
// ctx bounds how long Stop waits.
func (p *Pool) Stop(ctx context.Context) error {
	p.lifecycle.Lock()
	if p.stopped {
		p.lifecycle.Unlock()
		return nil
	}
	p.stopped = true
	p.lifecycle.Unlock()

	p.cancel()

	done := make(chan error, 1)
	go func() {
		p.pending.Wait()
		err := p.group.Wait()
		p.mu.Lock()
		p.workers = nil
		p.mu.Unlock()
		p.drain()
		done <- err
	}()

	select {
	case err := <-done:
		p.logger.Debug("pool stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain fails every job left in the queue.
func (p *Pool) drain() {
	for {
		select {
		case j := <-p.jobs:
			j.result.resolve(nil, ErrPoolStopped)
		default:
			return
		}
	}
}

func (p *Pool) targetSize() int {
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()

	if p.stopped {
		return 0
	}
	return p.cfg.size
}

// reconcilePoolSize starts and stops workers until the target size is running.
func (p *Pool) reconcilePoolSize() error {
	// A burst of jobs must not stampede instantiation, so only one reconcile runs at a time
	// and concurrent callers share its outcome.
	_, err, _ := p.reconcile.Do("reconcile", func() (any, error) {
		attempts := 0
		for {
			target := p.targetSize()
			current := p.Size()

			var err error
			switch {
			case current < target:
				err = p.addWorker()
			case current > target:
				p.removeWorker()
			default:
				return nil, nil
			}

			if err == nil {
				continue
			}
			attempts++
			if attempts > p.cfg.retries {
				return nil, fmt.Errorf("failed to add worker after %d attempts: %w", attempts, err)
			}
			p.logger.Warn("failed to add worker, retrying",
				zap.Int("attempt", attempts), zap.Duration("interval", p.cfg.retryInterval), zap.Error(err))

			select {
			case <-time.After(p.cfg.retryInterval):
			case <-p.ctx.Done():
				return nil, ErrPoolStopped
			}
		}
	})
	return err
}

// addWorker instantiates a guest and starts a worker on it.
func (p *Pool) addWorker() error {
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	runner, err := p.factory.Instantiate(p.ctx)
	if err != nil {
		return err
	}

	w := newWorker(p, runner)
	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	p.group.Go(w.run)
	p.logger.Debug("worker started", zap.String("worker", w.id))
	return nil
}

// removeWorker stops the most recently added worker after its current job.
func (p *Pool) removeWorker() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return
	}
	w := p.workers[len(p.workers)-1]
	p.workers = p.workers[:len(p.workers)-1]
	w.cancel()
	p.logger.Debug("worker stopped", zap.String("worker", w.id))
}

// dropWorker forgets a worker that exited on its own.
func (p *Pool) dropWorker(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, candidate := range p.workers {
		if candidate == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			return
		}
	}
}
