package pool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// worker serves jobs on one guest instance.
type worker struct {
	pool   *Pool
	runner Runner
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	id     string
}

func newWorker(p *Pool, runner Runner) *worker {
	ctx, cancel := context.WithCancel(p.ctx)
	id := uuid.NewString()
	return &worker{
		pool:   p,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
		id:     id,
		logger: p.logger.With(zap.String("worker", id)),
	}
}

// run serves jobs until the worker is cancelled, then closes its instance.
func (w *worker) run() error {
	defer w.cancel()

	for {
		select {
		case <-w.ctx.Done():
			return w.runner.Close(context.Background())
		case j := <-w.pool.jobs:
			w.execute(j)
			if !w.runner.Healthy() && !w.replaceRunner() {
				w.pool.dropWorker(w)
				return nil
			}
		}
	}
}

func (w *worker) execute(j *job) {
	if err := j.ctx.Err(); err != nil {
		j.result.resolve(nil, err)
		return
	}

	ctx := j.ctx
	if timeout := w.pool.cfg.jobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrJobTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := w.runner.Run(ctx, j.input)
	w.logger.Debug("job complete",
		zap.Stringer("job", j.result.ID()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	j.result.resolve(out, err)
}

// replaceRunner swaps a faulted instance for a fresh one. It reports false when no
// replacement could be created, in which case the worker should exit.
func (w *worker) replaceRunner() bool {
	if err := w.runner.Close(context.Background()); err != nil {
		w.logger.Warn("failed to close faulted instance", zap.Error(err))
	}

	runner, err := w.pool.factory.Instantiate(w.ctx)
	if err != nil {
		w.logger.Error("failed to replace faulted instance", zap.Error(err))
		return false
	}
	w.runner = runner
	w.logger.Info("replaced faulted instance")
	return true
}
