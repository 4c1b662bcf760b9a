// Package hostapp wires a loaded configuration into a running host: logger, executor,
// one pool per Runnable, and the registry that routes jobs to them.
package hostapp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/reglet-dev/runnable-sdk/application/config"
	"github.com/reglet-dev/runnable-sdk/host"
	"github.com/reglet-dev/runnable-sdk/host/pool"
	"github.com/reglet-dev/runnable-sdk/host/registry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the host logger described by c.
func NewLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if c.Level != "" {
		lvl, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	if c.Format != "" {
		zc.Encoding = c.Format
	}
	if zc.Encoding == "console" {
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return zc.Build()
}

// ExecutorOptions translates the executor section of cfg.
func ExecutorOptions(cfg *config.Config, logger *zap.Logger) []host.Option {
	return []host.Option{
		host.WithLogger(logger),
		host.WithModuleName(cfg.Executor.ModuleName),
		host.WithMaxPayloadSize(cfg.Executor.MaxPayloadSize),
		host.WithMemoryLimitPages(cfg.Executor.MemoryLimitPages),
	}
}

// PoolOptions translates a Runnable's pool section. Unset fields keep the pool defaults.
func PoolOptions(rc config.RunnableConfig, logger *zap.Logger) []pool.Option {
	opts := []pool.Option{
		pool.WithLogger(logger),
		pool.WithSize(rc.Pool.Size),
		pool.WithPreWarm(rc.Pool.PreWarm),
		pool.WithJobTimeout(rc.Pool.JobTimeout.Std()),
	}
	if rc.Pool.QueueSize > 0 {
		opts = append(opts, pool.WithQueueSize(rc.Pool.QueueSize))
	}
	if rc.Pool.Retries > 0 || rc.Pool.RetryInterval > 0 {
		opts = append(opts, pool.WithRetries(rc.Pool.Retries, rc.Pool.RetryInterval.Std()))
	}
	return opts
}

// Host is a running set of Runnables.
type Host struct {
	Executor *host.Executor
	Registry *registry.Registry
	logger   *zap.Logger
}

// Start compiles every configured Runnable and registers a pool for it.
func Start(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Host, error) {
	exec, err := host.NewExecutor(ctx, ExecutorOptions(cfg, logger)...)
	if err != nil {
		return nil, err
	}

	h := &Host{Executor: exec, Registry: registry.NewRegistry(), logger: logger}
	for _, rc := range cfg.Runnables {
		if err := h.add(ctx, rc); err != nil {
			return nil, errors.Join(err, h.Close(ctx))
		}
	}
	return h, nil
}

func (h *Host) add(ctx context.Context, rc config.RunnableConfig) error {
	wasm, err := os.ReadFile(rc.Path)
	if err != nil {
		return fmt.Errorf("runnable %q: %w", rc.Name, err)
	}
	mod, err := h.Executor.Compile(ctx, rc.Name, wasm)
	if err != nil {
		return fmt.Errorf("runnable %q: %w", rc.Name, err)
	}

	p := pool.New(rc.Name, pool.FromModule(mod), PoolOptions(rc, h.logger)...)
	if err := h.Registry.Register(ctx, p); err != nil {
		return fmt.Errorf("runnable %q: %w", rc.Name, err)
	}
	h.logger.Info("registered runnable",
		zap.String("runnable", rc.Name),
		zap.String("path", rc.Path),
		zap.Int("pool_size", rc.Pool.Size))
	return nil
}

// Close stops every pool, then the runtime.
func (h *Host) Close(ctx context.Context) error {
	return errors.Join(h.Registry.Shutdown(ctx), h.Executor.Close(ctx))
}

// Check compiles every configured Runnable without starting any worker. It reports all
// failures, not just the first.
func Check(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	exec, err := host.NewExecutor(ctx, ExecutorOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer exec.Close(ctx)

	var errs []error
	for _, rc := range cfg.Runnables {
		wasm, err := os.ReadFile(rc.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("runnable %q: %w", rc.Name, err))
			continue
		}
		mod, err := exec.Compile(ctx, rc.Name, wasm)
		if err != nil {
			errs = append(errs, fmt.Errorf("runnable %q: %w", rc.Name, err))
			continue
		}
		_ = mod.Close(ctx)
	}
	return errors.Join(errs...)
}
