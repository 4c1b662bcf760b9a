package host

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
	adapter "github.com/reglet-dev/runnable-sdk/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Names of the exports every Runnable guest provides.
const (
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
	ExportRunE       = "run_e"
	exportInitialize = "_initialize"
)

var requiredExports = []string{ExportAllocate, ExportDeallocate, ExportRunE}

// Executor manages the wazero runtime that Runnable guests are compiled and run in.
type Executor struct {
	runtime wazero.Runtime
	logger  *zap.Logger
	cfg     executorConfig
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Closing on context done lets a job timeout interrupt a guest stuck in run_e.
	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.memoryPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	adapterOpts := []adapter.AdapterOption{
		adapter.WithModuleName(cfg.moduleName),
		adapter.WithMaxPayloadSize(cfg.maxPayloadSize),
		adapter.WithLogger(cfg.logger),
	}
	if cfg.logFunc != nil {
		adapterOpts = append(adapterOpts, adapter.WithLogFunc(cfg.logFunc))
	}
	if err := adapter.RegisterWithRuntime(ctx, rt, adapterOpts...); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Executor{runtime: rt, logger: cfg.logger, cfg: cfg}, nil
}

// Close releases resources held by the executor, including every instance it created.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile validates and compiles a guest binary. name labels the guest in logs.
func (e *Executor) Compile(ctx context.Context, name string, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %q: %w", name, err)
	}

	exports := compiled.ExportedFunctions()
	for _, export := range requiredExports {
		if _, ok := exports[export]; !ok {
			_ = compiled.Close(ctx)
			return nil, fmt.Errorf("%w: %q does not export %s", ErrMissingExport, name, export)
		}
	}
	if len(compiled.ExportedMemories()) == 0 {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: %q does not export its memory", ErrMissingExport, name)
	}

	e.logger.Debug("compiled runnable", zap.String("runnable", name))
	return &Module{exec: e, compiled: compiled, name: name}, nil
}

// LoadRunnable compiles and instantiates a guest in one step.
func (e *Executor) LoadRunnable(ctx context.Context, name string, wasmBytes []byte) (*Instance, error) {
	mod, err := e.Compile(ctx, name, wasmBytes)
	if err != nil {
		return nil, err
	}
	return mod.Instantiate(ctx)
}

// Module is a compiled guest that can be instantiated any number of times.
type Module struct {
	exec     *Executor
	compiled wazero.CompiledModule
	name     string
}

// Name returns the label the module was compiled with.
func (m *Module) Name() string {
	return m.name
}

// Instantiate creates a fresh instance of the guest with its own memory and registration
// slot, and runs its reactor initialisation.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	cfg := m.exec.cfg
	modCfg := wazero.NewModuleConfig().
		WithName(m.name + "-" + uuid.NewString()).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithStdout(orDiscard(cfg.stdout)).
		WithStderr(orDiscard(cfg.stderr))

	mod, err := m.exec.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module %q: %w", m.name, err)
	}

	// Reactors built with -buildmode=c-shared run init() (and so register their Runnable) here.
	if init := mod.ExportedFunction(exportInitialize); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	inst := &Instance{
		module:     mod,
		allocate:   mod.ExportedFunction(ExportAllocate),
		deallocate: mod.ExportedFunction(ExportDeallocate),
		runE:       mod.ExportedFunction(ExportRunE),
		logger:     m.exec.logger.With(zap.String("runnable", m.name), zap.String("instance", mod.Name())),
		name:       m.name,
		maxPayload: cfg.maxPayloadSize,
	}
	inst.logger.Debug("instantiated runnable")
	return inst, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
