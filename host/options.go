package host

import (
	"io"

	adapter "github.com/reglet-dev/runnable-sdk/infrastructure/wazero"
	"go.uber.org/zap"
)

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

type executorConfig struct {
	logger         *zap.Logger
	logFunc        adapter.LogFunc
	stdout         io.Writer
	stderr         io.Writer
	moduleName     string
	memoryPages    uint32
	maxPayloadSize uint32
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:         zap.NewNop(),
		moduleName:     adapter.DefaultModuleName,
		maxPayloadSize: adapter.DefaultMaxPayloadSize,
	}
}

// WithLogger sets the logger for executor diagnostics and guest log records.
func WithLogger(logger *zap.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGuestLogFunc routes guest log_message records to fn instead of the logger.
func WithGuestLogFunc(fn adapter.LogFunc) Option {
	return func(c *executorConfig) {
		c.logFunc = fn
	}
}

// WithModuleName sets the import module the callbacks are registered under (default "env").
func WithModuleName(name string) Option {
	return func(c *executorConfig) {
		if name != "" {
			c.moduleName = name
		}
	}
}

// WithMaxPayloadSize limits the input and callback payload sizes.
func WithMaxPayloadSize(size uint32) Option {
	return func(c *executorConfig) {
		if size > 0 {
			c.maxPayloadSize = size
		}
	}
}

// WithMemoryLimitPages caps each guest's linear memory, in 64 KiB pages.
// Zero keeps the wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryPages = pages
	}
}

// WithGuestOutput connects the guests' WASI stdout and stderr. Both are discarded by default.
func WithGuestOutput(stdout, stderr io.Writer) Option {
	return func(c *executorConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}
