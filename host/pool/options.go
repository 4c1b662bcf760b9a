package pool

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize     = 256
	defaultRetries       = 5
	defaultRetryInterval = 3 * time.Second
)

// Option configures a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	logger        *zap.Logger
	size          int
	queueSize     int
	retries       int
	retryInterval time.Duration
	jobTimeout    time.Duration
	preWarm       bool
}

func defaultPoolConfig() poolConfig {
	return poolConfig{
		logger:        zap.NewNop(),
		size:          1,
		queueSize:     defaultQueueSize,
		retries:       defaultRetries,
		retryInterval: defaultRetryInterval,
	}
}

// WithSize sets the number of workers, each with its own instance. Values below 1 are ignored.
func WithSize(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithQueueSize sets how many jobs may wait for a free worker.
func WithQueueSize(n int) Option {
	return func(c *poolConfig) {
		if n >= 0 {
			c.queueSize = n
		}
	}
}

// WithRetries sets how often starting or stopping a worker is retried, and the pause
// between attempts.
func WithRetries(n int, interval time.Duration) Option {
	return func(c *poolConfig) {
		if n >= 0 {
			c.retries = n
		}
		if interval >= 0 {
			c.retryInterval = interval
		}
	}
}

// WithJobTimeout bounds each invocation. Zero means no limit.
func WithJobTimeout(d time.Duration) Option {
	return func(c *poolConfig) {
		c.jobTimeout = d
	}
}

// WithPreWarm starts the workers in Start instead of on the first job.
func WithPreWarm(enabled bool) Option {
	return func(c *poolConfig) {
		c.preWarm = enabled
	}
}

// WithLogger sets the pool's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *poolConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
