// Package registry maps Runnable names to the pools that serve them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/runnable-sdk/host/pool"
)

var (
	// ErrNotFound is returned for a name nothing is registered under.
	ErrNotFound = errors.New("runnable not registered")

	// ErrAlreadyRegistered is returned in strict mode for a duplicate name.
	ErrAlreadyRegistered = errors.New("runnable already registered")
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true, // Secure default: prevent accidental overwrites
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading, in which
// case the replaced pool is stopped.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry routes jobs to pools by Runnable name.
type Registry struct {
	pools  sync.Map // map[string]*pool.Pool
	config registryConfig
	mu     sync.Mutex // serialises registration
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Register starts p and makes it reachable under p.Name().
func (r *Registry) Register(ctx context.Context, p *pool.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	existing, exists := r.pools.Load(name)
	if exists && r.config.strictMode {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}

	if err := p.Start(); err != nil {
		return fmt.Errorf("failed to start pool for %q: %w", name, err)
	}
	r.pools.Store(name, p)

	if exists {
		if err := existing.(*pool.Pool).Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop replaced pool for %q: %w", name, err)
		}
	}
	return nil
}

// Get returns the pool registered under name.
func (r *Registry) Get(name string) (*pool.Pool, bool) {
	v, ok := r.pools.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*pool.Pool), true
}

// Schedule queues a job on the named Runnable's pool.
func (r *Registry) Schedule(ctx context.Context, name string, input []byte) (*pool.Result, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.Schedule(ctx, input), nil
}

// Do runs a job on the named Runnable and waits for its output.
func (r *Registry) Do(ctx context.Context, name string, input []byte) ([]byte, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.Do(ctx, input)
}

// List returns all registered Runnable names, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.pools.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Deregister stops and removes the named pool.
func (r *Registry) Deregister(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.pools.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v.(*pool.Pool).Stop(ctx)
}

// Shutdown stops every pool and empties the registry.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	r.pools.Range(func(k, v any) bool {
		if err := v.(*pool.Pool).Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		r.pools.Delete(k)
		return true
	})
	return errors.Join(errs...)
}
