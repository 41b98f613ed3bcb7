package poolregistry

import (
	"context"
	"sync"

	"github.com/Swind/go-pool-registry/core"
)

// =============================================================================
// Default Registry Helper (Singleton)
// =============================================================================

var (
	defaultRegistry *core.Registry
	defaultMu       sync.Mutex
)

// InitDefault creates the process-wide registry with opts. It reports false
// if the registry already exists; opts are ignored in that case.
func InitDefault(opts ...RegistryOption) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry != nil {
		return false
	}
	defaultRegistry = core.NewRegistry(opts...)
	return true
}

// Default returns the process-wide registry, creating it with default
// options on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = core.NewRegistry()
	}
	return defaultRegistry
}

// CloseDefault closes the process-wide registry. The next call to Default
// or InitDefault creates a fresh one.
func CloseDefault(ctx context.Context) error {
	defaultMu.Lock()
	r := defaultRegistry
	defaultRegistry = nil
	defaultMu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close(ctx)
}

// CreatePool creates a named pool on the default registry.
func CreatePool(name string, cfg PoolConfig) error {
	return Default().CreatePool(name, cfg)
}

// Submit runs task on the named pool of the default registry.
func Submit(name string, task Task) (*Future, error) {
	return Default().Submit(name, task)
}

// Execute runs task on the named pool of the default registry and logs its
// failure.
func Execute(name string, task Task) error {
	return Default().Execute(name, task)
}

// Shutdown stops the named pool of the default registry.
func Shutdown(name string) error {
	return Default().Shutdown(name)
}

// Snapshot returns the statistics of every pool of the default registry.
func Snapshot() []PoolStats {
	return Default().Snapshot()
}
