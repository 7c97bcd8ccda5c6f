package store

import (
	"context"
	"fmt"
	"sync"
)

// Factory constructs a Store backend from a connection string.
type Factory func(ctx context.Context, dsn string) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func init() {
	RegisterBackend("memory", func(_ context.Context, _ string) (Store, error) {
		return NewMemStore(), nil
	})
	RegisterBackend("mysql", func(ctx context.Context, dsn string) (Store, error) {
		return OpenSQLStore(ctx, dsn)
	})
}

// RegisterBackend adds name to the backend registry. Backends outside this
// package call this from an init() to plug in without modifying this file.
func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs a Store using the named backend.
func New(ctx context.Context, backend, dsn string) (Store, error) {
	registryMu.RLock()
	factory, ok := registry[backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
	return factory(ctx, dsn)
}
