package gfx

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Registered backend names.
const (
	BackendHAL   = "hal"
	BackendTrace = "trace"

	// BackendAuto selects the first available backend by priority.
	BackendAuto = "auto"
)

// BackendFactory opens a backend with the given configuration.
type BackendFactory func(cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for automatic selection (first that opens wins).
	backendPriority = []string{BackendHAL, BackendTrace}
)

// Register registers a backend factory. Backend packages call it from
// init(), following the database/sql driver pattern:
//
//	import _ "github.com/gogpu/gfx/backend/hal"
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("gfx: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("gfx: Register called twice for " + name)
	}
	backends[name] = factory
}

// Unregister removes a backend. It is mainly useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// IsRegistered reports whether a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenBackend opens the backend named by cfg.Backend. An empty name or
// BackendAuto tries registered backends in priority order, then any other
// registered backend alphabetically.
//
// A missing backend, or one whose factory fails, yields an error wrapping
// ErrBackendNotAvailable. Callers treat it as fatal.
func OpenBackend(cfg Config) (Backend, error) {
	name := cfg.Backend
	if name != "" && name != BackendAuto {
		registryMu.RLock()
		factory, ok := backends[name]
		registryMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: unknown backend %q (forgotten import?), registered: %v",
				ErrBackendNotAvailable, name, Available())
		}
		b, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrBackendNotAvailable, name, err)
		}
		Logger().Info("gfx: backend opened", "backend", name)
		return b, nil
	}

	var errs []error
	for _, name := range autoOrder() {
		registryMu.RLock()
		factory, ok := backends[name]
		registryMu.RUnlock()
		if !ok {
			continue
		}
		b, err := factory(cfg)
		if err != nil {
			Logger().Debug("gfx: backend unavailable", "backend", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		Logger().Info("gfx: backend opened", "backend", name)
		return b, nil
	}
	return nil, fmt.Errorf("%w: no backend could be opened %v", ErrBackendNotAvailable, errs)
}

// autoOrder returns registered names, priority ones first.
func autoOrder() []string {
	registered := Available()
	order := make([]string, 0, len(registered))
	for _, name := range backendPriority {
		if slices.Contains(registered, name) {
			order = append(order, name)
		}
	}
	for _, name := range registered {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	return order
}
