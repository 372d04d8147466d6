package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// Factory creates a component from its configuration.
type Factory[T any] func(cfg map[string]any) (T, error)

// Registry manages named factories for one kind of component.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty Registry. kind names the component in
// error messages (e.g. "dialect").
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Kind returns the component kind.
func (r *Registry[T]) Kind() string { return r.kind }

// Register registers a named factory, replacing any previous one.
// It panics if name is empty or factory is nil.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	if name == "" {
		panic(fmt.Sprintf("plugins: empty %s name", r.kind))
	}
	if factory == nil {
		panic(fmt.Sprintf("plugins: nil factory for %s %q", r.kind, name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Unregister removes a factory. It is a no-op for unknown names.
func (r *Registry[T]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve instantiates the component registered under name.
func (r *Registry[T]) Resolve(name string, cfg map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, errors.DiscoveryError(r.kind, name).
			WithDetail("available", r.Names())
	}
	v, err := factory(cfg)
	if err != nil {
		var zero T
		return zero, errors.Newf(errors.ErrCodeDiscovery, "%s %q failed to initialize", r.kind, name).
			WithDetails(map[string]any{"kind": r.kind, "name": name}).
			WithCause(err)
	}
	return v, nil
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
