package decl

import (
	"context"
	"sync"
)

// Factory produces an instance from resolved positional dependencies.
type Factory func(ctx context.Context, deps []any) (any, error)

// ClassProvider registers UseClass under a custom token.
type ClassProvider struct {
	Provide  any
	UseClass *Type
	Scope    Scope
	// Inject overrides the dependencies declared in UseClass metadata.
	Inject []any
}

// ValueProvider registers a ready-made value.
type ValueProvider struct {
	Provide  any
	UseValue any
}

// FactoryProvider registers the result of UseFactory.
type FactoryProvider struct {
	Provide    any
	UseFactory Factory
	Inject     []any
	Scope      Scope
}

// ExistingProvider aliases UseExisting under another token.
type ExistingProvider struct {
	Provide     any
	UseExisting any
}

// ProvideToken returns the injection token of a provider declaration and
// false when provider has no recognizable shape.
func ProvideToken(provider any) (any, bool) {
	switch p := provider.(type) {
	case *Type:
		if p != nil {
			return p, true
		}
	case *ClassProvider:
		if p != nil {
			return p.Provide, true
		}
	case *ValueProvider:
		if p != nil {
			return p.Provide, true
		}
	case *FactoryProvider:
		if p != nil {
			return p.Provide, true
		}
	case *ExistingProvider:
		if p != nil {
			return p.Provide, true
		}
	}
	return nil, false
}

// IsCustomProvider reports whether provider carries an explicit token.
func IsCustomProvider(provider any) bool {
	switch provider.(type) {
	case *ClassProvider, *ValueProvider, *FactoryProvider, *ExistingProvider:
		return true
	}
	return false
}

// PropertyDep requests injection of Token into the exported struct field
// named Field after construction.
type PropertyDep struct {
	Field string
	Token any
}

// ParamPipes binds pipes to one parameter of a method.
type ParamPipes struct {
	Index int
	Pipes []any
}

// Handle is the placeholder allocated for a unit before any dependency is
// resolved. Units holding a Handle may read the instance once it is set.
type Handle struct {
	mu    sync.RWMutex
	value any
	ready bool
}

// Get returns the instance, or nil while the unit is still unconstructed.
func (h *Handle) Get() any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

// Ready reports whether the instance has been set.
func (h *Handle) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Set stores the constructed instance.
func (h *Handle) Set(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v
	h.ready = true
}
