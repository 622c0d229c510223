package container

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vk/modgraph/internal/decl"
)

// Kind classifies the catalog a wrapper lives in.
type Kind string

const (
	KindProvider   Kind = "provider"
	KindInjectable Kind = "injectable"
	KindController Kind = "controller"
)

// ContextID identifies one request-scoped resolution context.
type ContextID string

// StaticContext is the context of singleton and bootstrap-time resolutions.
const StaticContext ContextID = ""

// Slot holds the outcome of one resolution of a wrapper in one context.
// Waiters block on Done until the owning goroutine settles it.
type Slot struct {
	done     chan struct{}
	instance any
	err      error
}

// Wait blocks until the slot is settled or ctx is done.
func (s *Slot) Wait(ctx context.Context) (any, error) {
	select {
	case <-s.done:
		return s.instance, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Slot) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// InstanceWrapper is one injectable unit inside a module catalog.
type InstanceWrapper struct {
	ID    string
	Token any
	Name  string
	Kind  Kind

	// Exactly one of Metatype, Factory or a value is the unit's source.
	Metatype *decl.Type
	Factory  decl.Factory

	// Inject lists the positional constructor dependency tokens.
	Inject     []any
	Optional   map[int]bool
	Properties []decl.PropertyDep
	Scope      decl.Scope
	Host       *Module

	// Enhancer classification, set for wrappers reflected from guard,
	// interceptor, filter or pipe metadata.
	Subtype   string
	HostClass *decl.Type

	isValue bool
	value   any
	isAlias bool

	handle     decl.Handle
	mu         sync.Mutex
	slots      map[ContextID]*Slot
	nonStatic  bool
	enhancers  []*InstanceWrapper
	transients atomic.Int64

	// Resolved dependency wrappers, recorded by the injector.
	ctorMetadata []*InstanceWrapper
	propMetadata map[string]*InstanceWrapper
}

func newWrapper(token any, kind Kind, host *Module) *InstanceWrapper {
	return &InstanceWrapper{
		ID:       uuid.NewString(),
		Token:    token,
		Name:     decl.TokenName(token),
		Kind:     kind,
		Host:     host,
		Optional: map[int]bool{},
		slots:    make(map[ContextID]*Slot),
	}
}

// IsValue reports whether the wrapper holds a ready-made value.
func (w *InstanceWrapper) IsValue() bool { return w.isValue }

// IsAlias reports whether the wrapper re-exposes another token.
func (w *InstanceWrapper) IsAlias() bool { return w.isAlias }

// IsTransient reports whether every resolution builds a fresh instance.
func (w *InstanceWrapper) IsTransient() bool { return w.Scope == decl.Transient }

// IsFactory reports whether the wrapper is built by a factory function.
func (w *InstanceWrapper) IsFactory() bool { return w.Factory != nil }

// Handle returns the placeholder allocated for the unit's instance.
func (w *InstanceWrapper) Handle() *decl.Handle { return &w.handle }

// Claim returns the slot for id. owner is true when the caller created the
// slot and must settle it; otherwise the caller waits on the returned slot.
func (w *InstanceWrapper) Claim(id ContextID) (s *Slot, owner bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.slots[id]; ok {
		return s, false
	}
	s = &Slot{done: make(chan struct{})}
	w.slots[id] = s
	return s, true
}

// Settle records the outcome of the owned slot s and wakes its waiters.
// Static instances are also stored in the wrapper's handle.
func (w *InstanceWrapper) Settle(id ContextID, s *Slot, instance any, err error) {
	s.instance, s.err = instance, err
	if err == nil && id == StaticContext {
		w.handle.Set(instance)
	}
	close(s.done)
}

// Release settles s with err and forgets it, so a later resolution in the
// same context starts over.
func (w *InstanceWrapper) Release(id ContextID, s *Slot, err error) {
	w.mu.Lock()
	if w.slots[id] == s {
		delete(w.slots, id)
	}
	w.mu.Unlock()
	s.err = err
	close(s.done)
}

// Instance returns the settled instance for id, if any.
func (w *InstanceWrapper) Instance(id ContextID) (any, bool) {
	w.mu.Lock()
	s, ok := w.slots[id]
	w.mu.Unlock()
	if !ok || !s.settled() || s.err != nil {
		return nil, false
	}
	return s.instance, true
}

// IsResolved reports whether the static instance has been produced.
func (w *InstanceWrapper) IsResolved() bool {
	_, ok := w.Instance(StaticContext)
	return ok
}

// MarkNonStatic records that the unit's dependency tree reaches a
// request-scoped unit, so it can only be built per context.
func (w *InstanceWrapper) MarkNonStatic() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nonStatic = true
}

// IsStatic reports whether the unit can be built without a request context.
func (w *InstanceWrapper) IsStatic() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.nonStatic && w.Scope != decl.Request
}

// CountTransient records one transient construction and returns the total.
func (w *InstanceWrapper) CountTransient() int64 { return w.transients.Add(1) }

// Transients returns how many transient instances were built.
func (w *InstanceWrapper) Transients() int64 { return w.transients.Load() }

// Enhancers returns the enhancer wrappers attached to this unit.
func (w *InstanceWrapper) Enhancers() []*InstanceWrapper {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*InstanceWrapper(nil), w.enhancers...)
}

func (w *InstanceWrapper) addEnhancer(e *InstanceWrapper) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.enhancers {
		if existing == e {
			return
		}
	}
	w.enhancers = append(w.enhancers, e)
}

// SetCtorMetadata records the wrapper resolved for constructor position i.
func (w *InstanceWrapper) SetCtorMetadata(i int, dep *InstanceWrapper) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ctorMetadata) <= i {
		grown := make([]*InstanceWrapper, i+1)
		copy(grown, w.ctorMetadata)
		w.ctorMetadata = grown
	}
	w.ctorMetadata[i] = dep
}

// CtorMetadata returns the resolved constructor dependencies. Positions of
// missing optional dependencies are nil.
func (w *InstanceWrapper) CtorMetadata() []*InstanceWrapper {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*InstanceWrapper(nil), w.ctorMetadata...)
}

// SetPropertyMetadata records the wrapper resolved for a property.
func (w *InstanceWrapper) SetPropertyMetadata(field string, dep *InstanceWrapper) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.propMetadata == nil {
		w.propMetadata = make(map[string]*InstanceWrapper)
	}
	w.propMetadata[field] = dep
}

// PropertyMetadata returns the resolved property dependency of field.
func (w *InstanceWrapper) PropertyMetadata(field string) (*InstanceWrapper, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	dep, ok := w.propMetadata[field]
	return dep, ok
}

// Value returns the ready-made value of a value wrapper.
func (w *InstanceWrapper) Value() any { return w.value }

func (w *InstanceWrapper) String() string {
	if w.Host != nil {
		return w.Name + " in " + w.Host.Name()
	}
	return w.Name
}
