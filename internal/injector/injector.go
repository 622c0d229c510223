// Package injector resolves and constructs the units cataloged in a
// container. Lookups walk the requesting module's own providers first,
// then the exports of its imports, so global modules (bound as trailing
// imports) are consulted last.
package injector

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/inspector"
)

// errNotStatic is returned when a static resolution reaches a unit that
// can only be built inside a request context.
var errNotStatic = errors.New("unit depends on a request-scoped provider")

// Options configures an Injector.
type Options struct {
	// Preview resolves every dependency but runs no constructor or
	// factory. Instances are left nil.
	Preview bool
}

// Injector builds unit instances on demand.
type Injector struct {
	container *container.Container
	inspector inspector.Inspector
	preview   bool
}

var _ container.Resolver = (*Injector)(nil)

// New returns an Injector for c and installs it as the container's
// resolver.
func New(c *container.Container, insp inspector.Inspector, opts Options) *Injector {
	if insp == nil {
		insp = inspector.Noop{}
	}
	inj := &Injector{container: c, inspector: insp, preview: opts.Preview}
	c.SetResolver(inj)
	return inj
}

// resolution is the state of one top-level resolution: the context it
// builds in and the chain of units currently under construction.
type resolution struct {
	id    container.ContextID
	stack []*container.InstanceWrapper
}

func (r resolution) push(w *container.InstanceWrapper) resolution {
	stack := make([]*container.InstanceWrapper, len(r.stack), len(r.stack)+1)
	copy(stack, r.stack)
	return resolution{id: r.id, stack: append(stack, w)}
}

func (r resolution) cycle(w *container.InstanceWrapper) error {
	for i, s := range r.stack {
		if s != w {
			continue
		}
		chain := make([]string, 0, len(r.stack)-i+1)
		for _, u := range r.stack[i:] {
			chain = append(chain, u.Name)
		}
		return &diag.CircularDependencyError{Chain: append(chain, w.Name)}
	}
	return nil
}

// LoadPrototype settles value wrappers so their handle is populated before
// anything else is built. Other wrappers already own an empty handle.
func (i *Injector) LoadPrototype(w *container.InstanceWrapper) {
	if !w.IsValue() {
		return
	}
	if s, owner := w.Claim(container.StaticContext); owner {
		w.Settle(container.StaticContext, s, w.Value(), nil)
	}
}

// LoadProvider builds the static instance of a provider.
func (i *Injector) LoadProvider(ctx context.Context, w *container.InstanceWrapper, m *container.Module) error {
	return i.loadTop(ctx, w, m)
}

// LoadInjectable builds the static instance of an enhancer.
func (i *Injector) LoadInjectable(ctx context.Context, w *container.InstanceWrapper, m *container.Module) error {
	return i.loadTop(ctx, w, m)
}

// LoadController builds the static instance of a controller.
func (i *Injector) LoadController(ctx context.Context, w *container.InstanceWrapper, m *container.Module) error {
	return i.loadTop(ctx, w, m)
}

// loadTop builds w with an empty resolution stack. Units that turn out to
// need a request context are marked non-static and skipped.
func (i *Injector) loadTop(ctx context.Context, w *container.InstanceWrapper, m *container.Module) error {
	if !w.IsStatic() {
		return nil
	}
	var err error
	if w.IsTransient() {
		var inst any
		inst, err = i.buildTransient(ctx, w, resolution{id: container.StaticContext})
		if err == nil {
			w.Handle().Set(inst)
		}
	} else {
		_, err = i.loadInstance(ctx, w, resolution{id: container.StaticContext})
	}
	if errors.Is(err, errNotStatic) {
		return nil
	}
	if err != nil {
		return err
	}
	i.inspector.InspectInstanceWrapper(w, m)
	return nil
}

// Resolve returns the instance registered under token as seen from m:
// its own providers, controllers and enhancers, then whatever its imports
// export. Request-scoped units cannot be resolved this way.
func (i *Injector) Resolve(ctx context.Context, m *container.Module, token any) (any, error) {
	w, ok := i.find(m, token)
	if !ok {
		name := decl.TokenName(token)
		return nil, &diag.UnknownDependenciesError{Unit: "ModuleRef", Dependencies: []string{name}, Missing: name, Module: m.Name()}
	}
	return i.Get(ctx, w)
}

// Get returns the static instance of w, building it when needed.
func (i *Injector) Get(ctx context.Context, w *container.InstanceWrapper) (any, error) {
	if !w.IsStatic() {
		return nil, fmt.Errorf("%w: %s", diag.ErrScopeNotResolvable, w)
	}
	inst, err := i.loadInstance(ctx, w, resolution{id: container.StaticContext})
	if errors.Is(err, errNotStatic) {
		return nil, fmt.Errorf("%w: %s", diag.ErrScopeNotResolvable, w)
	}
	return inst, err
}

// LoadPerContext resolves token as seen from m inside the request context
// id. Request-scoped units, and units whose dependency tree reaches one,
// get one instance per id; static singletons are shared.
func (i *Injector) LoadPerContext(ctx context.Context, m *container.Module, token any, id container.ContextID) (any, error) {
	if id == container.StaticContext {
		return nil, fmt.Errorf("%w: empty context id", diag.ErrScopeNotResolvable)
	}
	w, ok := i.find(m, token)
	if !ok {
		name := decl.TokenName(token)
		return nil, &diag.UnknownDependenciesError{Unit: "ContextResolver", Dependencies: []string{name}, Missing: name, Module: m.Name()}
	}
	return i.loadInstance(ctx, w, resolution{id: id})
}

// loadInstance returns the instance of w for the resolution context,
// building it at most once per slot.
func (i *Injector) loadInstance(ctx context.Context, w *container.InstanceWrapper, res resolution) (any, error) {
	if w.IsValue() {
		return w.Value(), nil
	}
	if err := res.cycle(w); err != nil {
		return nil, err
	}
	if w.IsTransient() {
		return i.buildTransient(ctx, w, res)
	}

	slotID := container.StaticContext
	if !w.IsStatic() {
		if res.id == container.StaticContext {
			return nil, errNotStatic
		}
		slotID = res.id
	}
	slot, owner := w.Claim(slotID)
	if !owner {
		return slot.Wait(ctx)
	}
	inst, err := i.build(ctx, w, res.push(w))
	if errors.Is(err, errNotStatic) {
		w.MarkNonStatic()
		w.Release(slotID, slot, err)
		return nil, err
	}
	w.Settle(slotID, slot, inst, err)
	return inst, err
}

func (i *Injector) buildTransient(ctx context.Context, w *container.InstanceWrapper, res resolution) (any, error) {
	if !w.IsStatic() && res.id == container.StaticContext {
		return nil, errNotStatic
	}
	inst, err := i.build(ctx, w, res.push(w))
	if errors.Is(err, errNotStatic) {
		w.MarkNonStatic()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	w.CountTransient()
	return inst, nil
}

// build resolves the dependencies of w and runs its constructor or
// factory, then injects its properties.
func (i *Injector) build(ctx context.Context, w *container.InstanceWrapper, res resolution) (any, error) {
	deps, err := i.resolveConstructorParams(ctx, w, res)
	if err != nil {
		return nil, err
	}
	props, err := i.resolveProperties(ctx, w, res)
	if err != nil {
		return nil, err
	}
	if i.preview {
		return nil, nil
	}

	var inst any
	switch {
	case w.Factory != nil:
		inst, err = w.Factory(ctx, deps)
	case w.Metatype != nil && w.Metatype.New != nil:
		inst, err = w.Metatype.New(ctx, deps)
	default:
		return nil, fmt.Errorf("instantiating %s: type has no constructor", w)
	}
	if err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", w, err)
	}
	if err := applyProperties(inst, w.Properties, props); err != nil {
		return nil, fmt.Errorf("injecting properties of %s: %w", w, err)
	}
	return inst, nil
}

func (i *Injector) resolveConstructorParams(ctx context.Context, w *container.InstanceWrapper, res resolution) ([]any, error) {
	deps := make([]any, len(w.Inject))
	for idx, token := range w.Inject {
		dep, ok, err := i.resolveDependency(ctx, w, token, res)
		if err != nil {
			return nil, err
		}
		if !ok {
			if w.Optional[idx] {
				w.SetCtorMetadata(idx, nil)
				continue
			}
			names := make([]string, len(w.Inject))
			for j, t := range w.Inject {
				names[j] = decl.TokenName(t)
			}
			return nil, &diag.UnknownDependenciesError{
				Unit:         w.Name,
				Dependencies: names,
				Index:        idx,
				Missing:      decl.TokenName(unwrapForward(token)),
				Module:       w.Host.Name(),
			}
		}
		deps[idx] = dep.instance
		w.SetCtorMetadata(idx, dep.wrapper)
	}
	return deps, nil
}

func (i *Injector) resolveProperties(ctx context.Context, w *container.InstanceWrapper, res resolution) ([]any, error) {
	values := make([]any, len(w.Properties))
	for idx, p := range w.Properties {
		dep, ok, err := i.resolveDependency(ctx, w, p.Token, res)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &diag.UnknownDependenciesError{
				Unit:     w.Name,
				Property: p.Field,
				Missing:  decl.TokenName(unwrapForward(p.Token)),
				Module:   w.Host.Name(),
			}
		}
		values[idx] = dep.instance
		w.SetPropertyMetadata(p.Field, dep.wrapper)
	}
	return values, nil
}

type resolved struct {
	wrapper  *container.InstanceWrapper
	instance any
}

// resolveDependency looks token up from the host module of w. ok is false
// when no provider is visible. Forward references yield the dependency's
// Handle instead of waiting for its instance.
func (i *Injector) resolveDependency(ctx context.Context, w *container.InstanceWrapper, token any, res resolution) (resolved, bool, error) {
	forward := decl.IsForwardReference(token)
	token = unwrapForward(token)
	dep, ok := i.lookup(w.Host, token)
	if !ok {
		return resolved{}, false, nil
	}
	if forward {
		return resolved{wrapper: dep, instance: dep.Handle()}, true, nil
	}
	inst, err := i.loadInstance(ctx, dep, res)
	if err != nil {
		return resolved{}, true, err
	}
	return resolved{wrapper: dep, instance: inst}, true, nil
}

func unwrapForward(token any) any {
	if decl.IsForwardReference(token) {
		return token.(*decl.ForwardReference).Resolve()
	}
	return token
}

// lookup finds the provider of token visible from m.
func (i *Injector) lookup(m *container.Module, token any) (*container.InstanceWrapper, bool) {
	if m == nil || !decl.ValidToken(token) {
		return nil, false
	}
	if w, ok := m.Provider(token); ok {
		return w, true
	}
	return lookupInImports(m, token, map[*container.Module]bool{m: true}, false)
}

// lookupInImports searches the exports of m's imports. Past the first
// level only modules re-exported by their importer are traversed.
func lookupInImports(m *container.Module, token any, visited map[*container.Module]bool, traversing bool) (*container.InstanceWrapper, bool) {
	for _, related := range m.Imports() {
		if traversing && !m.HasExport(related.Metatype()) {
			continue
		}
		if visited[related] {
			continue
		}
		visited[related] = true
		if related.HasExport(token) {
			if w, ok := related.Provider(token); ok {
				return w, true
			}
		}
		if w, ok := lookupInImports(related, token, visited, true); ok {
			return w, true
		}
	}
	return nil, false
}

// find extends lookup with the controllers and enhancers of m.
func (i *Injector) find(m *container.Module, token any) (*container.InstanceWrapper, bool) {
	if m == nil {
		return nil, false
	}
	if w, ok := m.Controller(token); ok {
		return w, true
	}
	if w, ok := m.Injectable(token); ok {
		return w, true
	}
	return i.lookup(m, token)
}

// applyProperties sets exported struct fields of inst.
func applyProperties(inst any, props []decl.PropertyDep, values []any) error {
	if len(props) == 0 {
		return nil
	}
	rv := reflect.ValueOf(inst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: instance of type %T is not a pointer to a struct", diag.ErrUnsupportedProperty, inst)
	}
	target := rv.Elem()
	for idx, p := range props {
		field := target.FieldByName(p.Field)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("%w: %T has no settable field %q", diag.ErrUnsupportedProperty, inst, p.Field)
		}
		if values[idx] == nil {
			continue
		}
		v := reflect.ValueOf(values[idx])
		if !v.Type().AssignableTo(field.Type()) {
			return fmt.Errorf("%w: cannot assign %s to field %q of type %s", diag.ErrUnsupportedProperty, v.Type(), p.Field, field.Type())
		}
		field.Set(v)
	}
	return nil
}
