package metadata

import "github.com/vk/modgraph/internal/decl"

// ModuleOptions mirrors the declaration of a module type.
type ModuleOptions struct {
	Imports     []any
	Providers   []any
	Controllers []any
	Exports     []any
	Global      bool
}

// InjectableOptions mirrors the declaration of an injectable type.
type InjectableOptions struct {
	Scope      decl.Scope
	Inject     []any
	Optional   []int
	Properties []decl.PropertyDep
}

// DeclareModule records module metadata for t.
func (t *Table) DeclareModule(target *decl.Type, opts ModuleOptions) *Table {
	t.Define(Imports, target, opts.Imports...)
	t.Define(Providers, target, opts.Providers...)
	t.Define(Controllers, target, opts.Controllers...)
	t.Define(Exports, target, opts.Exports...)
	if opts.Global {
		t.Define(Global, target, true)
	}
	return t
}

// DeclareInjectable marks target as injectable and records its dependencies.
func (t *Table) DeclareInjectable(target *decl.Type, opts InjectableOptions) *Table {
	t.Define(Injectable, target, true)
	t.declareDeps(target, opts)
	return t
}

// DeclareController marks target as a controller and records its dependencies.
func (t *Table) DeclareController(target *decl.Type, opts InjectableOptions) *Table {
	t.Define(Controller, target, true)
	t.declareDeps(target, opts)
	return t
}

// DeclareFilter marks target as an exception filter.
func (t *Table) DeclareFilter(target *decl.Type, opts InjectableOptions) *Table {
	t.Define(Catch, target, true)
	t.Define(Injectable, target, true)
	t.declareDeps(target, opts)
	return t
}

func (t *Table) declareDeps(target *decl.Type, opts InjectableOptions) {
	if opts.Scope != decl.Singleton {
		t.Define(ScopeKey, target, opts.Scope)
	}
	t.Define(Inject, target, opts.Inject...)
	for _, idx := range opts.Optional {
		t.Define(Optional, target, idx)
	}
	for _, p := range opts.Properties {
		t.Define(Properties, target, p)
	}
}

// IsInjectable reports whether target is marked injectable.
func IsInjectable(r Reader, target *decl.Type) bool {
	return len(r.Get(Injectable, target)) > 0
}

// IsController reports whether target is marked as a controller.
func IsController(r Reader, target *decl.Type) bool {
	return len(r.Get(Controller, target)) > 0
}

// IsExceptionFilter reports whether target is marked as an exception filter.
func IsExceptionFilter(r Reader, target *decl.Type) bool {
	return len(r.Get(Catch, target)) > 0
}

// IsGlobal reports whether target is declared as a global module.
func IsGlobal(r Reader, target *decl.Type) bool {
	for _, v := range r.Get(Global, target) {
		if b, ok := v.(bool); ok && b {
			return true
		}
	}
	return false
}

// ScopeOf returns the declared scope of target.
func ScopeOf(r Reader, target *decl.Type) decl.Scope {
	vals := r.Get(ScopeKey, target)
	if len(vals) == 0 {
		return decl.Singleton
	}
	if s, ok := vals[len(vals)-1].(decl.Scope); ok {
		return s
	}
	return decl.Singleton
}

// OptionalIndices returns the set of optional constructor dependency
// positions of target.
func OptionalIndices(r Reader, target *decl.Type) map[int]bool {
	out := make(map[int]bool)
	for _, v := range r.Get(Optional, target) {
		if i, ok := v.(int); ok {
			out[i] = true
		}
	}
	return out
}

// PropertyDeps returns the property dependencies declared on target and
// its base types, closest first.
func PropertyDeps(r Reader, target *decl.Type) []decl.PropertyDep {
	var out []decl.PropertyDep
	seen := make(map[string]bool)
	for cur := target; cur != nil; cur = cur.Base {
		for _, v := range r.Get(Properties, cur) {
			p, ok := v.(decl.PropertyDep)
			if !ok || seen[p.Field] {
				continue
			}
			seen[p.Field] = true
			out = append(out, p)
		}
	}
	return out
}
