package registry

import (
	"sort"

	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
)

// Module is the interface that all compiled modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered types, tokens, factories and builders
// for a single application instance.
type Registry struct {
	table     *metadata.Table
	types     map[string]*decl.Type
	tokens    map[string]any
	factories map[string]*RegisteredFactory
	builders  map[string]*RegisteredBuilder
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		table:     metadata.NewTable(),
		types:     make(map[string]*decl.Type),
		tokens:    make(map[string]any),
		factories: make(map[string]*RegisteredFactory),
		builders:  make(map[string]*RegisteredBuilder),
	}
}

// Load registers every module with r.
func (r *Registry) Load(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Table returns the metadata table compiled modules declare into.
func (r *Registry) Table() *metadata.Table { return r.table }

// Type returns the type registered under name.
func (r *Registry) Type(name string) (*decl.Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Token returns the injection token registered under name. Every
// registered type is also a token.
func (r *Registry) Token(name string) (any, bool) {
	t, ok := r.tokens[name]
	return t, ok
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (*RegisteredFactory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Builder returns the dynamic-module builder registered under name.
func (r *Registry) Builder(name string) (*RegisteredBuilder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// TypeNames returns the registered type names, sorted.
func (r *Registry) TypeNames() []string { return sortedKeys(r.types) }

// BuilderNames returns the registered builder names, sorted.
func (r *Registry) BuilderNames() []string { return sortedKeys(r.builders) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
