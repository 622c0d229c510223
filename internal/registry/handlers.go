package registry

import (
	"fmt"
	"log/slog"

	"github.com/vk/modgraph/internal/decl"
)

// RegisterType registers a module, provider or controller type under its
// name. The type is also registered as a token.
func (r *Registry) RegisterType(t *decl.Type) {
	if _, exists := r.types[t.Name]; exists {
		panic(fmt.Sprintf("type with name '%s' already registered", t.Name))
	}
	slog.Debug("Registering type.", "name", t.Name)
	r.types[t.Name] = t
	r.tokens[t.Name] = t
}

// RegisterToken exposes a non-type injection token, such as a symbol, to
// manifests under name.
func (r *Registry) RegisterToken(name string, token any) {
	if _, exists := r.tokens[name]; exists {
		panic(fmt.Sprintf("token with name '%s' already registered", name))
	}
	slog.Debug("Registering token.", "name", name)
	r.tokens[name] = token
}

// RegisteredFactory holds a Go factory usable by manifest factory providers.
type RegisteredFactory struct {
	Fn decl.Factory
	// Inject lists the default dependency token names, used when the
	// manifest provider declares none.
	Inject []string
}

// RegisterFactory registers a factory function under name.
func (r *Registry) RegisterFactory(name string, f *RegisteredFactory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("factory with name '%s' already registered", name))
	}
	slog.Debug("Registering factory.", "name", name)
	r.factories[name] = f
}

// RegisteredBuilder produces a module declaration, typically a dynamic
// module, from manifest parameters.
type RegisteredBuilder struct {
	// NewParams returns a pointer to the struct manifest params decode
	// into, using `cty` field tags. Nil means the builder takes no params.
	NewParams func() any
	Build     func(params any) (any, error)
}

// RegisterBuilder registers a dynamic-module builder under name.
func (r *Registry) RegisterBuilder(name string, b *RegisteredBuilder) {
	if _, exists := r.builders[name]; exists {
		panic(fmt.Sprintf("builder with name '%s' already registered", name))
	}
	slog.Debug("Registering builder.", "name", name)
	r.builders[name] = b
}
