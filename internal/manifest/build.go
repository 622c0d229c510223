package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Build declares every manifest module into the registry's metadata table
// and returns the root module declaration, ready for bootstrap.
//
// Names resolve in this order: manifest modules, registered builders,
// registered types, registered tokens. A provider or inject name that
// matches nothing registered is used as a plain string token.
func Build(ctx context.Context, m *Manifest, reg *registry.Registry) (any, error) {
	logger := ctxlog.FromContext(ctx)
	b := &builder{
		manifest: m,
		reg:      reg,
		types:    make(map[string]*decl.Type, len(m.Modules)),
	}

	for _, mod := range m.Modules {
		if _, ok := reg.Type(mod.Name); ok {
			return nil, fmt.Errorf("module '%s' (%s) collides with a registered type of the same name", mod.Name, mod.file)
		}
		b.types[mod.Name] = decl.NewType(mod.Name, nil)
	}

	for _, mod := range m.Modules {
		opts, err := b.moduleOptions(ctx, mod)
		if err != nil {
			return nil, fmt.Errorf("module '%s' (%s): %w", mod.Name, mod.file, err)
		}
		reg.Table().DeclareModule(b.types[mod.Name], opts)
		logger.Debug("Declared manifest module.", "module", mod.Name, "imports", len(opts.Imports), "providers", len(opts.Providers))
	}
	return b.types[m.Root], nil
}

type builder struct {
	manifest *Manifest
	reg      *registry.Registry
	types    map[string]*decl.Type
}

func (b *builder) moduleOptions(ctx context.Context, mod *ModuleBlock) (metadata.ModuleOptions, error) {
	opts := metadata.ModuleOptions{Global: mod.Global}
	imported := make(map[string]any)

	for _, name := range mod.Imports {
		d, err := b.importable(ctx, name, cty.NullVal(cty.DynamicPseudoType))
		if err != nil {
			return opts, err
		}
		imported[name] = d
		opts.Imports = append(opts.Imports, d)
	}
	for _, imp := range mod.Dynamic {
		params, err := b.eval(imp.Params)
		if err != nil {
			return opts, fmt.Errorf("import '%s': %w", imp.Name, err)
		}
		d, err := b.importable(ctx, imp.Name, params)
		if err != nil {
			return opts, err
		}
		imported[imp.Name] = d
		opts.Imports = append(opts.Imports, d)
	}

	for _, p := range mod.Providers {
		d, err := b.provider(p)
		if err != nil {
			return opts, fmt.Errorf("provider '%s': %w", p.Token, err)
		}
		opts.Providers = append(opts.Providers, d)
	}

	for _, name := range mod.Controllers {
		t, ok := b.reg.Type(name)
		if !ok {
			return opts, fmt.Errorf("controller '%s' is not a registered type", name)
		}
		opts.Controllers = append(opts.Controllers, t)
	}

	for _, name := range mod.Exports {
		if d, ok := imported[name]; ok {
			opts.Exports = append(opts.Exports, d)
			continue
		}
		if t, ok := b.types[name]; ok {
			opts.Exports = append(opts.Exports, t)
			continue
		}
		opts.Exports = append(opts.Exports, b.token(name))
	}
	return opts, nil
}

// importable resolves an import name to a module declaration.
func (b *builder) importable(ctx context.Context, name string, params cty.Value) (any, error) {
	if t, ok := b.types[name]; ok {
		if !params.IsNull() {
			return nil, fmt.Errorf("import '%s': manifest modules take no params", name)
		}
		return t, nil
	}
	if _, ok := b.reg.Builder(name); ok {
		d, err := b.reg.Build(ctx, name, params)
		if err != nil {
			return nil, fmt.Errorf("import '%s': %w", name, err)
		}
		return d, nil
	}
	if t, ok := b.reg.Type(name); ok {
		if !params.IsNull() {
			return nil, fmt.Errorf("import '%s': registered type takes no params, register a builder instead", name)
		}
		return t, nil
	}
	return nil, fmt.Errorf("import '%s' is neither a manifest module, a registered builder nor a registered type", name)
}

func (b *builder) provider(p *ProviderBlock) (any, error) {
	value, err := b.eval(p.Value)
	if err != nil {
		return nil, err
	}
	set := 0
	for _, s := range []bool{!value.IsNull(), p.Type != "", p.Existing != "", p.Factory != ""} {
		if s {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("only one of type, value, existing or factory may be set")
	}

	var scope decl.Scope
	if p.Scope != "" {
		if scope, err = decl.ParseScope(p.Scope); err != nil {
			return nil, err
		}
	}
	var inject []any
	for _, name := range p.Inject {
		inject = append(inject, b.token(name))
	}
	token := b.token(p.Token)

	switch {
	case !value.IsNull():
		if p.Scope != "" || p.Inject != nil {
			return nil, fmt.Errorf("value providers take neither scope nor inject")
		}
		native, err := ctyToNative(value)
		if err != nil {
			return nil, err
		}
		return &decl.ValueProvider{Provide: token, UseValue: native}, nil

	case p.Existing != "":
		return &decl.ExistingProvider{Provide: token, UseExisting: b.token(p.Existing)}, nil

	case p.Factory != "":
		f, ok := b.reg.Factory(p.Factory)
		if !ok {
			return nil, fmt.Errorf("factory '%s' is not registered", p.Factory)
		}
		if p.Inject == nil {
			for _, name := range f.Inject {
				inject = append(inject, b.token(name))
			}
		}
		return &decl.FactoryProvider{Provide: token, UseFactory: f.Fn, Inject: inject, Scope: scope}, nil
	}

	typeName := p.Type
	if typeName == "" {
		typeName = p.Token
	}
	t, ok := b.reg.Type(typeName)
	if !ok {
		return nil, fmt.Errorf("type '%s' is not registered", typeName)
	}
	if token == any(t) && p.Scope == "" && p.Inject == nil {
		return t, nil
	}
	return &decl.ClassProvider{Provide: token, UseClass: t, Scope: scope, Inject: inject}, nil
}

// token maps a manifest name to an injection token.
func (b *builder) token(name string) any {
	if t, ok := b.reg.Token(name); ok {
		return t
	}
	if t, ok := b.types[name]; ok {
		return t
	}
	return name
}

func (b *builder) eval(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	v, diags := expr.Value(b.manifest.evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}
