// Package scanner discovers the module graph from a root declaration and
// populates the container: module entities first, then their imports,
// providers, enhancers, controllers and exports, then advisory distances,
// and finally the global scope bindings.
package scanner

import (
	"context"
	"fmt"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/vk/modgraph/internal/metadata"
)

// CoreModule is the type of the internal core module.
var CoreModule = decl.NewType("InternalCoreModule", nil)

// Scanner populates a Container. It is bound to a single bootstrap.
type Scanner struct {
	container *container.Container
	reader    metadata.Reader
	inspector inspector.Inspector
	scanned   bool
	root      *container.Module
}

// New returns a Scanner writing into c.
func New(c *container.Container, insp inspector.Inspector) *Scanner {
	if insp == nil {
		insp = inspector.Noop{}
	}
	return &Scanner{container: c, reader: c.Reader(), inspector: insp}
}

// Scan builds the complete module graph reachable from root.
func (s *Scanner) Scan(ctx context.Context, root any) error {
	if s.scanned {
		return fmt.Errorf("scanner: graph already scanned")
	}
	s.scanned = true
	logger := ctxlog.FromContext(ctx)

	if err := s.registerCoreModule(ctx); err != nil {
		return err
	}
	refs, err := s.scanForModules(ctx, root, nil, newDeclRegistry())
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("scanner: root %s is already registered", diag.DeclarationName(root))
	}
	s.root = refs[0]
	logger.Debug("Module discovery finished.", "modules", len(s.container.GetModules()))

	if err := s.ScanModulesForDependencies(ctx); err != nil {
		return err
	}
	s.CalculateModulesDistance()
	s.container.BindGlobalScope()
	logger.Debug("Module graph scanned.", "globals", len(s.container.GlobalModules()))
	return nil
}

// Root returns the module the root declaration was registered as, or nil
// before a successful Scan.
func (s *Scanner) Root() *container.Module { return s.root }

// registerCoreModule inserts the internal core module. It is always the
// first module in the registry.
func (s *Scanner) registerCoreModule(ctx context.Context) error {
	core := &decl.DynamicModule{
		Module: CoreModule,
		Global: true,
		Key:    "InternalCoreModule",
		Providers: []any{
			&decl.ValueProvider{Provide: container.ReaderToken, UseValue: s.reader},
			&decl.ValueProvider{Provide: container.InspectorToken, UseValue: s.inspector},
			&decl.ValueProvider{Provide: container.ContainerToken, UseValue: s.container},
		},
		Exports: []any{container.ReaderToken, container.InspectorToken, container.ContainerToken},
	}
	refs, err := s.scanForModules(ctx, core, nil, newDeclRegistry())
	if err != nil {
		return fmt.Errorf("registering core module: %w", err)
	}
	if len(refs) > 0 {
		s.container.RegisterCoreModule(refs[0])
	}
	return nil
}

// declRegistry is the per-pass set of declarations already traversed.
type declRegistry struct {
	seen []any
}

func newDeclRegistry() *declRegistry { return &declRegistry{} }

func (r *declRegistry) add(d any) { r.seen = append(r.seen, d) }

func (r *declRegistry) includes(d any) bool {
	for _, s := range r.seen {
		if decl.SameDeclaration(s, d) {
			return true
		}
	}
	return false
}

// scanForModules inserts def and, depth first, every declaration it
// imports. It returns the modules newly inserted during this call.
func (s *Scanner) scanForModules(ctx context.Context, def any, scope []any, registry *declRegistry) ([]*container.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	original := def
	if decl.IsPending(def) {
		resolved, err := def.(*decl.Pending).Result(ctx)
		if err != nil {
			return nil, fmt.Errorf("awaiting module declaration (scope [%s]): %w", diag.Path(scope), err)
		}
		registry.add(original)
		def = resolved
	}

	m, inserted, err := s.insertModule(ctx, def, scope)
	if err != nil {
		return nil, err
	}
	registry.add(def)
	if decl.IsForwardReference(def) {
		def = def.(*decl.ForwardReference).Resolve()
	}

	imports := s.declaredImports(def)
	var registered []*container.Module
	for i, inner := range imports {
		if registry.includes(inner) {
			continue
		}
		if inner == nil {
			return nil, &diag.UndefinedModuleError{Parent: def, Index: i, Scope: scope}
		}
		if decl.IsFalsy(inner) || !decl.IsModuleDeclaration(inner) {
			return nil, &diag.InvalidModuleError{Parent: def, Index: i, Scope: scope}
		}
		refs, err := s.scanForModules(ctx, inner, append(append([]any{}, scope...), def), registry)
		if err != nil {
			return nil, err
		}
		registered = append(registered, refs...)
	}

	if !inserted {
		return registered, nil
	}
	return append([]*container.Module{m}, registered...), nil
}

// insertModule validates def and adds it to the container.
func (s *Scanner) insertModule(ctx context.Context, def any, scope []any) (*container.Module, bool, error) {
	toAdd := def
	if decl.IsForwardReference(def) {
		toAdd = def.(*decl.ForwardReference).Resolve()
	}
	if t, ok := toAdd.(*decl.Type); ok && t != nil {
		if metadata.IsInjectable(s.reader, t) || metadata.IsController(s.reader, t) || metadata.IsExceptionFilter(s.reader, t) {
			return nil, false, &diag.InvalidClassModuleError{Declaration: t, Scope: scope}
		}
	}
	return s.container.AddModule(ctx, toAdd, scope)
}

// declaredImports merges statically declared imports with the inline
// imports of a dynamic module.
func (s *Scanner) declaredImports(def any) []any {
	switch d := def.(type) {
	case *decl.Type:
		return s.reader.Get(metadata.Imports, d)
	case *decl.DynamicModule:
		return append(s.reader.Get(metadata.Imports, d.Module), d.Imports...)
	}
	return nil
}
