package scanner

import (
	"context"
	"fmt"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/vk/modgraph/internal/metadata"
)

// ScanModulesForDependencies populates every registered module's import
// edges, catalogs and exports.
func (s *Scanner) ScanModulesForDependencies(ctx context.Context) error {
	for _, m := range s.container.GetModules() {
		if err := s.reflectImports(ctx, m); err != nil {
			return err
		}
		if err := s.reflectProviders(m); err != nil {
			return err
		}
		if err := s.reflectControllers(m); err != nil {
			return err
		}
		if err := s.reflectExports(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) merged(m *container.Module, key metadata.Key) []any {
	return append(s.reader.Get(key, m.Metatype()), s.container.GetDynamicMetadataByToken(m.Token(), key)...)
}

func (s *Scanner) reflectImports(ctx context.Context, m *container.Module) error {
	for _, related := range s.merged(m, metadata.Imports) {
		if err := s.insertImport(ctx, related, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) insertImport(ctx context.Context, related any, m *container.Module) error {
	if related == nil {
		return &diag.CircularDependencyError{Context: m.Name(), Scope: importPath(m)}
	}
	if decl.IsForwardReference(related) {
		related = related.(*decl.ForwardReference).Resolve()
		if related == nil {
			return &diag.CircularDependencyError{Context: m.Name(), Scope: importPath(m)}
		}
	}
	if decl.IsPending(related) {
		resolved, err := related.(*decl.Pending).Result(ctx)
		if err != nil {
			return fmt.Errorf("awaiting import of %s (scope [%s]): %w", m.Name(), diag.Path(importPath(m)), err)
		}
		related = resolved
	}
	return s.container.AddImport(ctx, related, m.Token())
}

// importPath is the declaration path from the root down to m.
func importPath(m *container.Module) []any {
	return append(m.Scope(), m.Metatype())
}

func (s *Scanner) reflectProviders(m *container.Module) error {
	for _, provider := range s.merged(m, metadata.Providers) {
		if err := s.insertProvider(provider, m); err != nil {
			return err
		}
		if err := s.reflectDynamicMetadata(provider, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) reflectControllers(m *container.Module) error {
	for _, ctrl := range s.merged(m, metadata.Controllers) {
		if err := s.container.AddController(ctrl, m.Token()); err != nil {
			return err
		}
		if err := s.reflectDynamicMetadata(ctrl, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) reflectExports(m *container.Module) error {
	for _, exported := range s.merged(m, metadata.Exports) {
		if decl.IsForwardReference(exported) {
			exported = exported.(*decl.ForwardReference).Resolve()
		}
		if err := s.container.AddExportedProvider(exported, m.Token()); err != nil {
			return err
		}
	}
	return nil
}

// insertProvider catalogs a provider. APP_* enhancer providers are re-keyed
// and, when request or transient scoped, cataloged as injectables.
func (s *Scanner) insertProvider(provider any, m *container.Module) error {
	token, _ := decl.ProvideToken(provider)
	name, isString := token.(string)
	subtype, isApp := container.EnhancerSubtypes[name]
	if !decl.IsCustomProvider(provider) || !isString || !isApp {
		_, err := s.container.AddProvider(provider, m.Token(), "")
		return err
	}

	rewritten, enh, err := s.container.AddApplicationEnhancer(provider, m.Token())
	if err != nil {
		return err
	}
	if enh.Scope == decl.Request || enh.Scope == decl.Transient {
		_, err = s.container.AddInjectable(rewritten, m.Token(), subtype, nil)
		return err
	}
	_, err = s.container.AddProvider(rewritten, m.Token(), subtype)
	return err
}

// reflectDynamicMetadata reflects class-level and method-level enhancers
// and parameter pipes declared on a unit type.
func (s *Scanner) reflectDynamicMetadata(unit any, m *container.Module) error {
	t, ok := unit.(*decl.Type)
	if !ok || t == nil {
		return nil
	}
	for _, ek := range metadata.EnhancerKeys {
		if err := s.reflectInjectables(t, m, ek.Key, ek.Subtype); err != nil {
			return err
		}
	}
	return s.reflectParamInjectables(t, m)
}

func (s *Scanner) reflectInjectables(t *decl.Type, m *container.Module, key metadata.Key, subtype string) error {
	for _, injectable := range s.reader.Get(key, t) {
		if err := s.insertInjectable(injectable, m, t, subtype, ""); err != nil {
			return err
		}
	}
	for _, method := range t.AllMethods() {
		for _, injectable := range s.reader.GetMethod(key, t, method) {
			if err := s.insertInjectable(injectable, m, t, subtype, method); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) reflectParamInjectables(t *decl.Type, m *container.Module) error {
	for _, method := range t.AllMethods() {
		for _, entry := range s.reader.GetMethod(metadata.RouteArgs, t, method) {
			params, ok := entry.(decl.ParamPipes)
			if !ok {
				continue
			}
			for _, pipe := range params.Pipes {
				if err := s.insertInjectable(pipe, m, t, "pipe", method); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// insertInjectable catalogs enhancer types. Enhancers declared as instances
// are only reported to the inspector.
func (s *Scanner) insertInjectable(injectable any, m *container.Module, host *decl.Type, subtype, method string) error {
	if t, ok := injectable.(*decl.Type); ok && t != nil {
		w, err := s.container.AddInjectable(t, m.Token(), subtype, host)
		if err != nil {
			return err
		}
		s.inspector.InsertEnhancerMetadata(inspector.EnhancerEntry{
			ModuleToken: m.Token(),
			ClassRef:    host,
			MethodKey:   method,
			Subtype:     subtype,
			Wrapper:     w,
		})
		return nil
	}
	s.inspector.InsertEnhancerMetadata(inspector.EnhancerEntry{
		ModuleToken: m.Token(),
		ClassRef:    host,
		MethodKey:   method,
		Subtype:     subtype,
		EnhancerRef: injectable,
	})
	return nil
}

// CalculateModulesDistance assigns import depths from the root module. The
// first depth-first path to reach a module decides its distance; modules
// are never revisited. The core module is skipped.
func (s *Scanner) CalculateModulesDistance() {
	core := s.container.InternalCoreModule()
	root := s.root
	if root == nil {
		for _, m := range s.container.GetModules() {
			if m != core {
				root = m
				break
			}
		}
	}
	if root == nil {
		return
	}

	visited := map[*container.Module]bool{root: true}
	if core != nil {
		visited[core] = true
	}
	var walk func(m *container.Module, distance int)
	walk = func(m *container.Module, distance int) {
		for _, imp := range m.Imports() {
			if visited[imp] {
				continue
			}
			visited[imp] = true
			imp.SetDistance(distance)
			walk(imp, distance+1)
		}
	}
	walk(root, 1)
}
