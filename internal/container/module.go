package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/metadata"
)

// Module is the registry entry of one unique module identity.
type Module struct {
	id       string
	token    string
	metatype *decl.Type
	reader   metadata.Reader

	mu        sync.RWMutex
	imports   []*Module
	importSet map[*Module]struct{}
	exports   []any
	exportSet map[any]struct{}
	distance  int
	global    bool
	scope     []any

	providers   *catalog
	injectables *catalog
	controllers *catalog
}

func newModule(token string, metatype *decl.Type, reader metadata.Reader, global bool) *Module {
	return &Module{
		id:          uuid.NewString(),
		token:       token,
		metatype:    metatype,
		reader:      reader,
		importSet:   make(map[*Module]struct{}),
		exportSet:   make(map[any]struct{}),
		global:      global,
		providers:   newCatalog(),
		injectables: newCatalog(),
		controllers: newCatalog(),
	}
}

func (m *Module) ID() string              { return m.id }
func (m *Module) Token() string           { return m.token }
func (m *Module) Metatype() *decl.Type    { return m.metatype }
func (m *Module) Name() string            { return m.metatype.String() }
func (m *Module) IsGlobal() bool          { return m.global }
func (m *Module) String() string          { return m.Name() }
func (m *Module) Reader() metadata.Reader { return m.reader }

// Scope returns the declarations the module was discovered through, root
// first. It is empty for the root and the core module.
func (m *Module) Scope() []any { return append([]any(nil), m.scope...) }

// Distance returns the advisory import depth from the root module.
func (m *Module) Distance() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.distance
}

// SetDistance records the import depth computed by the scanner.
func (m *Module) SetDistance(d int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.distance = d
}

// Imports returns the import edges in insertion order. Global modules bound
// after the scan appear last.
func (m *Module) Imports() []*Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Module(nil), m.imports...)
}

// AddImport records an import edge. Duplicates are ignored.
func (m *Module) AddImport(other *Module) {
	if other == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.importSet[other]; ok {
		return
	}
	m.importSet[other] = struct{}{}
	m.imports = append(m.imports, other)
}

// Exports returns the exported tokens in insertion order.
func (m *Module) Exports() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]any(nil), m.exports...)
}

// HasExport reports whether token is exported. Re-exported modules are
// recorded by their metatype.
func (m *Module) HasExport(token any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.exportSet[token]
	return ok
}

func (m *Module) Providers() []*InstanceWrapper   { return m.providers.values() }
func (m *Module) Injectables() []*InstanceWrapper { return m.injectables.values() }
func (m *Module) Controllers() []*InstanceWrapper { return m.controllers.values() }

// Provider returns the provider registered under token in this module only.
func (m *Module) Provider(token any) (*InstanceWrapper, bool) { return m.providers.get(token) }

// HasProvider reports whether token is in this module's own catalog.
func (m *Module) HasProvider(token any) bool { return m.providers.has(token) }

// Injectable returns the enhancer registered under token.
func (m *Module) Injectable(token any) (*InstanceWrapper, bool) { return m.injectables.get(token) }

// Controller returns the controller registered under token.
func (m *Module) Controller(token any) (*InstanceWrapper, bool) { return m.controllers.get(token) }

// addProvider catalogs a provider declaration and returns its token.
func (m *Module) addProvider(provider any, subtype string) (any, error) {
	w, err := m.wrap(provider, KindProvider)
	if err != nil {
		return nil, err
	}
	w.Subtype = subtype
	m.providers.set(w.Token, w)
	return w.Token, nil
}

// addInjectable catalogs an enhancer. Enhancers already known by token are
// reused; host, when set, records the enhancer on the host's wrapper.
func (m *Module) addInjectable(injectable any, subtype string, host *decl.Type) (*InstanceWrapper, error) {
	token, ok := decl.ProvideToken(injectable)
	if !ok {
		return nil, &diag.InvalidProviderError{Module: m.Name(), Provider: injectable, Reason: "enhancer must be a type or a provider declaration"}
	}
	w, exists := m.injectables.get(token)
	if !exists {
		var err error
		w, err = m.wrap(injectable, KindInjectable)
		if err != nil {
			return nil, err
		}
		w.Subtype = subtype
		w.HostClass = host
		m.injectables.set(w.Token, w)
	}
	if host != nil {
		hostWrapper, ok := m.controllers.get(host)
		if !ok {
			hostWrapper, ok = m.providers.get(host)
		}
		if ok {
			hostWrapper.addEnhancer(w)
		}
	}
	return w, nil
}

func (m *Module) addController(controller any) error {
	t, ok := controller.(*decl.Type)
	if !ok || t == nil {
		return &diag.InvalidProviderError{Module: m.Name(), Provider: controller, Reason: "controller must be a type"}
	}
	w := newWrapper(t, KindController, m)
	m.fromType(w, t, nil)
	m.controllers.set(t, w)
	return nil
}

// addExportedProvider records an export after validating that the token is
// an own provider or the metatype of an imported module.
func (m *Module) addExportedProvider(exported any) error {
	var token any
	switch e := exported.(type) {
	case *decl.DynamicModule:
		if e == nil || e.Module == nil {
			return &diag.UnknownExportError{Token: diag.DeclarationName(exported), Module: m.Name()}
		}
		token = e.Module
	default:
		if t, ok := decl.ProvideToken(exported); ok && decl.IsCustomProvider(exported) {
			token = t
		} else {
			token = exported
		}
	}
	if !decl.ValidToken(token) {
		return &diag.UnknownExportError{Token: decl.TokenName(token), Module: m.Name()}
	}
	if err := m.validateExport(token); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exportSet[token]; !ok {
		m.exportSet[token] = struct{}{}
		m.exports = append(m.exports, token)
	}
	return nil
}

func (m *Module) validateExport(token any) error {
	if m.providers.has(token) {
		return nil
	}
	for _, imp := range m.Imports() {
		if imp.metatype != nil && any(imp.metatype) == token {
			return nil
		}
	}
	return &diag.UnknownExportError{Token: decl.TokenName(token), Module: m.Name()}
}

// wrap turns any provider declaration shape into a wrapper.
func (m *Module) wrap(provider any, kind Kind) (*InstanceWrapper, error) {
	invalid := func(reason string) error {
		return &diag.InvalidProviderError{Module: m.Name(), Provider: provider, Reason: reason}
	}
	token, ok := decl.ProvideToken(provider)
	if !ok {
		return nil, invalid(fmt.Sprintf("unrecognized provider shape %T", provider))
	}
	if !decl.ValidToken(token) {
		return nil, invalid("provide token must be a non-empty string, a symbol or a type")
	}
	w := newWrapper(token, kind, m)

	switch p := provider.(type) {
	case *decl.Type:
		m.fromType(w, p, nil)
	case *decl.ClassProvider:
		if p.UseClass == nil {
			return nil, invalid("class provider without UseClass")
		}
		m.fromType(w, p.UseClass, p.Inject)
		if p.Scope != decl.Singleton {
			w.Scope = p.Scope
		}
	case *decl.ValueProvider:
		w.isValue = true
		w.value = p.UseValue
	case *decl.FactoryProvider:
		if p.UseFactory == nil {
			return nil, invalid("factory provider without UseFactory")
		}
		w.Factory = p.UseFactory
		w.Inject = append([]any(nil), p.Inject...)
		w.Scope = p.Scope
	case *decl.ExistingProvider:
		if !decl.ValidToken(p.UseExisting) {
			return nil, invalid("existing provider without a valid UseExisting token")
		}
		w.isAlias = true
		w.Inject = []any{p.UseExisting}
		w.Factory = func(_ context.Context, deps []any) (any, error) { return deps[0], nil }
	}
	return w, nil
}

// fromType fills a wrapper from a declared type and its metadata. A non-nil
// inject overrides the declared constructor dependencies.
func (m *Module) fromType(w *InstanceWrapper, t *decl.Type, inject []any) {
	w.Metatype = t
	if inject != nil {
		w.Inject = append([]any(nil), inject...)
	} else {
		w.Inject = m.reader.Get(metadata.Inject, t)
	}
	w.Optional = metadata.OptionalIndices(m.reader, t)
	w.Properties = metadata.PropertyDeps(m.reader, t)
	w.Scope = metadata.ScopeOf(m.reader, t)
}
