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

// Tokens of the framework-level singletons provided by the core module.
var (
	ReaderToken    = decl.NewSymbol("MetadataReader")
	InspectorToken = decl.NewSymbol("GraphInspector")
	ContainerToken = decl.NewSymbol("ModulesContainer")
	// ModuleRefToken is provided by every module and resolves to that
	// module's *ModuleRef.
	ModuleRefToken = decl.NewType("ModuleRef", nil)
)

// Application-wide enhancer tokens. Providers registered under one of these
// are re-keyed to a generated unique token and tracked by the container.
const (
	AppGuard       = "APP_GUARD"
	AppInterceptor = "APP_INTERCEPTOR"
	AppFilter      = "APP_FILTER"
	AppPipe        = "APP_PIPE"
)

// EnhancerSubtypes maps application-wide enhancer tokens to their subtype.
var EnhancerSubtypes = map[string]string{
	AppGuard:       "guard",
	AppInterceptor: "interceptor",
	AppFilter:      "filter",
	AppPipe:        "pipe",
}

// AppEnhancer records one application-wide enhancer registration.
type AppEnhancer struct {
	Type        string
	ModuleToken string
	ProviderKey string
	Scope       decl.Scope
}

// Resolver resolves a token from the point of view of a module. It is
// installed by the injector and backs ModuleRef lookups.
type Resolver interface {
	Resolve(ctx context.Context, m *Module, token any) (any, error)
}

// Container is the module registry of one bootstrap.
type Container struct {
	mu        sync.RWMutex
	modules   []*Module
	byToken   map[string]*Module
	dynamic   map[string]*decl.DynamicModule
	globals   []*Module
	core      *Module
	enhancers []AppEnhancer
	resolver  Resolver

	compiler *Compiler
	reader   metadata.Reader
}

// New returns an empty Container reading declarations through reader.
func New(reader metadata.Reader) *Container {
	return &Container{
		byToken:  make(map[string]*Module),
		dynamic:  make(map[string]*decl.DynamicModule),
		compiler: NewCompiler(),
		reader:   reader,
	}
}

// Reader returns the metadata reader the container catalogs with.
func (c *Container) Reader() metadata.Reader { return c.reader }

// Compiler returns the module compiler of this container.
func (c *Container) Compiler() *Compiler { return c.compiler }

// AddModule registers a module declaration. It is idempotent by identity
// token: re-adding a known module returns the existing entity with
// inserted set to false. A nil declaration is an unresolved forward
// reference.
func (c *Container) AddModule(ctx context.Context, declaration any, scope []any) (m *Module, inserted bool, err error) {
	if declaration == nil {
		return nil, false, &diag.UndefinedForwardRefError{Scope: scope}
	}
	compiled, err := c.compiler.Compile(ctx, declaration)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byToken[compiled.Token]; ok {
		return existing, false, nil
	}

	global := metadata.IsGlobal(c.reader, compiled.Type) || (compiled.Dynamic != nil && compiled.Dynamic.Global)
	m = newModule(compiled.Token, compiled.Type, c.reader, global)
	m.scope = append([]any(nil), scope...)
	m.providers.set(ModuleRefToken, c.moduleRefWrapper(m))

	c.modules = append(c.modules, m)
	c.byToken[compiled.Token] = m
	if compiled.Dynamic != nil {
		c.dynamic[compiled.Token] = compiled.Dynamic
	}
	if global {
		c.globals = append(c.globals, m)
	}
	return m, true, nil
}

func (c *Container) moduleRefWrapper(m *Module) *InstanceWrapper {
	w := newWrapper(ModuleRefToken, KindProvider, m)
	w.isValue = true
	w.value = &ModuleRef{module: m, container: c}
	return w
}

// Has reports whether a module with token is registered.
func (c *Container) Has(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byToken[token]
	return ok
}

// ModuleByToken returns the module registered under token.
func (c *Container) ModuleByToken(token string) (*Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byToken[token]
	if !ok {
		return nil, &diag.UnknownModuleError{Token: token}
	}
	return m, nil
}

// ModuleOf returns the module registered for a declaration.
func (c *Container) ModuleOf(ctx context.Context, declaration any) (*Module, error) {
	if decl.IsForwardReference(declaration) {
		declaration = declaration.(*decl.ForwardReference).Resolve()
	}
	compiled, err := c.compiler.Compile(ctx, declaration)
	if err != nil {
		return nil, err
	}
	return c.ModuleByToken(compiled.Token)
}

// GetModules returns all modules in registration order. The core module,
// when registered, is first.
func (c *Container) GetModules() []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Module(nil), c.modules...)
}

// GetDynamicMetadataByToken returns the inline metadata recorded for key
// on the dynamic module registered under token.
func (c *Container) GetDynamicMetadataByToken(token string, key metadata.Key) []any {
	c.mu.RLock()
	dm, ok := c.dynamic[token]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	switch key {
	case metadata.Imports:
		return dm.Imports
	case metadata.Providers:
		return dm.Providers
	case metadata.Exports:
		return dm.Exports
	case metadata.Controllers:
		return dm.Controllers
	}
	return nil
}

// DynamicMetadata returns the dynamic descriptor recorded for token.
func (c *Container) DynamicMetadata(token string) (*decl.DynamicModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dm, ok := c.dynamic[token]
	return dm, ok
}

// AddImport records that the module registered under token imports the
// related declaration. An unknown importing module is an error.
func (c *Container) AddImport(ctx context.Context, related any, token string) error {
	m, err := c.ModuleByToken(token)
	if err != nil {
		return err
	}
	compiled, err := c.compiler.Compile(ctx, related)
	if err != nil {
		return err
	}
	target, err := c.ModuleByToken(compiled.Token)
	if err != nil {
		return err
	}
	m.AddImport(target)
	return nil
}

// AddProvider catalogs provider in the module registered under token and
// returns the provider's token.
func (c *Container) AddProvider(provider any, token string, subtype string) (any, error) {
	m, err := c.ModuleByToken(token)
	if err != nil {
		return nil, err
	}
	return m.addProvider(provider, subtype)
}

// AddInjectable catalogs an enhancer used by host in the module registered
// under token.
func (c *Container) AddInjectable(injectable any, token string, subtype string, host *decl.Type) (*InstanceWrapper, error) {
	m, err := c.ModuleByToken(token)
	if err != nil {
		return nil, err
	}
	return m.addInjectable(injectable, subtype, host)
}

// AddController catalogs a controller type.
func (c *Container) AddController(controller any, token string) error {
	m, err := c.ModuleByToken(token)
	if err != nil {
		return err
	}
	return m.addController(controller)
}

// AddExportedProvider records an export of the module registered under
// token.
func (c *Container) AddExportedProvider(exported any, token string) error {
	m, err := c.ModuleByToken(token)
	if err != nil {
		return err
	}
	return m.addExportedProvider(exported)
}

// AddApplicationEnhancer re-keys an APP_* provider declaration to a unique
// token, records it and returns the rewritten declaration.
func (c *Container) AddApplicationEnhancer(provider any, moduleToken string) (any, AppEnhancer, error) {
	kind, _ := decl.ProvideToken(provider)
	typ, _ := kind.(string)
	key := fmt.Sprintf("%s (UUID: %s)", typ, uuid.NewString())
	enh := AppEnhancer{Type: typ, ModuleToken: moduleToken, ProviderKey: key}

	var rewritten any
	switch p := provider.(type) {
	case *decl.ClassProvider:
		cp := *p
		cp.Provide = key
		if cp.Scope == decl.Singleton && cp.UseClass != nil {
			cp.Scope = metadata.ScopeOf(c.reader, cp.UseClass)
		}
		enh.Scope = cp.Scope
		rewritten = &cp
	case *decl.FactoryProvider:
		fp := *p
		fp.Provide = key
		enh.Scope = fp.Scope
		rewritten = &fp
	case *decl.ValueProvider:
		vp := *p
		vp.Provide = key
		rewritten = &vp
	case *decl.ExistingProvider:
		ep := *p
		ep.Provide = key
		rewritten = &ep
	default:
		return nil, AppEnhancer{}, &diag.InvalidProviderError{Module: moduleToken, Provider: provider, Reason: "application enhancers must be provider declarations"}
	}

	c.mu.Lock()
	c.enhancers = append(c.enhancers, enh)
	c.mu.Unlock()
	return rewritten, enh, nil
}

// ApplicationEnhancers returns every APP_* enhancer registration.
func (c *Container) ApplicationEnhancers() []AppEnhancer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]AppEnhancer(nil), c.enhancers...)
}

// AddGlobalModule marks m as part of the global scope.
func (c *Container) AddGlobalModule(m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.globals {
		if g == m {
			return
		}
	}
	m.global = true
	c.globals = append(c.globals, m)
}

// GlobalModules returns the global scope in registration order.
func (c *Container) GlobalModules() []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Module(nil), c.globals...)
}

// BindGlobalScope makes every global module visible to every module as a
// trailing import.
func (c *Container) BindGlobalScope() {
	for _, m := range c.GetModules() {
		c.BindGlobalsToImports(m)
	}
}

// BindGlobalsToImports binds the global scope to a single module.
func (c *Container) BindGlobalsToImports(m *Module) {
	for _, g := range c.GlobalModules() {
		c.BindGlobalModuleToModule(m, g)
	}
}

// BindGlobalModuleToModule adds global as an import of target. Neither a
// global module itself nor the core module gets the edge.
func (c *Container) BindGlobalModuleToModule(target, global *Module) {
	if target == global || target == c.InternalCoreModule() {
		return
	}
	target.AddImport(global)
}

// RegisterCoreModule designates m as the internal core module.
func (c *Container) RegisterCoreModule(m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.core = m
}

// InternalCoreModule returns the core module, or nil before the scan.
func (c *Container) InternalCoreModule() *Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.core
}

// SetResolver installs the resolver used by ModuleRef lookups.
func (c *Container) SetResolver(r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver = r
}

func (c *Container) getResolver() Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// ModuleRef lets a unit look up other units visible from its module at
// run time.
type ModuleRef struct {
	module    *Module
	container *Container
}

// Module returns the module this reference belongs to.
func (r *ModuleRef) Module() *Module { return r.module }

// Get resolves token as if it were a dependency of a unit in the module.
func (r *ModuleRef) Get(ctx context.Context, token any) (any, error) {
	resolver := r.container.getResolver()
	if resolver == nil {
		return nil, fmt.Errorf("module %s: instances are not available before instantiation", r.module.Name())
	}
	return resolver.Resolve(ctx, r.module, token)
}
