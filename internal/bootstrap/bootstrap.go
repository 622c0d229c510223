// Package bootstrap turns a root module declaration into a running
// application: it scans the module graph, instantiates every static unit
// and exposes lookups over the result.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/injector"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/scanner"
)

// Options configures Create.
type Options struct {
	// Preview validates the whole graph without running constructors.
	Preview bool
	// Snapshot records the graph with an inspector.Graph when Inspector
	// is not set.
	Snapshot bool
	// Reader supplies the declared metadata. Required.
	Reader metadata.Reader
	// Inspector overrides the inspector chosen from Snapshot. A caller
	// that wants the partial graph of a failed bootstrap passes its own.
	Inspector inspector.Inspector
}

// Application is a bootstrapped module graph.
type Application struct {
	root      *container.Module
	container *container.Container
	injector  *injector.Injector
	inspector inspector.Inspector
	preview   bool
	enhancers map[string][]any
}

// Create scans root, instantiates its graph and returns the application.
// Any failure aborts the bootstrap; the inspector is left marked partial.
func Create(ctx context.Context, root any, opts Options) (*Application, error) {
	if opts.Reader == nil {
		return nil, errors.New("bootstrap: a metadata reader is required")
	}
	insp := opts.Inspector
	if insp == nil {
		if opts.Snapshot {
			insp = inspector.NewGraph()
		} else {
			insp = inspector.Noop{}
		}
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting module graph bootstrap.", "root", diag.DeclarationName(root), "preview", opts.Preview)

	c := container.New(opts.Reader)
	scan := scanner.New(c, insp)
	if err := scan.Scan(ctx, root); err != nil {
		insp.InspectModules(c.GetModules())
		insp.RegisterPartial(err)
		return nil, fmt.Errorf("scanning module graph: %w", err)
	}

	inj := injector.New(c, insp, injector.Options{Preview: opts.Preview})
	loader := injector.NewInstanceLoader(c, inj, insp)
	if err := loader.CreateInstancesOfDependencies(ctx, c.GetModules()); err != nil {
		return nil, fmt.Errorf("instantiating module graph: %w", err)
	}

	app := &Application{
		root:      scan.Root(),
		container: c,
		injector:  inj,
		inspector: insp,
		preview:   opts.Preview,
		enhancers: make(map[string][]any),
	}
	if err := app.applyApplicationProviders(ctx); err != nil {
		return nil, err
	}
	logger.Info("Module graph bootstrapped.", "modules", len(c.GetModules()))
	return app, nil
}

// applyApplicationProviders collects the static APP_* enhancer instances.
// Request and transient scoped ones are resolved by the caller per use.
func (a *Application) applyApplicationProviders(ctx context.Context) error {
	if a.preview {
		return nil
	}
	for _, enh := range a.container.ApplicationEnhancers() {
		if enh.Scope == decl.Request || enh.Scope == decl.Transient {
			continue
		}
		m, err := a.container.ModuleByToken(enh.ModuleToken)
		if err != nil {
			return err
		}
		w, ok := m.Provider(enh.ProviderKey)
		if !ok || !w.IsStatic() {
			continue
		}
		inst, err := a.injector.Get(ctx, w)
		if err != nil {
			return fmt.Errorf("applying %s: %w", enh.ProviderKey, err)
		}
		a.enhancers[enh.Type] = append(a.enhancers[enh.Type], inst)
	}
	return nil
}

// Enhancers returns the static application-wide enhancers registered
// under kind, one of container.AppGuard, AppInterceptor, AppFilter or
// AppPipe, in registration order.
func (a *Application) Enhancers(kind string) []any {
	return append([]any(nil), a.enhancers[kind]...)
}

// Get returns the instance registered under token anywhere in the graph.
// The root module is searched first, then every module in registration
// order.
func (a *Application) Get(ctx context.Context, token any) (any, error) {
	w, _, err := a.find(token)
	if err != nil {
		return nil, err
	}
	return a.injector.Get(ctx, w)
}

// GetFrom resolves token as seen from the module of declaration: its own
// units, then what its imports export.
func (a *Application) GetFrom(ctx context.Context, declaration any, token any) (any, error) {
	m, err := a.container.ModuleOf(ctx, declaration)
	if err != nil {
		return nil, err
	}
	return a.injector.Resolve(ctx, m, token)
}

// ResolvePerContext returns the instance of token for the request context
// id, building request-scoped units once per id.
func (a *Application) ResolvePerContext(ctx context.Context, token any, id container.ContextID) (any, error) {
	_, m, err := a.find(token)
	if err != nil {
		return nil, err
	}
	return a.injector.LoadPerContext(ctx, m, token, id)
}

// Container returns the module registry.
func (a *Application) Container() *container.Container { return a.container }

// Inspector returns the inspector the graph was recorded with.
func (a *Application) Inspector() inspector.Inspector { return a.inspector }

// Root returns the root module.
func (a *Application) Root() *container.Module { return a.root }

// Preview reports whether the application was created without instances.
func (a *Application) Preview() bool { return a.preview }

func (a *Application) find(token any) (*container.InstanceWrapper, *container.Module, error) {
	modules := append([]*container.Module{a.root}, a.container.GetModules()...)
	for _, m := range modules {
		if w, ok := m.Provider(token); ok {
			return w, m, nil
		}
		if w, ok := m.Controller(token); ok {
			return w, m, nil
		}
		if w, ok := m.Injectable(token); ok {
			return w, m, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s is not registered in any module", diag.ErrUnknownDependency, decl.TokenName(token))
}
