package injector

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/dag"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/inspector"
	"golang.org/x/sync/errgroup"
)

// InstanceLoader instantiates every unit of a scanned container.
type InstanceLoader struct {
	container *container.Container
	injector  *Injector
	inspector inspector.Inspector
}

// NewInstanceLoader returns a loader driving inj over c.
func NewInstanceLoader(c *container.Container, inj *Injector, insp inspector.Inspector) *InstanceLoader {
	if insp == nil {
		insp = inspector.Noop{}
	}
	return &InstanceLoader{container: c, injector: inj, inspector: insp}
}

// CreateInstancesOfDependencies runs both loading phases over modules.
// On failure the inspector still records the modules and is marked
// partial before the error is returned.
func (l *InstanceLoader) CreateInstancesOfDependencies(ctx context.Context, modules []*container.Module) error {
	l.createPrototypes(modules)

	err := CheckCycles(ctx, l.injector, modules)
	if err == nil {
		err = l.createInstances(ctx, modules)
	}
	l.inspector.InspectModules(modules)
	if err != nil {
		l.inspector.RegisterPartial(err)
		return err
	}
	return nil
}

func (l *InstanceLoader) createPrototypes(modules []*container.Module) {
	for _, m := range modules {
		for _, w := range units(m) {
			l.injector.LoadPrototype(w)
		}
	}
}

func (l *InstanceLoader) createInstances(ctx context.Context, modules []*container.Module) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range modules {
		g.Go(func() error {
			return l.createInstancesOfModule(gctx, m)
		})
	}
	return g.Wait()
}

// createInstancesOfModule builds providers, then enhancers, then
// controllers. Units of one stage are built concurrently.
func (l *InstanceLoader) createInstancesOfModule(ctx context.Context, m *container.Module) error {
	stages := []struct {
		wrappers []*container.InstanceWrapper
		load     func(context.Context, *container.InstanceWrapper, *container.Module) error
	}{
		{m.Providers(), l.injector.LoadProvider},
		{m.Injectables(), l.injector.LoadInjectable},
		{m.Controllers(), l.injector.LoadController},
	}
	for _, stage := range stages {
		g, gctx := errgroup.WithContext(ctx)
		for _, w := range stage.wrappers {
			if w.Scope == decl.Request {
				continue
			}
			g.Go(func() error {
				return stage.load(gctx, w, m)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	ctxlog.FromContext(ctx).Info(fmt.Sprintf("%s dependencies initialized", m.Name()), "module", m.Name())
	return nil
}

func units(m *container.Module) []*container.InstanceWrapper {
	out := append(m.Providers(), m.Injectables()...)
	return append(out, m.Controllers()...)
}

// CheckCycles rejects constructor and property dependency cycles between
// the units of modules. Edges point from a unit to the providers it needs;
// forward references and missing dependencies add no edge.
func CheckCycles(ctx context.Context, inj *Injector, modules []*container.Module) error {
	g := dag.New()
	names := make(map[string]string)
	for _, m := range modules {
		for _, w := range units(m) {
			g.AddNode(w.ID)
			names[w.ID] = w.Name
		}
	}
	link := func(w *container.InstanceWrapper, token any) error {
		if decl.IsForwardReference(token) {
			return nil
		}
		dep, ok := inj.lookup(w.Host, token)
		if !ok || dep.IsValue() {
			return nil
		}
		g.AddNode(dep.ID)
		names[dep.ID] = dep.Name
		return g.AddEdge(w.ID, dep.ID)
	}
	for _, m := range modules {
		for _, w := range units(m) {
			if w.IsValue() {
				continue
			}
			for _, token := range w.Inject {
				if err := link(w, token); err != nil {
					return err
				}
			}
			for _, p := range w.Properties {
				if err := link(w, p.Token); err != nil {
					return err
				}
			}
		}
	}

	err := g.DetectCycles()
	ctxlog.FromContext(ctx).Debug("Unit dependency graph checked.", "units", g.Len(), "cycle", err != nil)
	var cycle *dag.CycleError
	if errors.As(err, &cycle) {
		chain := make([]string, len(cycle.Path))
		for i, id := range cycle.Path {
			chain[i] = names[id]
		}
		return &diag.CircularDependencyError{Chain: chain}
	}
	return err
}
