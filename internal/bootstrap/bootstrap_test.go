package bootstrap

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/vk/modgraph/internal/metadata"
)

type unit struct {
	name string
	deps []any
}

func declare(table *metadata.Table, name string, opts metadata.InjectableOptions, built *atomic.Int32) *decl.Type {
	t := decl.NewType(name, func(_ context.Context, deps []any) (any, error) {
		if built != nil {
			built.Add(1)
		}
		return &unit{name: name, deps: deps}, nil
	})
	table.DeclareInjectable(t, opts)
	return t
}

type catsApp struct {
	table     *metadata.Table
	root      *decl.Type
	cats      *decl.Type
	service   *decl.Type
	repo      *decl.Type
	requestID *decl.Type
	handler   *decl.Type
	guard     *decl.Type
	built     *atomic.Int32
}

func newCatsApp() *catsApp {
	a := &catsApp{table: metadata.NewTable(), built: &atomic.Int32{}}
	a.repo = declare(a.table, "CatsRepository", metadata.InjectableOptions{}, a.built)
	a.service = declare(a.table, "CatsService", metadata.InjectableOptions{Inject: []any{a.repo}}, a.built)
	a.requestID = declare(a.table, "RequestID", metadata.InjectableOptions{Scope: decl.Request}, a.built)
	a.handler = declare(a.table, "CatsHandler", metadata.InjectableOptions{Inject: []any{a.service, a.requestID}}, a.built)
	a.guard = declare(a.table, "RolesGuard", metadata.InjectableOptions{}, a.built)

	a.cats = decl.NewType("CatsModule", nil)
	a.table.DeclareModule(a.cats, metadata.ModuleOptions{
		Providers: []any{a.repo, a.service, a.requestID, a.handler},
		Exports:   []any{a.service},
	})
	a.root = decl.NewType("AppModule", nil)
	a.table.DeclareModule(a.root, metadata.ModuleOptions{
		Imports:   []any{a.cats},
		Providers: []any{&decl.ClassProvider{Provide: container.AppGuard, UseClass: a.guard}},
	})
	return a
}

func TestCreate(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	a := newCatsApp()

	app, err := Create(ctx, a.root, Options{Reader: a.table, Snapshot: true})
	require.NoError(t, err)

	assert.Equal(t, "AppModule", app.Root().Name())
	assert.False(t, app.Preview())
	assert.Len(t, app.Container().GetModules(), 3)

	svc, err := app.Get(ctx, a.service)
	require.NoError(t, err)
	repo, err := app.Get(ctx, a.repo)
	require.NoError(t, err)
	assert.Same(t, repo, svc.(*unit).deps[0])

	fromRoot, err := app.GetFrom(ctx, a.root, a.service)
	require.NoError(t, err)
	assert.Same(t, svc, fromRoot)

	_, err = app.GetFrom(ctx, a.root, a.repo)
	assert.ErrorIs(t, err, diag.ErrUnknownDependency, "repository is not exported")

	_, err = app.Get(ctx, "NOPE")
	assert.ErrorIs(t, err, diag.ErrUnknownDependency)

	guards := app.Enhancers(container.AppGuard)
	require.Len(t, guards, 1)
	assert.Equal(t, "RolesGuard", guards[0].(*unit).name)
	assert.Empty(t, app.Enhancers(container.AppPipe))

	snap := app.Inspector().Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, inspector.StatusComplete, snap.Status)
	assert.Len(t, snap.EdgesOfType(inspector.EdgeModuleToModule), 3, "AppModule -> CatsModule and both to the core module")
}

func TestCreate_RootForms(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("forward reference", func(t *testing.T) {
		a := newCatsApp()

		app, err := Create(ctx, decl.ForwardRef(func() any { return a.root }), Options{Reader: a.table})

		require.NoError(t, err)
		assert.Equal(t, a.root, app.Root().Metatype())
		svc, err := app.GetFrom(ctx, decl.ForwardRef(func() any { return a.root }), a.service)
		require.NoError(t, err)
		assert.Equal(t, "CatsService", svc.(*unit).name)
	})

	t.Run("pending with a pointer value provider", func(t *testing.T) {
		a := newCatsApp()
		type settings struct{ Region string }
		var awaits atomic.Int32
		root := decl.Async(func(context.Context) (any, error) {
			awaits.Add(1)
			return &decl.DynamicModule{
				Module:    a.root,
				Providers: []any{&decl.ValueProvider{Provide: "SETTINGS", UseValue: &settings{Region: "eu"}}},
			}, nil
		})

		app, err := Create(ctx, root, Options{Reader: a.table})

		require.NoError(t, err)
		assert.Equal(t, int32(1), awaits.Load())
		v, err := app.Get(ctx, "SETTINGS")
		require.NoError(t, err)
		assert.Equal(t, "eu", v.(*settings).Region)
	})

	t.Run("pending import with a pointer value provider", func(t *testing.T) {
		a := newCatsApp()
		feature := decl.NewType("FeatureModule", nil)
		type settings struct{ Region string }
		var awaits atomic.Int32
		pending := decl.Async(func(context.Context) (any, error) {
			awaits.Add(1)
			return &decl.DynamicModule{
				Module:    feature,
				Providers: []any{&decl.ValueProvider{Provide: "SETTINGS", UseValue: &settings{Region: "us"}}},
				Exports:   []any{"SETTINGS"},
			}, nil
		})
		root := decl.NewType("RootModule", nil)
		a.table.DeclareModule(root, metadata.ModuleOptions{Imports: []any{a.cats, pending}})

		app, err := Create(ctx, root, Options{Reader: a.table})

		require.NoError(t, err)
		assert.Equal(t, int32(1), awaits.Load())
		v, err := app.GetFrom(ctx, root, "SETTINGS")
		require.NoError(t, err)
		assert.Equal(t, "us", v.(*settings).Region)
	})
}

func TestApplication_ResolvePerContext(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	a := newCatsApp()
	app, err := Create(ctx, a.root, Options{Reader: a.table})
	require.NoError(t, err)

	_, err = app.Get(ctx, a.handler)
	assert.ErrorIs(t, err, diag.ErrScopeNotResolvable)

	h1, err := app.ResolvePerContext(ctx, a.handler, "req-1")
	require.NoError(t, err)
	h2, err := app.ResolvePerContext(ctx, a.handler, "req-2")
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	svc, err := app.Get(ctx, a.service)
	require.NoError(t, err)
	assert.Same(t, svc, h1.(*unit).deps[0])
	assert.Same(t, svc, h2.(*unit).deps[0])
	assert.NotSame(t, h1.(*unit).deps[1], h2.(*unit).deps[1])

	assert.Nil(t, app.Inspector().Snapshot(), "no snapshot without the option")
}

func TestCreate_Preview(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	a := newCatsApp()

	app, err := Create(ctx, a.root, Options{Reader: a.table, Preview: true})
	require.NoError(t, err)
	assert.True(t, app.Preview())
	assert.Equal(t, int32(0), a.built.Load())
	assert.Empty(t, app.Enhancers(container.AppGuard))
}

func TestCreate_Failures(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("reader is required", func(t *testing.T) {
		_, err := Create(ctx, decl.NewType("AppModule", nil), Options{})
		assert.Error(t, err)
	})

	t.Run("scan failure marks the snapshot partial", func(t *testing.T) {
		table := metadata.NewTable()
		root := decl.NewType("AppModule", nil)
		table.DeclareModule(root, metadata.ModuleOptions{Imports: []any{nil}})
		graph := inspector.NewGraph()

		_, err := Create(ctx, root, Options{Reader: table, Inspector: graph})

		require.ErrorIs(t, err, diag.ErrUndefinedModule)
		snap := graph.Snapshot()
		assert.Equal(t, inspector.StatusPartial, snap.Status)
		_, ok := snap.Node(findModuleID(t, snap, "AppModule"))
		assert.True(t, ok)
	})

	t.Run("instantiation failure marks the snapshot partial", func(t *testing.T) {
		table := metadata.NewTable()
		svc := declare(table, "UsersService", metadata.InjectableOptions{Inject: []any{"DB"}}, nil)
		root := decl.NewType("AppModule", nil)
		table.DeclareModule(root, metadata.ModuleOptions{Providers: []any{svc}})
		graph := inspector.NewGraph()

		_, err := Create(ctx, root, Options{Reader: table, Inspector: graph})

		require.ErrorIs(t, err, diag.ErrUnknownDependency)
		assert.Contains(t, err.Error(), "instantiating module graph")
		assert.Equal(t, inspector.StatusPartial, graph.Snapshot().Status)
		assert.ErrorIs(t, graph.Err(), diag.ErrUnknownDependency)
	})
}

func findModuleID(t *testing.T, snap *inspector.Snapshot, name string) string {
	t.Helper()
	for _, n := range snap.Nodes {
		if n.Type == inspector.NodeModule && n.Label == name {
			return n.ID
		}
	}
	t.Fatalf("module node %s not found", name)
	return ""
}
