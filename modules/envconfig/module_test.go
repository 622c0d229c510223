package envconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/bootstrap"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func TestForRoot(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	t.Setenv("ENVCFG_A_PORT", "8080")
	t.Setenv("ENVCFG_A_HOST", "localhost")
	t.Setenv("ENVCFG_B_PORT", "9090")

	table := metadata.NewTable()
	Declare(table)
	Declare(table)

	api := decl.NewType("ApiModule", nil)
	table.DeclareModule(api, metadata.ModuleOptions{Imports: []any{ForRoot("ENVCFG_A_")}})
	worker := decl.NewType("WorkerModule", nil)
	table.DeclareModule(worker, metadata.ModuleOptions{Imports: []any{ForRoot("ENVCFG_B_")}})
	root := decl.NewType("AppModule", nil)
	table.DeclareModule(root, metadata.ModuleOptions{Imports: []any{api, worker, ForRoot("ENVCFG_A_")}})

	app, err := bootstrap.Create(ctx, root, bootstrap.Options{Reader: table})
	require.NoError(t, err)
	assert.Len(t, app.Container().GetModules(), 6, "the ENVCFG_A_ module is registered once")

	a, err := app.GetFrom(ctx, api, ServiceType)
	require.NoError(t, err)
	cfgA := a.(*ConfigService)
	assert.Equal(t, "ENVCFG_A_", cfgA.Prefix())
	assert.Equal(t, []string{"HOST", "PORT"}, cfgA.Keys())
	port, ok := cfgA.Get("PORT")
	assert.True(t, ok)
	assert.Equal(t, "8080", port)

	b, err := app.GetFrom(ctx, worker, ServiceType)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PORT": "9090"}, b.(*ConfigService).All())

	fromRoot, err := app.GetFrom(ctx, root, ServiceType)
	require.NoError(t, err)
	assert.Same(t, cfgA, fromRoot)
}

func TestModule_Builder(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := registry.New().Load(&Module{})
	require.NoError(t, r.Validate(ctx))

	out, err := r.Build(ctx, "envconfig", cty.ObjectVal(map[string]cty.Value{"prefix": cty.StringVal("X_")}))
	require.NoError(t, err)
	dm := out.(*decl.DynamicModule)
	assert.Same(t, ModuleType, dm.Module)
	assert.Equal(t, "X_", dm.Params["prefix"])

	out, err = r.Build(ctx, "envconfig", cty.NullVal(cty.DynamicPseudoType))
	require.NoError(t, err)
	assert.Equal(t, "", out.(*decl.DynamicModule).Params["prefix"])
}
