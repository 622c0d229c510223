package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/bootstrap"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func TestForRoot_TransientGlobalClient(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	table := metadata.NewTable()

	type consumer struct{ client *http.Client }
	newConsumer := func(name string) *decl.Type {
		typ := decl.NewType(name, func(_ context.Context, deps []any) (any, error) {
			return &consumer{client: deps[0].(*http.Client)}, nil
		})
		table.DeclareInjectable(typ, metadata.InjectableOptions{Inject: []any{ClientToken}})
		return typ
	}
	users, orders := newConsumer("UsersApi"), newConsumer("OrdersApi")

	feature := decl.NewType("FeatureModule", nil)
	table.DeclareModule(feature, metadata.ModuleOptions{Providers: []any{users, orders}})
	client, err := ForRoot("5s")
	require.NoError(t, err)
	root := decl.NewType("AppModule", nil)
	table.DeclareModule(root, metadata.ModuleOptions{Imports: []any{client, feature}})

	app, err := bootstrap.Create(ctx, root, bootstrap.Options{Reader: table})
	require.NoError(t, err, "the feature module sees the client through the global scope")

	u, err := app.Get(ctx, users)
	require.NoError(t, err)
	o, err := app.Get(ctx, orders)
	require.NoError(t, err)
	uc, oc := u.(*consumer).client, o.(*consumer).client
	assert.NotSame(t, uc, oc, "every consumer gets its own client")
	assert.Equal(t, 5*time.Second, uc.Timeout)
}

func TestForRoot_Timeout(t *testing.T) {
	d, err := ForRoot("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout.String(), d.Params["timeout"])
	assert.True(t, d.Global)

	_, err = ForRoot("soon")
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestModule_Register(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := registry.New().Load(&Module{})
	require.NoError(t, r.Validate(ctx))

	f, ok := r.Factory("httpclient.New")
	require.True(t, ok)
	c, err := f.Fn(ctx, []any{Options{Timeout: time.Second}})
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.(*http.Client).Timeout)
	_, err = f.Fn(ctx, []any{"nope"})
	assert.Error(t, err)

	out, err := r.Build(ctx, "httpclient", cty.ObjectVal(map[string]cty.Value{"timeout": cty.StringVal("250ms")}))
	require.NoError(t, err)
	assert.Equal(t, "250ms", out.(*decl.DynamicModule).Params["timeout"])
}
