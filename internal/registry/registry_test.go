package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/zclconf/go-cty/cty"
)

type greeterParams struct {
	Greeting string  `cty:"greeting"`
	Times    int     `cty:"times"`
	Suffix   *string `cty:"suffix"`
}

type greeterModule struct{}

var (
	greeterType = decl.NewType("Greeter", func(context.Context, []any) (any, error) { return "hi", nil })
	greeterMod  = decl.NewType("GreeterModule", nil)
	greetToken  = decl.NewSymbol("GREETING")
)

func (greeterModule) Register(r *Registry) {
	r.Table().DeclareInjectable(greeterType, metadata.InjectableOptions{})
	r.RegisterType(greeterType)
	r.RegisterType(greeterMod)
	r.RegisterToken("GREETING", greetToken)
	r.RegisterFactory("greeter.New", &RegisteredFactory{
		Fn:     func(context.Context, []any) (any, error) { return "built", nil },
		Inject: []string{"Greeter"},
	})
	r.RegisterBuilder("greeter", &RegisteredBuilder{
		NewParams: func() any { return new(greeterParams) },
		Build: func(p any) (any, error) {
			params := p.(*greeterParams)
			return &decl.DynamicModule{Module: greeterMod, Params: map[string]any{"greeting": params.Greeting, "times": params.Times}}, nil
		},
	})
}

func TestRegistry_Lookups(t *testing.T) {
	r := New().Load(greeterModule{})

	typ, ok := r.Type("Greeter")
	require.True(t, ok)
	assert.Same(t, greeterType, typ)

	tok, ok := r.Token("GREETING")
	require.True(t, ok)
	assert.Same(t, greetToken, tok)
	tok, ok = r.Token("Greeter")
	require.True(t, ok)
	assert.Same(t, greeterType, tok)

	_, ok = r.Factory("greeter.New")
	assert.True(t, ok)
	_, ok = r.Builder("greeter")
	assert.True(t, ok)
	_, ok = r.Type("Missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"Greeter", "GreeterModule"}, r.TypeNames())
	assert.Equal(t, []string{"greeter"}, r.BuilderNames())
	assert.True(t, metadata.IsInjectable(r.Table(), greeterType))
}

func TestRegistry_DuplicatesPanic(t *testing.T) {
	r := New().Load(greeterModule{})
	assert.Panics(t, func() { r.RegisterType(greeterType) })
	assert.Panics(t, func() { r.RegisterToken("GREETING", greetToken) })
	assert.Panics(t, func() { r.RegisterFactory("greeter.New", &RegisteredFactory{}) })
	assert.Panics(t, func() { r.RegisterBuilder("greeter", &RegisteredBuilder{}) })
}

func TestRegistry_Validate(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, New().Load(greeterModule{}).Validate(ctx))
	})

	t.Run("collects every problem", func(t *testing.T) {
		r := New()
		noCtor := decl.NewType("NoCtor", nil)
		r.Table().DeclareInjectable(noCtor, metadata.InjectableOptions{})
		r.RegisterType(noCtor)
		r.RegisterFactory("broken", &RegisteredFactory{Inject: []string{"Unknown"}})
		r.RegisterBuilder("bad-params", &RegisteredBuilder{NewParams: func() any { return greeterParams{} }})
		r.RegisterBuilder("chan-param", &RegisteredBuilder{
			NewParams: func() any { return new(struct{ C chan int `cty:"c"` }) },
			Build:     func(any) (any, error) { return nil, nil },
		})

		err := r.Validate(ctx)

		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "type 'NoCtor': declared injectable but has no constructor")
		assert.Contains(t, msg, "factory 'broken': no function registered")
		assert.Contains(t, msg, "default dependency 'Unknown'")
		assert.Contains(t, msg, "builder 'bad-params': no build function registered")
		assert.Contains(t, msg, "params must be a pointer to a struct")
		assert.Contains(t, msg, "builder 'chan-param', param 'c'")
	})
}

func TestRegistry_Build(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := New().Load(greeterModule{})

	t.Run("converts manifest values", func(t *testing.T) {
		out, err := r.Build(ctx, "greeter", cty.ObjectVal(map[string]cty.Value{
			"greeting": cty.StringVal("hello"),
			"times":    cty.StringVal("3"),
		}))
		require.NoError(t, err)
		dm := out.(*decl.DynamicModule)
		assert.Equal(t, "hello", dm.Params["greeting"])
		assert.Equal(t, 3, dm.Params["times"])
	})

	t.Run("parity errors", func(t *testing.T) {
		_, err := r.Build(ctx, "greeter", cty.ObjectVal(map[string]cty.Value{
			"greeting": cty.StringVal("hello"),
			"times":    cty.StringVal("many"),
			"extra":    cty.True,
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "manifest passes param 'extra'")
		assert.Contains(t, err.Error(), "param 'times': type mismatch")
	})

	t.Run("missing required param", func(t *testing.T) {
		_, err := r.Build(ctx, "greeter", cty.NullVal(cty.DynamicPseudoType))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires param 'greeting'")
		assert.Contains(t, err.Error(), "requires param 'times'")
		assert.NotContains(t, err.Error(), "'suffix'")
	})

	t.Run("unknown builder", func(t *testing.T) {
		_, err := r.Build(ctx, "nope", cty.EmptyObjectVal)
		assert.Error(t, err)
	})

	t.Run("params must be an object", func(t *testing.T) {
		_, err := r.Build(ctx, "greeter", cty.StringVal("x"))
		assert.Error(t, err)
	})
}
