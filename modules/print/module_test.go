package print

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/bootstrap"
	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
)

func TestPrinter_Print(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf}

	require.NoError(t, p.Print(map[string]any{"b": 2, "a": "x"}))
	require.NoError(t, p.Print(nil))

	assert.Equal(t, "      a = \"x\"\n      b = 2\n      (null)\n", buf.String())
}

func TestPrintModule(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := registry.New().Load(&Module{})
	require.NoError(t, r.Validate(ctx))
	table := r.Table()

	var buf bytes.Buffer
	output := decl.NewType("OutputModule", nil)
	table.DeclareModule(output, metadata.ModuleOptions{
		Global:    true,
		Providers: []any{&decl.ValueProvider{Provide: OutputToken, UseValue: &buf}},
		Exports:   []any{OutputToken},
	})
	root := decl.NewType("AppModule", nil)
	table.DeclareModule(root, metadata.ModuleOptions{
		Imports:   []any{ModuleType, output},
		Providers: []any{&decl.ClassProvider{Provide: container.AppInterceptor, UseClass: InterceptorType}},
	})

	app, err := bootstrap.Create(ctx, root, bootstrap.Options{Reader: table})
	require.NoError(t, err)

	printer, err := app.GetFrom(ctx, root, PrinterType)
	require.NoError(t, err)
	interceptors := app.Enhancers(container.AppInterceptor)
	require.Len(t, interceptors, 1)
	interceptor := interceptors[0].(*LoggingInterceptor)
	assert.Same(t, printer, interceptor.printer)

	out, err := interceptor.Intercept(ctx, "UsersService.List", func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	boom := errors.New("boom")
	_, err = interceptor.Intercept(ctx, "UsersService.Create", func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t,
		"      call = \"UsersService.List\"\n      status = \"ok\"\n"+
			"      call = \"UsersService.Create\"\n      status = \"boom\"\n",
		buf.String())
}

func TestPrintModule_DefaultsToStdout(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := registry.New().Load(&Module{})
	root := decl.NewType("AppModule", nil)
	r.Table().DeclareModule(root, metadata.ModuleOptions{Imports: []any{ModuleType}})

	app, err := bootstrap.Create(ctx, root, bootstrap.Options{Reader: r.Table()})
	require.NoError(t, err)

	p, err := app.Get(ctx, PrinterType)
	require.NoError(t, err)
	assert.NotNil(t, p.(*Printer).w)
}
