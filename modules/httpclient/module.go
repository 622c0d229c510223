// Package httpclient provides a global module whose ClientToken resolves
// to a fresh *http.Client for every consumer.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/registry"
)

// DefaultTimeout is used when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	ModuleType   = decl.NewType("HttpClientModule", nil)
	ClientToken  = decl.NewSymbol("HTTP_CLIENT")
	OptionsToken = decl.NewSymbol("HTTP_CLIENT_OPTIONS")
)

// Options configures the clients a module produces.
type Options struct {
	Timeout time.Duration
}

// NewClient is the factory behind ClientToken. It takes Options.
func NewClient(ctx context.Context, deps []any) (any, error) {
	opts, ok := deps[0].(Options)
	if !ok {
		return nil, fmt.Errorf("httpclient: expected Options, got %T", deps[0])
	}
	ctxlog.FromContext(ctx).Debug("Creating HTTP client.", "timeout", opts.Timeout)

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}

// ForRoot returns a global module exporting a transient ClientToken
// provider. An empty timeout means DefaultTimeout.
func ForRoot(timeout string) (*decl.DynamicModule, error) {
	d := DefaultTimeout
	if timeout != "" {
		var err error
		if d, err = time.ParseDuration(timeout); err != nil {
			return nil, fmt.Errorf("httpclient: invalid timeout: %w", err)
		}
	}
	return &decl.DynamicModule{
		Module: ModuleType,
		Params: map[string]any{"timeout": d.String()},
		Global: true,
		Providers: []any{
			&decl.ValueProvider{Provide: OptionsToken, UseValue: Options{Timeout: d}},
			&decl.FactoryProvider{Provide: ClientToken, UseFactory: NewClient, Inject: []any{OptionsToken}, Scope: decl.Transient},
		},
		Exports: []any{ClientToken},
	}, nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the manifest params of the httpclient builder.
type Params struct {
	Timeout *string `cty:"timeout"`
}

// Register registers the tokens, the client factory and the httpclient
// builder.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterToken("HTTP_CLIENT", ClientToken)
	r.RegisterToken("HTTP_CLIENT_OPTIONS", OptionsToken)
	r.RegisterFactory("httpclient.New", &registry.RegisteredFactory{
		Fn:     NewClient,
		Inject: []string{"HTTP_CLIENT_OPTIONS"},
	})
	r.RegisterBuilder("httpclient", &registry.RegisteredBuilder{
		NewParams: func() any { return new(Params) },
		Build: func(p any) (any, error) {
			params := p.(*Params)
			if params.Timeout == nil {
				return ForRoot("")
			}
			return ForRoot(*params.Timeout)
		},
	})
}
