// Package envconfig provides a dynamic module exposing prefixed process
// environment variables through a ConfigService.
package envconfig

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
)

var (
	// ModuleType is the static part of every ForRoot module.
	ModuleType = decl.NewType("EnvConfigModule", nil)
	// ServiceType is the exported ConfigService provider.
	ServiceType = decl.NewType("ConfigService", newConfigService, "Get", "All")
	// OptionsToken carries the Options of one ForRoot module.
	OptionsToken = decl.NewSymbol("ENV_CONFIG_OPTIONS")
)

// Options configures a ConfigService.
type Options struct {
	Prefix string
}

// ConfigService holds the environment variables starting with Prefix,
// keyed without the prefix.
type ConfigService struct {
	prefix string
	values map[string]string
}

func newConfigService(ctx context.Context, deps []any) (any, error) {
	opts, ok := deps[0].(Options)
	if !ok {
		return nil, fmt.Errorf("envconfig: expected Options, got %T", deps[0])
	}
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if key := strings.TrimPrefix(k, opts.Prefix); key != "" {
			values[key] = v
		}
	}
	ctxlog.FromContext(ctx).Debug("Environment configuration loaded.", "prefix", opts.Prefix, "count", len(values))
	return &ConfigService{prefix: opts.Prefix, values: values}, nil
}

// Get returns the value of key, looked up without the prefix.
func (s *ConfigService) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// All returns a copy of every loaded value.
func (s *ConfigService) All() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Keys returns the loaded keys, sorted.
func (s *ConfigService) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefix returns the prefix the service was configured with.
func (s *ConfigService) Prefix() string { return s.prefix }

// ForRoot returns a module exporting a ConfigService for prefix. Calls
// with the same prefix declare the same module.
func ForRoot(prefix string) *decl.DynamicModule {
	return &decl.DynamicModule{
		Module: ModuleType,
		Params: map[string]any{"prefix": prefix},
		Providers: []any{
			&decl.ValueProvider{Provide: OptionsToken, UseValue: Options{Prefix: prefix}},
			ServiceType,
		},
		Exports: []any{ServiceType},
	}
}

// Declare records the ConfigService metadata in table. It is safe to
// call more than once.
func Declare(table *metadata.Table) {
	if metadata.IsInjectable(table, ServiceType) {
		return
	}
	table.DeclareInjectable(ServiceType, metadata.InjectableOptions{Inject: []any{OptionsToken}})
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the manifest params of the envconfig builder.
type Params struct {
	Prefix *string `cty:"prefix"`
}

// Register registers the ConfigService type and the envconfig builder.
func (m *Module) Register(r *registry.Registry) {
	Declare(r.Table())
	r.RegisterType(ServiceType)
	r.RegisterToken("ENV_CONFIG_OPTIONS", OptionsToken)
	r.RegisterBuilder("envconfig", &registry.RegisteredBuilder{
		NewParams: func() any { return new(Params) },
		Build: func(p any) (any, error) {
			params := p.(*Params)
			prefix := ""
			if params.Prefix != nil {
				prefix = *params.Prefix
			}
			return ForRoot(prefix), nil
		},
	})
}
