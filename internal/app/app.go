package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/manifest"
	"github.com/vk/modgraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	manifest *manifest.Manifest
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW. It loads the manifests, registers the Go
// modules (the compiled-in set when none are given) and validates the
// registry.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	m, err := manifest.Load(ctx, cfg.ManifestPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	logger.Debug("Manifest loaded.", "root", m.Root, "modules", len(m.Modules), "files", len(m.Files))

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New().Load(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		manifest: m,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Manifest returns the loaded manifest.
func (a *App) Manifest() *manifest.Manifest {
	return a.manifest
}
