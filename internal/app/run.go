package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/modgraph/internal/bootstrap"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/devtools"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/vk/modgraph/internal/manifest"
)

// Run declares the manifest modules, bootstraps the graph and exports the
// recorded snapshot. The snapshot is exported even when bootstrap fails,
// marked partial.
func (a *App) Run(ctx context.Context) (*bootstrap.Application, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	application, graph, err := a.bootstrap(ctx, a.config.Preview, a.config.Snapshot)
	if graph != nil {
		if exportErr := a.exportSnapshot(ctx, graph.Snapshot()); exportErr != nil {
			return nil, errors.Join(err, exportErr)
		}
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("Module graph ready.", "root", a.manifest.Root, "modules", len(application.Container().GetModules()), "preview", application.Preview())
	a.logger.Debug("App.Run method finished.")
	return application, nil
}

func (a *App) bootstrap(ctx context.Context, preview, snapshot bool) (*bootstrap.Application, *inspector.Graph, error) {
	root, err := manifest.Build(ctx, a.manifest, a.registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare manifest modules: %w", err)
	}

	opts := bootstrap.Options{Preview: preview, Reader: a.registry.Table()}
	var graph *inspector.Graph
	if snapshot {
		graph = inspector.NewGraph()
		opts.Inspector = graph
	}
	application, err := bootstrap.Create(ctx, root, opts)
	return application, graph, err
}

func (a *App) exportSnapshot(ctx context.Context, snap *inspector.Snapshot) error {
	logger := ctxlog.FromContext(ctx)

	if out := a.config.SnapshotOut; out != "" {
		var w io.Writer = a.outW
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create snapshot file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := inspector.Write(w, snap, a.config.SnapshotFormat); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		logger.Info("Snapshot written.", "out", out, "format", a.config.SnapshotFormat, "status", snap.Status)
	}

	if a.config.DevtoolsURL != "" {
		pub, err := devtools.NewPublisher(devtools.Config{
			URL:       a.config.DevtoolsURL,
			Namespace: a.config.DevtoolsNamespace,
			Timeout:   a.config.DevtoolsTimeout,
		})
		if err != nil {
			return err
		}
		// An unreachable devtools endpoint does not fail the run.
		if err := pub.Publish(ctx, snap); err != nil {
			logger.Warn("Failed to publish snapshot to devtools.", "error", err)
		}
	}
	return nil
}
