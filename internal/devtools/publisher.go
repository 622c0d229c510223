// Package devtools publishes recorded module graphs to a socket.io
// endpoint, such as a graph viewer, once bootstrap has finished.
package devtools

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/inspector"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SnapshotEvent is the event a snapshot is emitted under.
const SnapshotEvent = "graph:snapshot"

// DefaultTimeout bounds connecting and acknowledging one publication.
const DefaultTimeout = 15 * time.Second

// Config describes the devtools endpoint.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Publisher sends snapshots to a socket.io endpoint.
type Publisher struct {
	cfg     Config
	baseURL string
	path    string
}

// NewPublisher validates cfg and returns a publisher. It does not connect.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("devtools: url is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("devtools: failed to parse URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("devtools: unsupported URL scheme '%s'", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("devtools: URL '%s' has no host", cfg.URL)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Publisher{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host),
		path:    parsed.Path,
	}, nil
}

// Config returns the effective configuration.
func (p *Publisher) Config() Config { return p.cfg }

// Publish connects, emits snap as JSON under SnapshotEvent and waits for
// the endpoint to acknowledge it before disconnecting. Connecting and the
// acknowledgement share one Timeout.
func (p *Publisher) Publish(ctx context.Context, snap *inspector.Snapshot) error {
	if snap == nil {
		return errors.New("devtools: no snapshot to publish")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("devtools: encoding snapshot: %w", err)
	}

	logger := ctxlog.FromContext(ctx).With("url", p.cfg.URL, "namespace", p.cfg.Namespace)
	logger.Debug("Connecting to devtools endpoint.")

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	if p.path != "" {
		opts.SetPath(p.path)
	}
	if p.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(p.baseURL, opts)
	io := manager.Socket(p.cfg.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting from devtools endpoint.")
		io.Disconnect()
	}()

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		report(connected, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", errs[0])
			}
		}
		report(connected, err)
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			return fmt.Errorf("devtools: connection failed: %w", err)
		}
	case <-opCtx.Done():
		return p.interrupted(ctx, "connection")
	}

	acked := make(chan error, 1)
	io.EmitWithAck(SnapshotEvent, string(payload))(func(_ []any, err error) {
		report(acked, err)
	})

	select {
	case err := <-acked:
		if err != nil {
			return fmt.Errorf("devtools: snapshot not acknowledged: %w", err)
		}
	case <-opCtx.Done():
		return p.interrupted(ctx, "acknowledgement")
	}
	logger.Info("Published module graph snapshot.", "sid", io.Id(), "nodes", len(snap.Nodes), "edges", len(snap.Edges), "status", snap.Status)
	return nil
}

// interrupted reports why waiting for stage stopped: the caller's context
// or the publisher's own timeout.
func (p *Publisher) interrupted(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("devtools: %w", err)
	}
	return fmt.Errorf("devtools: timed out after %s waiting for %s", p.cfg.Timeout, stage)
}

// report delivers the first result only; socket callbacks may fire more
// than once.
func report(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
