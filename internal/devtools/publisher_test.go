package devtools

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/inspector"
	sio "github.com/zishang520/socket.io/v2/socket"
)

// startEndpoint serves a socket.io endpoint that forwards every snapshot
// payload to the returned channel and acknowledges it when ack is set.
func startEndpoint(t *testing.T, ack bool) (string, <-chan string) {
	t.Helper()
	server := sio.NewServer(nil, nil)
	received := make(chan string, 1)
	require.NoError(t, server.On("connection", func(clients ...any) {
		client := clients[0].(*sio.Socket)
		client.On(SnapshotEvent, func(args ...any) {
			if len(args) == 0 {
				return
			}
			if payload, ok := args[0].(string); ok {
				select {
				case received <- payload:
				default:
				}
			}
			if fn, ok := args[len(args)-1].(sio.Ack); ok && ack {
				fn([]any{"ok"}, nil)
			}
		})
	}))
	httpServer := httptest.NewServer(server.ServeHandler(nil))
	t.Cleanup(func() {
		server.Close(nil)
		httpServer.Close()
	})
	return httpServer.URL, received
}

func testSnapshot() *inspector.Snapshot {
	return &inspector.Snapshot{
		Status: inspector.StatusComplete,
		Nodes:  []inspector.Node{{ID: "app", Label: "AppModule", Type: inspector.NodeModule}},
	}
}

// closedAddress returns an address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNewPublisher(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := NewPublisher(Config{URL: "http://localhost:3000/devtools/socket.io/"})
		require.NoError(t, err)
		assert.Equal(t, "/", p.Config().Namespace)
		assert.Equal(t, DefaultTimeout, p.Config().Timeout)
		assert.Equal(t, "http://localhost:3000", p.baseURL)
		assert.Equal(t, "/devtools/socket.io/", p.path)
	})

	t.Run("keeps explicit settings", func(t *testing.T) {
		p, err := NewPublisher(Config{URL: "wss://graph.example.com", Namespace: "/graphs", Timeout: time.Second, InsecureSkipVerify: true})
		require.NoError(t, err)
		assert.Equal(t, Config{URL: "wss://graph.example.com", Namespace: "/graphs", Timeout: time.Second, InsecureSkipVerify: true}, p.Config())
		assert.Empty(t, p.path)
	})

	invalid := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", "url is required"},
		{"scheme", "ftp://localhost", "unsupported URL scheme 'ftp'"},
		{"no host", "http:///path", "has no host"},
		{"unparsable", "http://[::1", "failed to parse URL"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPublisher(Config{URL: tc.url})
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestPublish_NilSnapshot(t *testing.T) {
	p, err := NewPublisher(Config{URL: "http://localhost:1"})
	require.NoError(t, err)
	assert.ErrorContains(t, p.Publish(ctxlog.Discard(context.Background()), nil), "no snapshot")
}

func TestPublish(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("delivers the snapshot", func(t *testing.T) {
		url, received := startEndpoint(t, true)
		p, err := NewPublisher(Config{URL: url, Timeout: 5 * time.Second})
		require.NoError(t, err)

		require.NoError(t, p.Publish(ctx, testSnapshot()))

		select {
		case payload := <-received:
			var got inspector.Snapshot
			require.NoError(t, json.Unmarshal([]byte(payload), &got))
			assert.Equal(t, inspector.StatusComplete, got.Status)
			require.Len(t, got.Nodes, 1)
			assert.Equal(t, "AppModule", got.Nodes[0].Label)
		case <-time.After(5 * time.Second):
			t.Fatal("endpoint never received the snapshot")
		}
	})

	t.Run("times out without an acknowledgement", func(t *testing.T) {
		url, received := startEndpoint(t, false)
		p, err := NewPublisher(Config{URL: url, Timeout: 500 * time.Millisecond})
		require.NoError(t, err)

		err = p.Publish(ctx, testSnapshot())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "waiting for acknowledgement")
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("endpoint never received the snapshot")
		}
	})

	t.Run("closed port", func(t *testing.T) {
		p, err := NewPublisher(Config{URL: "http://" + closedAddress(t), Timeout: 500 * time.Millisecond})
		require.NoError(t, err)

		start := time.Now()
		err = p.Publish(ctx, testSnapshot())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "devtools:")
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("cancelled context", func(t *testing.T) {
		p, err := NewPublisher(Config{URL: "http://" + closedAddress(t), Timeout: time.Minute})
		require.NoError(t, err)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err = p.Publish(cancelled, testSnapshot())

		require.Error(t, err)
	})
}
