package container

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modgraph/internal/decl"
)

func TestWrapper_ClaimSingleOwner(t *testing.T) {
	w := newWrapper("SVC", KindProvider, nil)

	var (
		mu     sync.Mutex
		owners int
		wg     sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, owner := w.Claim(StaticContext)
			if owner {
				mu.Lock()
				owners++
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				w.Settle(StaticContext, s, "instance", nil)
				return
			}
			v, err := s.Wait(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "instance", v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, owners)
	assert.True(t, w.IsResolved())
	assert.Equal(t, "instance", w.Handle().Get())
}

func TestWrapper_ReleaseForgetsSlot(t *testing.T) {
	w := newWrapper("SVC", KindProvider, nil)
	errBoom := errors.New("boom")

	s, owner := w.Claim(StaticContext)
	require.True(t, owner)
	w.Release(StaticContext, s, errBoom)

	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, w.IsResolved())

	_, owner = w.Claim(StaticContext)
	assert.True(t, owner, "a released slot can be claimed again")
}

func TestWrapper_WaitHonorsContext(t *testing.T) {
	w := newWrapper("SVC", KindProvider, nil)
	s, _ := w.Claim(StaticContext)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrapper_PerContextSlotsAreIndependent(t *testing.T) {
	w := newWrapper("REQ", KindProvider, nil)
	w.Scope = decl.Request

	a, _ := w.Claim("req-1")
	w.Settle("req-1", a, "one", nil)
	b, owner := w.Claim("req-2")
	require.True(t, owner)
	w.Settle("req-2", b, "two", nil)

	one, _ := w.Instance("req-1")
	two, _ := w.Instance("req-2")
	assert.Equal(t, "one", one)
	assert.Equal(t, "two", two)
	assert.False(t, w.Handle().Ready(), "per-context instances never fill the static handle")
	assert.False(t, w.IsStatic())
}
