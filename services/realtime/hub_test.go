package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	id      string
	mu      sync.Mutex
	got     [][]byte
	failing bool
	closed  int
}

func newFakeSub(id string) *fakeSub {
	return &fakeSub{id: id}
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("send failed")
	}
	f.got = append(f.got, payload)
	return nil
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeSub) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func (f *fakeSub) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHubBroadcastDeliversEnvelope(t *testing.T) {
	h := NewHub(0)
	sub := newFakeSub("a")
	require.NoError(t, h.Register(sub))

	delivered, pruned := h.Broadcast("alert_triggered", map[string]interface{}{"symbol": "BTCUSDT"})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, pruned)

	require.Equal(t, 1, sub.received())
	var env Envelope
	require.NoError(t, json.Unmarshal(sub.got[0], &env))
	assert.Equal(t, "alert_triggered", env.Type)
	assert.NotEmpty(t, env.Time)
}

func TestHubBroadcastPrunesFailingSubscriber(t *testing.T) {
	h := NewHub(0)
	good1 := newFakeSub("good1")
	bad := newFakeSub("bad")
	bad.failing = true
	good2 := newFakeSub("good2")

	require.NoError(t, h.Register(good1))
	require.NoError(t, h.Register(bad))
	require.NoError(t, h.Register(good2))

	delivered, pruned := h.Broadcast("alert_triggered", nil)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 2, h.Count())
	assert.Equal(t, 1, bad.closedCount())

	// Healthy subscribers keep receiving after the prune.
	delivered, pruned = h.Broadcast("alert_triggered", nil)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, pruned)
	assert.Equal(t, 2, good1.received())
	assert.Equal(t, 2, good2.received())
}

func TestHubRegisterIdempotent(t *testing.T) {
	h := NewHub(0)
	sub := newFakeSub("a")
	require.NoError(t, h.Register(sub))
	require.NoError(t, h.Register(sub))
	assert.Equal(t, 1, h.Count())
}

func TestHubUnregisterIdempotent(t *testing.T) {
	h := NewHub(0)
	sub := newFakeSub("a")
	require.NoError(t, h.Register(sub))

	h.Unregister(sub)
	h.Unregister(sub)
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, sub.closedCount())
}

func TestHubCapacity(t *testing.T) {
	h := NewHub(1)
	require.NoError(t, h.Register(newFakeSub("a")))
	assert.ErrorIs(t, h.Register(newFakeSub("b")), ErrHubFull)
	assert.Equal(t, 1, h.Count())
}

func TestHubShutdownClosesAll(t *testing.T) {
	h := NewHub(0)
	subs := []*fakeSub{newFakeSub("a"), newFakeSub("b")}
	for _, s := range subs {
		require.NoError(t, h.Register(s))
	}

	h.Shutdown()
	assert.Equal(t, 0, h.Count())
	for _, s := range subs {
		assert.Equal(t, 1, s.closedCount())
	}
}

func TestHubConcurrentRegisterAndBroadcast(t *testing.T) {
	h := NewHub(0)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := newFakeSub(fmt.Sprintf("sub-%d", n))
			assert.NoError(t, h.Register(sub))
			h.Broadcast("tick", n)
			h.Unregister(sub)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}
