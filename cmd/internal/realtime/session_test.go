package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpms/cmd/internal/chat"
	v1 "rpms/contracts/realtime/v1"
)

func TestEventWindow_Sliding(t *testing.T) {
	t.Parallel()

	w := newEventWindow(3, time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, w.allow(base))
	assert.True(t, w.allow(base.Add(100*time.Millisecond)))
	assert.True(t, w.allow(base.Add(200*time.Millisecond)))
	assert.False(t, w.allow(base.Add(300*time.Millisecond)))

	// The first event falls out of the window; the second is still inside it.
	assert.True(t, w.allow(base.Add(1001*time.Millisecond)))
	assert.False(t, w.allow(base.Add(1002*time.Millisecond)))
	assert.True(t, w.allow(base.Add(1101*time.Millisecond)))
}

func TestEventWindow_Defaults(t *testing.T) {
	t.Parallel()

	w := newEventWindow(0, 0)
	assert.Equal(t, defaultRateEvents, w.limit)
	assert.Equal(t, defaultRateWindow, w.window)
}

func TestConfig_Normalized(t *testing.T) {
	t.Parallel()

	c := Config{SendQueue: 1}.normalized()
	assert.Equal(t, minSendQueue, c.SendQueue)
	assert.Equal(t, defaultWriteTimeout, c.WriteTimeout)
	assert.Equal(t, defaultHeartbeatInterval, c.HeartbeatInterval)
	assert.Equal(t, defaultRateEvents, c.RateEvents)
}

func dialRaw(t *testing.T) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = c.Read(r.Context())
		_ = c.CloseNow()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestSession_CloseReleasesListener(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := chat.NewListeners(chat.NewMemoryStore(), log, chat.WithPollInterval(20*time.Millisecond))
	t.Cleanup(registry.StopAll)

	ctx, cancel := context.WithCancel(context.Background())
	s := newSession("s1", "alice", dialRaw(t), DefaultConfig(), cancel, log)

	require.NoError(t, s.listen(ctx, registry, chat.ObserverFuncs{}))
	assert.Error(t, s.listen(ctx, registry, chat.ObserverFuncs{}))
	assert.Equal(t, []string{"alice"}, registry.Active())

	s.close(websocket.StatusNormalClosure, "bye")
	s.close(websocket.StatusNormalClosure, "bye")

	select {
	case <-s.replaced():
	case <-time.After(2 * time.Second):
		t.Fatal("listener not stopped")
	}
	assert.Empty(t, registry.Active())
	assert.Error(t, ctx.Err())
	assert.False(t, s.enqueue(context.Background(), v1.Envelope{}))
}

func TestSession_ReleaseKeepsNewerListener(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := chat.NewListeners(chat.NewMemoryStore(), log, chat.WithPollInterval(20*time.Millisecond))
	t.Cleanup(registry.StopAll)

	ctx := context.Background()
	_, cancelOld := context.WithCancel(ctx)
	old := newSession("s1", "alice", dialRaw(t), DefaultConfig(), cancelOld, log)
	require.NoError(t, old.listen(ctx, registry, chat.ObserverFuncs{}))

	_, cancelNew := context.WithCancel(ctx)
	fresh := newSession("s2", "alice", dialRaw(t), DefaultConfig(), cancelNew, log)
	require.NoError(t, fresh.listen(ctx, registry, chat.ObserverFuncs{}))

	select {
	case <-old.replaced():
	case <-time.After(2 * time.Second):
		t.Fatal("old listener not replaced")
	}

	old.close(websocket.StatusPolicyViolation, "session replaced")
	assert.Equal(t, []string{"alice"}, registry.Active())

	fresh.close(websocket.StatusNormalClosure, "bye")
	assert.Empty(t, registry.Active())
}

func TestSession_EnqueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SendQueue = minSendQueue
	cfg.WriteTimeout = 10 * time.Millisecond
	_, cancel := context.WithCancel(context.Background())
	s := newSession("s1", "alice", dialRaw(t), cfg, cancel, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { s.close(websocket.StatusNormalClosure, "bye") })

	for range minSendQueue {
		require.True(t, s.enqueue(context.Background(), v1.Envelope{}))
	}
	assert.False(t, s.enqueue(context.Background(), v1.Envelope{}))
	assert.False(t, s.push(context.Background(), v1.Envelope{}))
}
