package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"rpms/cmd/internal/chat"
	v1 "rpms/contracts/realtime/v1"
)

// session is one user's live socket.
//
// It owns:
//   - the outbound queue drained by the writer goroutine (never closed; producers select on done)
//   - the chat listener started for the user, released on close
//   - the inbound event window, touched only by the read loop
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	log    *slog.Logger

	out          chan v1.Envelope
	writeTimeout time.Duration
	events       *eventWindow

	listeners *chat.Listeners
	listener  *chat.Listener

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id, userID string, conn *websocket.Conn, cfg Config, cancel context.CancelFunc, log *slog.Logger) *session {
	return &session{
		id:           id,
		userID:       userID,
		conn:         conn,
		log:          log,
		out:          make(chan v1.Envelope, cfg.SendQueue),
		writeTimeout: cfg.WriteTimeout,
		events:       newEventWindow(cfg.RateEvents, cfg.RateWindow),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// listen registers the session's observer as the user's listener. It must run before the
// writer and watcher goroutines start, so close never sees a half-set listener.
func (s *session) listen(ctx context.Context, registry *chat.Listeners, observer chat.Observer) error {
	if s.listener != nil {
		return errors.New("realtime: session already listening")
	}
	l, err := registry.Start(ctx, s.userID, observer)
	if err != nil {
		return err
	}
	s.listeners = registry
	s.listener = l
	return nil
}

// replaced is closed when the session's listener stops, which happens when a newer session
// of the same user takes over or the session itself closes.
func (s *session) replaced() <-chan struct{} {
	if s.listener == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.listener.Done()
}

// close is idempotent: it stops producers, cancels the session context, releases the listener
// (only if still current for the user) and closes the socket.
func (s *session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listeners != nil {
			s.listeners.Release(s.listener)
		}
		_ = s.conn.Close(code, reason)
	})
}

func (s *session) closed() <-chan struct{} { return s.done }

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// enqueue never blocks; a full queue drops the envelope. A closed session accepts nothing.
func (s *session) enqueue(ctx context.Context, env v1.Envelope) bool {
	if s.isClosed() {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case s.out <- env:
		return true
	default:
		return false
	}
}

// push waits up to the write timeout for queue space. Listener deliveries use it because the
// messages are already marked read and dropping one would lose it.
func (s *session) push(ctx context.Context, env v1.Envelope) bool {
	if s.isClosed() {
		return false
	}
	t := time.NewTimer(s.writeTimeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case <-t.C:
		return false
	case s.out <- env:
		return true
	}
}

// eventWindow admits at most limit inbound envelopes in any sliding window. It keeps the
// admission times of the last limit events in a ring; when full, next indexes the oldest.
// Not safe for concurrent use.
type eventWindow struct {
	limit  int
	window time.Duration
	ring   []time.Time
	next   int
	count  int
}

func newEventWindow(limit int, window time.Duration) *eventWindow {
	if limit <= 0 {
		limit = defaultRateEvents
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &eventWindow{limit: limit, window: window, ring: make([]time.Time, limit)}
}

func (w *eventWindow) allow(now time.Time) bool {
	if w.count == w.limit && now.Sub(w.ring[w.next]) < w.window {
		return false
	}
	w.ring[w.next] = now
	w.next = (w.next + 1) % w.limit
	if w.count < w.limit {
		w.count++
	}
	return true
}
