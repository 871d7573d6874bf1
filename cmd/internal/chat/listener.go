package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/metrics"
)

// DefaultPollInterval is how often a Listener drains its owner's unread messages.
const DefaultPollInterval = 3 * time.Second

// Listener polls the store for one user's unread messages and hands them to an Observer.
//
// Lifecycle:
//   - NewListener has no side effects; Start spawns the goroutine.
//   - Stop is idempotent and safe from any goroutine. Once Stop returns, the loop makes no
//     further store calls after the poll (if any) already in flight.
//   - Done is closed when the goroutine has exited.
type Listener struct {
	owner    string
	store    UnreadSource
	observer Observer
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Recorder

	mu      sync.Mutex
	started bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// ListenerOption configures Listener behavior.
type ListenerOption func(*Listener)

// WithPollInterval overrides DefaultPollInterval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithListenerLogger sets the logger used for lifecycle events.
func WithListenerLogger(log *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// WithListenerMetrics attaches a metrics recorder.
func WithListenerMetrics(m *metrics.Recorder) ListenerOption {
	return func(l *Listener) { l.metrics = m }
}

// NewListener binds a listener to owner and store. It does not start polling.
func NewListener(owner string, store UnreadSource, observer Observer, opts ...ListenerOption) (*Listener, error) {
	const op = "chat.NewListener"

	if blank(owner) {
		return nil, errs.InvalidInput(op, "owner id is empty")
	}
	if store == nil {
		return nil, errs.InvalidInput(op, "store is nil")
	}
	if observer == nil {
		observer = LogObserver{}
	}

	l := &Listener{
		owner:    owner,
		store:    store,
		observer: observer,
		interval: DefaultPollInterval,
		log:      slog.Default(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Owner returns the user id the listener polls for.
func (l *Listener) Owner() string { return l.owner }

// Start spawns the polling goroutine. A listener can be started once.
// Cancelling ctx has the same effect as Stop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errs.InvalidState("chat.Listener.Start", "listener already started")
	}
	select {
	case <-l.stop:
		return errs.InvalidState("chat.Listener.Start", "listener already stopped")
	default:
	}
	l.started = true

	l.metrics.ListenerStarted()
	go l.run(ctx)
	return nil
}

// Stop signals the goroutine to exit. It does not wait; use Done for that.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done returns a channel closed once the goroutine has exited.
// For a listener that was never started, Done is closed by Stop.
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	if !started {
		select {
		case <-l.stop:
			ch := make(chan struct{})
			close(ch)
			return ch
		default:
		}
	}
	return l.done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer l.metrics.ListenerStopped()

	l.log.Info("chat.listener.start", "owner", l.owner, "interval", l.interval)
	defer l.log.Info("chat.listener.stop", "owner", l.owner)

	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		if !l.alive(ctx) {
			return
		}
		l.poll(ctx)

		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// alive is checked at every cycle boundary, before any store access.
func (l *Listener) alive(ctx context.Context) bool {
	select {
	case <-l.stop:
		return false
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func (l *Listener) poll(ctx context.Context) {
	msgs, err := l.store.UnreadFor(ctx, l.owner)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.metrics.PollError()
		l.observer.OnError(ctx, l.owner, err)
		return
	}
	if len(msgs) > 0 {
		l.observer.OnMessages(ctx, l.owner, msgs)
	}
}
