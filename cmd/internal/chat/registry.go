package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"rpms/cmd/internal/errs"
)

// Listeners keeps at most one running Listener per user.
// Starting a listener for a user that already has one stops the previous listener first,
// so re-login never leaks a concurrent poller.
type Listeners struct {
	store UnreadSource
	opts  []ListenerOption
	log   *slog.Logger

	mu     sync.Mutex
	active map[string]*Listener
}

// NewListeners constructs a registry; opts are applied to every listener it starts.
func NewListeners(store UnreadSource, log *slog.Logger, opts ...ListenerOption) *Listeners {
	if log == nil {
		log = slog.Default()
	}
	return &Listeners{
		store:  store,
		opts:   append([]ListenerOption{WithListenerLogger(log)}, opts...),
		log:    log,
		active: make(map[string]*Listener),
	}
}

// Start creates and starts a listener for owner, replacing (and stopping) any existing one.
func (r *Listeners) Start(ctx context.Context, owner string, observer Observer) (*Listener, error) {
	if r == nil {
		return nil, errs.InvalidState("chat.Listeners.Start", "nil registry")
	}

	l, err := NewListener(owner, r.store, observer, r.opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.active[owner]
	r.active[owner] = l
	r.mu.Unlock()

	if prev != nil {
		prev.Stop()
		r.log.Info("chat.listener.replaced", "owner", owner)
	}

	if err := l.Start(ctx); err != nil {
		r.remove(owner, l)
		return nil, err
	}
	return l, nil
}

// Stop stops the listener of owner, if any. It is a no-op for unknown users.
func (r *Listeners) Stop(owner string) {
	r.mu.Lock()
	l := r.active[owner]
	delete(r.active, owner)
	r.mu.Unlock()

	if l != nil {
		l.Stop()
	}
}

// Release stops l and removes it only if it is still the active listener of its owner.
// Callers that hold a listener which may have been replaced use this instead of Stop.
func (r *Listeners) Release(l *Listener) {
	if l == nil {
		return
	}
	r.remove(l.Owner(), l)
	l.Stop()
}

// StopAll stops every listener and waits for their goroutines to exit.
func (r *Listeners) StopAll() {
	r.mu.Lock()
	all := make([]*Listener, 0, len(r.active))
	for _, l := range r.active {
		all = append(all, l)
	}
	r.active = make(map[string]*Listener)
	r.mu.Unlock()

	for _, l := range all {
		l.Stop()
	}
	for _, l := range all {
		<-l.Done()
	}
}

// Active returns the owners with a registered listener, sorted.
func (r *Listeners) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.active))
	for owner := range r.active {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

func (r *Listeners) remove(owner string, l *Listener) {
	r.mu.Lock()
	if r.active[owner] == l {
		delete(r.active, owner)
	}
	r.mu.Unlock()
}
