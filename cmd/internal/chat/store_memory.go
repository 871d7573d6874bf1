package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/ids"
	"rpms/cmd/internal/metrics"
)

// MemoryStore is the in-memory ConversationStore.
// A single RWMutex guards every conversation: writers (append, read-and-mark) are exclusive,
// MessagesBetween readers share the lock and copy out a consistent snapshot.
type MemoryStore struct {
	metrics *metrics.Recorder

	mu    sync.RWMutex
	seq   int64
	convs map[ConversationKey]*memConv
}

type memConv struct {
	msgs []*Message // insertion order == chronological order
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*MemoryStore)

// WithStoreMetrics attaches a metrics recorder.
func WithStoreMetrics(m *metrics.Recorder) MemoryStoreOption {
	return func(s *MemoryStore) { s.metrics = m }
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		convs: make(map[ConversationKey]*memConv),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AppendMessage validates and appends a message to the conversation of its two participants.
// A message that fails validation is never inserted.
func (s *MemoryStore) AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error) {
	if err := in.validate(); err != nil {
		return Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}

	key := KeyFor(in.SenderID, in.ReceiverID)

	s.mu.Lock()
	s.seq++
	msg := &Message{
		ID:         id,
		Seq:        s.seq,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		CreatedAt:  now,
	}
	c := s.convs[key]
	if c == nil {
		c = &memConv{msgs: make([]*Message, 0, 16)}
		s.convs[key] = c
	}
	c.msgs = append(c.msgs, msg)
	out := *msg
	s.mu.Unlock()

	s.metrics.MessageAppended()
	return out, nil
}

// MessagesBetween returns the full ordered conversation between userA and userB (empty if none).
// It does not change read flags.
func (s *MemoryStore) MessagesBetween(ctx context.Context, userA, userB string) ([]Message, error) {
	const op = "chat.MessagesBetween"

	if blank(userA) || blank(userB) {
		return nil, errs.InvalidInput(op, "user ids cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.convs[KeyFor(userA, userB)]
	if c == nil {
		return []Message{}, nil
	}
	out := make([]Message, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = *m
	}
	return out, nil
}

// UnreadFor collects every unread message addressed to userID, marks them read and returns
// them in creation order. The whole scan runs under the write lock.
func (s *MemoryStore) UnreadFor(ctx context.Context, userID string) ([]Message, error) {
	const op = "chat.UnreadFor"

	if blank(userID) {
		return nil, errs.InvalidInput(op, "user id is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Message

	s.mu.Lock()
	for key, c := range s.convs {
		if !key.Involves(userID) {
			continue
		}
		for _, m := range c.msgs {
			if m.ReceiverID != userID || m.Read {
				continue
			}
			m.Read = true
			out = append(out, *m)
		}
	}
	s.mu.Unlock()

	// Map iteration is unordered; Seq restores global creation order.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	s.metrics.UnreadSurfaced(len(out))
	return out, nil
}
