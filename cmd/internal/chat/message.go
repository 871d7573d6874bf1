// Package chat contains the shared conversation store and the per-user listeners that drain it.
//
// Concurrency model:
//   - MemoryStore is the only shared mutable resource. Appends and the read-and-mark step of
//     UnreadFor run under one store-wide write lock, so every unread message is surfaced by
//     exactly one UnreadFor call.
//   - Listener goroutines are started explicitly by the caller and stopped cooperatively.
package chat

import (
	"strings"
	"time"
)

// Message is a stored chat message. Values handed out by the store are copies;
// mutating them never affects the store.
type Message struct {
	ID         string
	Seq        int64
	SenderID   string
	ReceiverID string
	Content    string
	CreatedAt  time.Time
	Read       bool
}

// ConversationKey identifies the unordered pair of participants of a conversation.
type ConversationKey struct {
	Low  string
	High string
}

// KeyFor canonicalizes (a, b) so that KeyFor(a, b) == KeyFor(b, a).
func KeyFor(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

func (k ConversationKey) String() string {
	return k.Low + "-" + k.High
}

// Involves reports whether userID is one of the two participants.
func (k ConversationKey) Involves(userID string) bool {
	return k.Low == userID || k.High == userID
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
