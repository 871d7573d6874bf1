package chat

import (
	"context"
	"time"
	"unicode/utf8"

	"rpms/cmd/internal/errs"
)

// MaxContentChars caps a message body, in runes. Every store and the realtime gateway
// enforce the same limit.
const MaxContentChars = 4000

// ConversationStore persists two-party conversations and hands out unread messages.
//
// Requirements:
//   - One ordered sequence per unordered pair of users
//   - Messages are never reordered or removed; only the read flag changes
//   - UnreadFor is an atomic read-and-mark: a message is returned by at most one call
type ConversationStore interface {
	AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error)
	MessagesBetween(ctx context.Context, userA, userB string) ([]Message, error)
	UnreadFor(ctx context.Context, userID string) ([]Message, error)
}

// UnreadSource is the narrow store view a Listener needs.
type UnreadSource interface {
	UnreadFor(ctx context.Context, userID string) ([]Message, error)
}

// AppendMessageInput describes a message append request.
type AppendMessageInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	Now        time.Time
}

// validate runs before any store mutation.
func (in AppendMessageInput) validate() error {
	const op = "chat.AppendMessage"

	switch {
	case blank(in.SenderID):
		return errs.InvalidInput(op, "sender id is empty")
	case blank(in.ReceiverID):
		return errs.InvalidInput(op, "receiver id is empty")
	case blank(in.Content):
		return errs.InvalidInput(op, "content is empty")
	case utf8.RuneCountInString(in.Content) > MaxContentChars:
		return errs.InvalidInput(op, "content is too long")
	}
	return nil
}
