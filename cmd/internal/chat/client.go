package chat

import (
	"context"
	"time"

	"rpms/cmd/internal/errs"
)

// Client is one user's handle on the conversation store: sending, reading history,
// and draining unread messages on demand.
type Client struct {
	userID string
	store  ConversationStore
	now    func() time.Time
}

// HistoryLine is one rendered entry of a conversation seen from the client's side.
type HistoryLine struct {
	Prefix  string // "You" or "Them"
	Content string
	At      time.Time
}

// NewClient binds a client to userID.
func NewClient(userID string, store ConversationStore) (*Client, error) {
	if blank(userID) || store == nil {
		return nil, errs.InvalidInput("chat.NewClient", "user id or store cannot be empty")
	}
	return &Client{
		userID: userID,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// UserID returns the id of the client owner.
func (c *Client) UserID() string { return c.userID }

// Send appends a message from the client owner to receiverID.
func (c *Client) Send(ctx context.Context, receiverID, content string) (Message, error) {
	return c.store.AppendMessage(ctx, AppendMessageInput{
		SenderID:   c.userID,
		ReceiverID: receiverID,
		Content:    content,
		Now:        c.now(),
	})
}

// Unread drains the owner's unread messages.
func (c *Client) Unread(ctx context.Context) ([]Message, error) {
	return c.store.UnreadFor(ctx, c.userID)
}

// History returns the conversation with otherID, labelled from the owner's point of view.
func (c *Client) History(ctx context.Context, otherID string) ([]HistoryLine, error) {
	msgs, err := c.store.MessagesBetween(ctx, c.userID, otherID)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryLine, 0, len(msgs))
	for _, m := range msgs {
		prefix := "Them"
		if m.SenderID == c.userID {
			prefix = "You"
		}
		out = append(out, HistoryLine{Prefix: prefix, Content: m.Content, At: m.CreatedAt})
	}
	return out, nil
}
