package chat

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives what a Listener surfaces for its owner (UI, log, push).
// Implementations must not block for long: they run on the listener goroutine.
type Observer interface {
	OnMessages(ctx context.Context, owner string, msgs []Message)
	OnError(ctx context.Context, owner string, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Messages func(ctx context.Context, owner string, msgs []Message)
	Error    func(ctx context.Context, owner string, err error)
}

func (f ObserverFuncs) OnMessages(ctx context.Context, owner string, msgs []Message) {
	if f.Messages != nil {
		f.Messages(ctx, owner, msgs)
	}
}

func (f ObserverFuncs) OnError(ctx context.Context, owner string, err error) {
	if f.Error != nil {
		f.Error(ctx, owner, err)
	}
}

// LogObserver writes each surfaced message as one structured log line.
type LogObserver struct {
	Log *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

func (o LogObserver) OnMessages(ctx context.Context, owner string, msgs []Message) {
	for _, m := range msgs {
		o.logger().InfoContext(ctx, "chat.message.new",
			"owner", owner,
			"line", FormatIncoming(m),
			"from", m.SenderID,
			"message_id", m.ID,
		)
	}
}

func (o LogObserver) OnError(ctx context.Context, owner string, err error) {
	o.logger().WarnContext(ctx, "chat.listener.poll.fail", "owner", owner, "err", err)
}

// FormatIncoming renders a surfaced message as "From <sender>: <content> (<timestamp>)".
func FormatIncoming(m Message) string {
	return "From " + m.SenderID + ": " + m.Content + " (" + m.CreatedAt.Format(time.RFC3339) + ")"
}
