package notify

import (
	"context"
	"log/slog"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/metrics"
)

// Gateway routes deliveries to the channel registered for each Kind.
// It holds no mutable state after construction and is safe for concurrent use.
// Calls are fail-fast delegations: one attempt, no retry, no queue.
type Gateway struct {
	channels map[Kind]Channel
	log      *slog.Logger
	metrics  *metrics.Recorder
}

// GatewayOption configures Gateway behavior.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger used for delivery outcomes.
func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithGatewayMetrics attaches a metrics recorder.
func WithGatewayMetrics(m *metrics.Recorder) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway registers one channel per kind. At least one channel is required.
func NewGateway(channels []Channel, opts ...GatewayOption) (*Gateway, error) {
	const op = "notify.NewGateway"

	if len(channels) == 0 {
		return nil, errs.InvalidInput(op, "no channels")
	}

	g := &Gateway{
		channels: make(map[Kind]Channel, len(channels)),
		log:      slog.Default(),
	}
	for _, ch := range channels {
		if ch == nil {
			return nil, errs.InvalidInput(op, "nil channel")
		}
		if _, dup := g.channels[ch.Kind()]; dup {
			return nil, errs.InvalidInput(op, "duplicate channel kind: "+string(ch.Kind()))
		}
		g.channels[ch.Kind()] = ch
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Has reports whether a channel of kind is registered.
func (g *Gateway) Has(kind Kind) bool {
	_, ok := g.channels[kind]
	return ok
}

// SendEmail delivers through the email channel.
func (g *Gateway) SendEmail(ctx context.Context, address, subject, body string) error {
	return g.Send(ctx, KindEmail, address, subject, body)
}

// SendSMS delivers through the SMS channel.
func (g *Gateway) SendSMS(ctx context.Context, address, subject, body string) error {
	return g.Send(ctx, KindSMS, address, subject, body)
}

// Send delivers through the channel registered for kind.
// It returns only after the channel has attempted delivery.
func (g *Gateway) Send(ctx context.Context, kind Kind, address, subject, body string) error {
	ch, ok := g.channels[kind]
	if !ok {
		return errs.InvalidState("notify.Gateway.Send", "no channel for kind "+string(kind))
	}

	err := ch.Deliver(ctx, address, subject, body)
	g.metrics.Delivery(string(kind), err)
	if err != nil {
		g.log.WarnContext(ctx, "notify.deliver.fail", "channel", string(kind), "to", address, "err", err)
		return err
	}
	g.log.DebugContext(ctx, "notify.deliver.ok", "channel", string(kind), "to", address)
	return nil
}
