// Package notify delivers alerts and reminders over pluggable channels (email, SMS, ...).
//
// A Channel performs exactly one synchronous delivery attempt per call. Every failure is an
// *errs.DeliveryError so callers can test errors.Is(err, errs.ErrDelivery) regardless of transport.
// Adding a channel means adding a new Channel implementation; the Gateway routes by Kind.
package notify

import (
	"context"
	"strings"

	"rpms/cmd/internal/errs"
)

// Kind names a delivery channel variant.
type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
)

// Channel is the uniform delivery capability.
type Channel interface {
	Kind() Kind
	Deliver(ctx context.Context, address, subject, body string) error
}

func invalid(kind Kind, address, msg string) error {
	return errs.Delivery(string(kind), address, errs.InvalidInput("notify."+string(kind), msg))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
