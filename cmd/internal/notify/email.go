package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrz1836/postmark"

	"rpms/cmd/internal/errs"
)

// Email is one outbound plain-text email.
type Email struct {
	To      string
	Subject string
	Body    string
	Tag     string
}

// Mailer is the transport behind EmailChannel.
type Mailer interface {
	SendMail(ctx context.Context, e Email) error
}

// EmailChannel delivers over a Mailer. Address, subject and body are all required.
// Address format is validated upstream by the identity collaborator, not here.
type EmailChannel struct {
	mailer Mailer
	tag    string
}

// NewEmailChannel wraps mailer. tag is forwarded to providers that support message tagging.
func NewEmailChannel(mailer Mailer, tag string) (*EmailChannel, error) {
	if mailer == nil {
		return nil, errs.InvalidInput("notify.NewEmailChannel", "mailer is nil")
	}
	return &EmailChannel{mailer: mailer, tag: tag}, nil
}

func (c *EmailChannel) Kind() Kind { return KindEmail }

func (c *EmailChannel) Deliver(ctx context.Context, address, subject, body string) error {
	switch {
	case blank(address):
		return invalid(KindEmail, address, "address is empty")
	case blank(subject):
		return invalid(KindEmail, address, "subject is empty")
	case blank(body):
		return invalid(KindEmail, address, "body is empty")
	}

	err := c.mailer.SendMail(ctx, Email{
		To:      strings.TrimSpace(address),
		Subject: subject,
		Body:    body,
		Tag:     c.tag,
	})
	if err != nil {
		return errs.Delivery(string(KindEmail), address, err)
	}
	return nil
}

// postmarkAPI is the minimal Postmark client surface used by PostmarkMailer.
// *postmark.Client satisfies it.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkMailer sends through Postmark's transactional API.
type PostmarkMailer struct {
	api     postmarkAPI
	from    string
	replyTo string
}

// ErrPostmarkConfig is returned for an incomplete Postmark configuration.
var ErrPostmarkConfig = errors.New("notify: invalid postmark config")

// NewPostmarkMailer builds a Postmark-backed Mailer. Both tokens and the sender are required.
func NewPostmarkMailer(serverToken, accountToken, from, replyTo string) (*PostmarkMailer, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrPostmarkConfig)
	}
	if accountToken == "" {
		return nil, fmt.Errorf("%w: account token is required", ErrPostmarkConfig)
	}
	return newPostmarkMailer(postmark.NewClient(serverToken, accountToken), from, replyTo)
}

func newPostmarkMailer(api postmarkAPI, from, replyTo string) (*PostmarkMailer, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: nil client", ErrPostmarkConfig)
	}
	if blank(from) {
		return nil, fmt.Errorf("%w: sender address is required", ErrPostmarkConfig)
	}
	if blank(replyTo) {
		replyTo = from
	}
	return &PostmarkMailer{api: api, from: from, replyTo: replyTo}, nil
}

func (m *PostmarkMailer) SendMail(ctx context.Context, e Email) error {
	resp, err := m.api.SendEmail(ctx, postmark.Email{
		From:     m.from,
		ReplyTo:  m.replyTo,
		To:       e.To,
		Subject:  e.Subject,
		Tag:      e.Tag,
		TextBody: e.Body,
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

// LogMailer "sends" by writing a log line. Used when no provider is configured.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) SendMail(ctx context.Context, e Email) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notify.email.sent", "to", e.To, "subject", e.Subject, "body", e.Body)
	return nil
}
