package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"rpms/cmd/internal/errs"
)

// SMSSender is the transport behind SMSChannel.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// SMSChannel delivers short texts. Address and body are required; SMS has no subject line,
// so a non-empty subject is prefixed to the text. No phone-number format validation is done.
type SMSChannel struct {
	sender SMSSender
}

// NewSMSChannel wraps sender.
func NewSMSChannel(sender SMSSender) (*SMSChannel, error) {
	if sender == nil {
		return nil, errs.InvalidInput("notify.NewSMSChannel", "sender is nil")
	}
	return &SMSChannel{sender: sender}, nil
}

func (c *SMSChannel) Kind() Kind { return KindSMS }

func (c *SMSChannel) Deliver(ctx context.Context, address, subject, body string) error {
	switch {
	case blank(address):
		return invalid(KindSMS, address, "address is empty")
	case blank(body):
		return invalid(KindSMS, address, "body is empty")
	}

	text := body
	if s := strings.TrimSpace(subject); s != "" {
		text = s + ": " + body
	}

	if err := c.sender.SendSMS(ctx, strings.TrimSpace(address), text); err != nil {
		return errs.Delivery(string(KindSMS), address, err)
	}
	return nil
}

// snsAPI is the minimal SNS interface required by SNSSender.
// *sns.Client from aws-sdk-go-v2 satisfies this interface.
type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes transactional SMS through Amazon SNS.
type SNSSender struct {
	api      snsAPI
	senderID string
}

// NewSNSSender creates a sender. senderID is optional (not supported in every region).
func NewSNSSender(api snsAPI, senderID string) (*SNSSender, error) {
	if api == nil {
		return nil, errs.InvalidInput("notify.NewSNSSender", "sns api is nil")
	}
	return &SNSSender{api: api, senderID: strings.TrimSpace(senderID)}, nil
}

func (s *SNSSender) SendSMS(ctx context.Context, phone, text string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(text),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	if out == nil || out.MessageId == nil {
		return fmt.Errorf("sns publish: missing message id")
	}
	return nil
}

// LogSender "sends" by writing a log line.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) SendSMS(ctx context.Context, phone, text string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notify.sms.sent", "to", phone, "text", text)
	return nil
}
