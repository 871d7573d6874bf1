package app

import (
	"context"
	"errors"
	"strings"

	"rpms/cmd/internal/alert"
	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/errs"
)

// smsSender is the slice of notify.Gateway the responder uses for its optional text copy.
type smsSender interface {
	SendSMS(ctx context.Context, address, subject, body string) error
}

// chatResponder delivers a panic alert to the responder's chat inbox, so their listener
// (or live WebSocket session) surfaces it on the next poll. When phone is set the alert is
// also texted to it.
type chatResponder struct {
	store    chat.ConversationStore
	sms      smsSender
	senderID string
	userID   string
	phone    string
	log      Logger
}

var _ alert.Responder = chatResponder{}

// ReceiveAlert runs detached from the caller's cancellation: once the alert has fired, the
// responder copy is written even if the HTTP client has gone away.
func (r chatResponder) ReceiveAlert(ctx context.Context, patientID, message string) error {
	ctx = context.WithoutCancel(ctx)
	r.log.InfoContext(ctx, "alert.responder.received", "responder_id", r.userID, "patient_id", patientID)

	var inboxErr error
	if _, err := r.store.AppendMessage(ctx, chat.AppendMessageInput{
		SenderID:   r.senderID,
		ReceiverID: r.userID,
		Content:    message,
	}); err != nil {
		r.log.ErrorContext(ctx, "alert.responder.inbox.fail", "responder_id", r.userID, "err", err)
		inboxErr = errs.Delivery("inbox", r.userID, err)
	}

	phone := strings.TrimSpace(r.phone)
	if phone == "" || r.sms == nil {
		return inboxErr
	}
	if err := r.sms.SendSMS(ctx, phone, alert.Subject, message); err != nil {
		r.log.ErrorContext(ctx, "alert.responder.sms.fail", "responder_id", r.userID, "err", err)
		return errors.Join(inboxErr, err)
	}
	return inboxErr
}
