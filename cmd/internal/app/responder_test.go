package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/errs"
)

type recordedSMS struct {
	to, subject, body string
}

type fakeSMS struct {
	sent []recordedSMS
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, address, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recordedSMS{to: address, subject: subject, body: body})
	return nil
}

func TestChatResponder_DeliversAfterCallerCancels(t *testing.T) {
	t.Parallel()

	store := chat.NewMemoryStore()
	sms := &fakeSMS{}
	r := chatResponder{
		store:    store,
		sms:      sms,
		senderID: "rpms-alerts",
		userID:   "dr-house",
		phone:    " +15550001 ",
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.ReceiveAlert(ctx, "p1", "Emergency! Patient p1 needs immediate attention."))

	inbox, err := store.UnreadFor(context.Background(), "dr-house")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "rpms-alerts", inbox[0].SenderID)

	require.Len(t, sms.sent, 1)
	assert.Equal(t, recordedSMS{to: "+15550001", subject: "Emergency Alert", body: "Emergency! Patient p1 needs immediate attention."}, sms.sent[0])
}

func TestChatResponder_ReportsFailures(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	down := errors.New("sms down")

	r := chatResponder{store: chat.NewMemoryStore(), sms: &fakeSMS{err: down}, senderID: "rpms-alerts", userID: "dr-house", phone: "+1", log: log}
	assert.ErrorIs(t, r.ReceiveAlert(context.Background(), "p1", "help"), down)

	// A blank sender fails the inbox write but the SMS copy still goes out.
	sms := &fakeSMS{}
	r = chatResponder{store: chat.NewMemoryStore(), sms: sms, senderID: " ", userID: "dr-house", phone: "+1", log: log}
	err := r.ReceiveAlert(context.Background(), "p1", "help")
	assert.True(t, errs.IsDelivery(err), "err=%v", err)
	assert.True(t, errs.IsInvalidInput(err), "err=%v", err)
	assert.Len(t, sms.sent, 1)

	// Without a phone number nothing is texted.
	sms = &fakeSMS{}
	r = chatResponder{store: chat.NewMemoryStore(), sms: sms, senderID: "rpms-alerts", userID: "dr-house", log: log}
	require.NoError(t, r.ReceiveAlert(context.Background(), "p1", "help"))
	assert.Empty(t, sms.sent)
}

func TestPanic_TextsResponderPhone(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, []string{"doc@x.org"})

	resp, body := ta.do(t, http.MethodPost, "/v1/alerts/panic", panicRequest{
		PatientID: "p1", ResponderID: "dr-house", ResponderPhone: "+15550001",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, 1, ta.logs.count(`"notify.sms.sent"`))
	assert.Equal(t, 1, ta.logs.count(`"msg":"notify.sms.sent","to":"+15550001"`))

	resp, body = ta.do(t, http.MethodPost, "/v1/alerts/panic", panicRequest{PatientID: "p2", ResponderID: "dr-house"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, 1, ta.logs.count(`"notify.sms.sent"`))
}
