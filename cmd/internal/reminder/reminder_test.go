package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpms/cmd/internal/errs"
)

type mail struct{ to, subject, body string }

type fakeSender struct {
	sent []mail
	fail map[string]error
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	if err := f.fail[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, mail{to, subject, body})
	return nil
}

func newService(t *testing.T, s EmailSender) *Service {
	t.Helper()
	svc, err := NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc
}

func TestAppointmentRemindersOnlyApproved(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	svc := newService(t, sender)
	at := time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC)

	res, err := svc.SendAppointmentReminders(context.Background(), []Appointment{
		{PatientEmail: "p1@x.org", DoctorName: "Smith", At: at, Status: StatusApproved},
		{PatientEmail: "p2@x.org", DoctorName: "Smith", At: at, Status: StatusPending},
		{PatientEmail: "p3@x.org", DoctorName: "Jones", At: at, Status: "Approved"},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2, Skipped: 1}, res)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, mail{"p1@x.org", "Appointment Reminder", "Reminder: Appointment with Dr. Smith on 2026-10-20 09:30"}, sender.sent[0])
	assert.Equal(t, "p3@x.org", sender.sent[1].to)
}

func TestMedicationReminders(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	svc := newService(t, sender)

	res, err := svc.SendMedicationReminders(context.Background(), []Prescription{
		{PatientEmail: "p1@x.org", Medication: "Metformin", Dosage: "500mg", Schedule: "twice daily"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, mail{"p1@x.org", "Medication Reminder", "Reminder: Take Metformin (500mg) as per schedule: twice daily"}, sender.sent[0])
}

func TestRemindersStopAtFirstFailure(t *testing.T) {
	t.Parallel()

	boom := errs.Delivery("email", "p2@x.org", errors.New("down"))
	sender := &fakeSender{fail: map[string]error{"p2@x.org": boom}}
	svc := newService(t, sender)

	res, err := svc.SendMedicationReminders(context.Background(), []Prescription{
		{PatientEmail: "p1@x.org", Medication: "A", Dosage: "1", Schedule: "daily"},
		{PatientEmail: "p2@x.org", Medication: "B", Dosage: "2", Schedule: "daily"},
		{PatientEmail: "p3@x.org", Medication: "C", Dosage: "3", Schedule: "daily"},
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, errs.IsDelivery(err))
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, sender.sent, 1)
}

func TestNewServiceRequiresSender(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil, nil)
	assert.True(t, errs.IsInvalidInput(err))
}
