// Package reminder emails appointment and medication reminders through the notification gateway.
package reminder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rpms/cmd/internal/errs"
)

// Subjects of reminder emails.
const (
	AppointmentSubject = "Appointment Reminder"
	MedicationSubject  = "Medication Reminder"
)

// Appointment status values; only approved appointments are reminded.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// TimeLayout renders appointment times in reminder bodies.
const TimeLayout = "2006-01-02 15:04"

// EmailSender is the slice of notify.Gateway the service uses.
type EmailSender interface {
	SendEmail(ctx context.Context, address, subject, body string) error
}

// Appointment is a scheduled visit.
type Appointment struct {
	PatientEmail string    `json:"patient_email"`
	DoctorName   string    `json:"doctor_name"`
	At           time.Time `json:"at"`
	Status       string    `json:"status"`
}

// Prescription is one medication entry for a patient.
type Prescription struct {
	PatientEmail string `json:"patient_email"`
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Schedule     string `json:"schedule"`
}

// Result counts reminders sent and appointments skipped for not being approved.
type Result struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
}

// Service sends reminders. It keeps no state between calls.
type Service struct {
	sender EmailSender
	log    *slog.Logger
}

// NewService constructs a Service. A nil logger falls back to slog.Default().
func NewService(sender EmailSender, log *slog.Logger) (*Service, error) {
	if sender == nil {
		return nil, errs.InvalidInput("reminder.NewService", "sender is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{sender: sender, log: log}, nil
}

// SendAppointmentReminders emails every approved appointment in order and stops at the first failure.
func (s *Service) SendAppointmentReminders(ctx context.Context, appts []Appointment) (Result, error) {
	var res Result
	for _, a := range appts {
		if !strings.EqualFold(strings.TrimSpace(a.Status), StatusApproved) {
			res.Skipped++
			continue
		}
		body := "Reminder: Appointment with Dr. " + a.DoctorName + " on " + a.At.Format(TimeLayout)
		if err := s.sender.SendEmail(ctx, a.PatientEmail, AppointmentSubject, body); err != nil {
			s.log.ErrorContext(ctx, "reminder.appointment.fail", "to", a.PatientEmail, "err", err)
			return res, err
		}
		res.Sent++
	}
	s.log.InfoContext(ctx, "reminder.appointment.done", "sent", res.Sent, "skipped", res.Skipped)
	return res, nil
}

// SendMedicationReminders emails every prescription in order and stops at the first failure.
func (s *Service) SendMedicationReminders(ctx context.Context, rxs []Prescription) (Result, error) {
	var res Result
	for _, p := range rxs {
		body := "Reminder: Take " + p.Medication + " (" + p.Dosage + ") as per schedule: " + p.Schedule
		if err := s.sender.SendEmail(ctx, p.PatientEmail, MedicationSubject, body); err != nil {
			s.log.ErrorContext(ctx, "reminder.medication.fail", "to", p.PatientEmail, "err", err)
			return res, err
		}
		res.Sent++
	}
	s.log.InfoContext(ctx, "reminder.medication.done", "sent", res.Sent)
	return res, nil
}
