// Package alert decides when patient vitals warrant an alert and fans alerts out to recipients.
//
// The Engine is stateless between calls: every evaluation is a pure function of the reading and
// the recipient set passed in. Repeated breaches for the same patient fire every time.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/ids"
	"rpms/cmd/internal/metrics"
	"rpms/cmd/internal/vitals"
)

// Subject is the email subject used for every alert.
const Subject = "Emergency Alert"

// Trigger kinds.
const (
	KindThreshold = "threshold"
	KindPanic     = "panic"
)

// EmailSender is the slice of notify.Gateway the engine uses.
type EmailSender interface {
	SendEmail(ctx context.Context, address, subject, body string) error
}

// Responder is the designated person reached directly by a panic alert (e.g. the patient's doctor).
// It is a local callback, not a channel delivery. A returned error is reported by Panic.
type Responder interface {
	ReceiveAlert(ctx context.Context, patientID, message string) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, patientID, message string) error

func (f ResponderFunc) ReceiveAlert(ctx context.Context, patientID, message string) error {
	return f(ctx, patientID, message)
}

// Outcome describes one evaluation or dispatch.
type Outcome struct {
	ID        string
	Kind      string
	PatientID string
	Fired     bool
	Message   string
	Breaches  []vitals.Breach
	// Delivered counts recipients reached before success or the first failure.
	Delivered int
}

// Engine evaluates readings and dispatches alerts.
type Engine struct {
	sender     EmailSender
	thresholds vitals.Thresholds
	readings   ReadingSource
	log        *slog.Logger
	metrics    *metrics.Recorder
}

// Option configures Engine behavior.
type Option func(*Engine)

// WithThresholds overrides vitals.DefaultThresholds.
func WithThresholds(t vitals.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an engine that fans out through sender.
func NewEngine(sender EmailSender, opts ...Option) (*Engine, error) {
	if sender == nil {
		return nil, errs.InvalidInput("alert.NewEngine", "sender is nil")
	}
	e := &Engine{
		sender:     sender,
		thresholds: vitals.DefaultThresholds(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Thresholds returns the ranges the engine evaluates against.
func (e *Engine) Thresholds() vitals.Thresholds { return e.thresholds }

// CanAlert reports the error CheckVitals would return before any delivery: an abnormal
// reading with no one to alert. Callers that persist r first use it to reject the request
// without storing anything.
func (e *Engine) CanAlert(r *vitals.Reading, recipients RecipientSet) error {
	if r == nil || recipients.Len() > 0 || e.thresholds.Within(r) {
		return nil
	}
	return errs.InvalidInput("alert.CheckVitals", "no recipients")
}

// CheckVitals alerts every recipient when r has any vital out of range.
// A nil reading is treated as within range: no alert, no error.
// Delivery stops at the first failing recipient and that error is returned.
func (e *Engine) CheckVitals(ctx context.Context, r *vitals.Reading, recipients RecipientSet) (Outcome, error) {
	out := Outcome{ID: ids.NewAlertID(), Kind: KindThreshold}
	if r == nil {
		return out, nil
	}
	out.PatientID = r.PatientID()

	out.Breaches = e.thresholds.Breaches(r)
	if len(out.Breaches) == 0 {
		e.log.DebugContext(ctx, "alert.vitals.normal", "patient_id", out.PatientID)
		return out, nil
	}
	if err := e.CanAlert(r, recipients); err != nil {
		return out, err
	}

	out.Fired = true
	out.Message = thresholdMessage(r, out.Breaches)

	var err error
	out.Delivered, err = e.fanOut(ctx, out, recipients)
	return out, err
}

// Panic alerts every recipient unconditionally, then notifies responder directly.
// The responder is reached even when fan-out failed. Fan-out and responder errors are joined.
func (e *Engine) Panic(ctx context.Context, patientID string, recipients RecipientSet, responder Responder) (Outcome, error) {
	const op = "alert.Panic"

	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Outcome{}, errs.InvalidInput(op, "patient id is empty")
	}
	if responder == nil {
		return Outcome{}, errs.InvalidInput(op, "responder is nil")
	}
	if recipients.Len() == 0 {
		return Outcome{}, errs.InvalidInput(op, "no recipients")
	}

	out := Outcome{
		ID:        ids.NewAlertID(),
		Kind:      KindPanic,
		PatientID: patientID,
		Fired:     true,
		Message:   panicMessage(patientID),
	}

	var err error
	out.Delivered, err = e.fanOut(ctx, out, recipients)

	if rerr := responder.ReceiveAlert(ctx, patientID, out.Message); rerr != nil {
		e.log.ErrorContext(ctx, "alert.responder.fail", "alert_id", out.ID, "patient_id", patientID, "err", rerr)
		return out, errors.Join(err, rerr)
	}
	e.log.InfoContext(ctx, "alert.responder.notified", "alert_id", out.ID, "patient_id", patientID)

	return out, err
}

func (e *Engine) fanOut(ctx context.Context, out Outcome, recipients RecipientSet) (int, error) {
	e.metrics.AlertFired(out.Kind)
	e.log.InfoContext(ctx, "alert.fired",
		"alert_id", out.ID,
		"kind", out.Kind,
		"patient_id", out.PatientID,
		"recipients", recipients.Len(),
	)

	for i, addr := range recipients.addrs {
		if err := e.sender.SendEmail(ctx, addr, Subject, out.Message); err != nil {
			e.log.ErrorContext(ctx, "alert.fanout.fail",
				"alert_id", out.ID,
				"recipient_index", i,
				"to", addr,
				"err", err,
			)
			return i, err
		}
	}
	return recipients.Len(), nil
}

func thresholdMessage(r *vitals.Reading, breaches []vitals.Breach) string {
	names := make([]string, 0, len(breaches))
	for _, b := range breaches {
		names = append(names, b.Vital)
	}
	return fmt.Sprintf("Alert! Patient %s's vital signs are abnormal: %s (out of range: %s)",
		r.PatientID(), r.Summary(), strings.Join(names, ", "))
}

func panicMessage(patientID string) string {
	return "Emergency! Patient " + patientID + " needs immediate attention."
}
