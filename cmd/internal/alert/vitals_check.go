package alert

import (
	"context"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/vitals"
)

// ReadingSource returns a patient's most recent reading (nil when none exists).
// *vitals.Log satisfies it.
type ReadingSource interface {
	Latest(patientID string) (*vitals.Reading, error)
}

// WithReadings sets the source CheckLatest reads from.
func WithReadings(src ReadingSource) Option {
	return func(e *Engine) { e.readings = src }
}

// CheckLatest evaluates the newest recorded reading of patientID.
// Unlike CheckVitals with a nil reading, asking about a patient with no readings is ErrInvalidState.
func (e *Engine) CheckLatest(ctx context.Context, patientID string, recipients RecipientSet) (Outcome, error) {
	if e.readings == nil {
		return Outcome{}, errs.InvalidState("alert.CheckLatest", "no reading source configured")
	}
	r, err := e.readings.Latest(patientID)
	if err != nil {
		return Outcome{}, err
	}
	if r == nil {
		return Outcome{}, errs.InvalidState("alert.CheckLatest", "no reading recorded for patient "+patientID)
	}
	return e.CheckVitals(ctx, r, recipients)
}
