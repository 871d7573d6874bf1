// Package vitals models patient vital-sign readings and the physiological ranges they are judged against.
package vitals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"rpms/cmd/internal/errs"
)

// Reading is one immutable set of vitals for a patient. Fields are only reachable through getters,
// so a reading used for an alert decision cannot change after evaluation.
type Reading struct {
	patientID       string
	heartRate       float64
	bloodPressure   float64
	bodyTemperature float64
	oxygenLevel     float64
	date            time.Time
}

// NewReading validates and builds a Reading. The date is truncated to a calendar day and
// must not be in the future relative to now.
func NewReading(patientID string, heartRate, bloodPressure, bodyTemperature, oxygenLevel float64, date, now time.Time) (*Reading, error) {
	const op = "vitals.NewReading"

	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, errs.InvalidInput(op, "patient id is empty")
	}
	if date.IsZero() {
		return nil, errs.InvalidInput(op, "reading date is missing")
	}
	if now.IsZero() {
		now = time.Now()
	}
	day := truncateDay(date)
	if day.After(truncateDay(now)) {
		return nil, errs.InvalidInput(op, "reading date is in the future")
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"heart rate", heartRate},
		{"blood pressure", bloodPressure},
		{"body temperature", bodyTemperature},
		{"oxygen level", oxygenLevel},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return nil, errs.InvalidInput(op, v.name+" is not a finite number")
		}
	}

	return &Reading{
		patientID:       patientID,
		heartRate:       heartRate,
		bloodPressure:   bloodPressure,
		bodyTemperature: bodyTemperature,
		oxygenLevel:     oxygenLevel,
		date:            day,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (r *Reading) PatientID() string        { return r.patientID }
func (r *Reading) HeartRate() float64       { return r.heartRate }
func (r *Reading) BloodPressure() float64   { return r.bloodPressure }
func (r *Reading) BodyTemperature() float64 { return r.bodyTemperature }
func (r *Reading) OxygenLevel() float64     { return r.oxygenLevel }
func (r *Reading) Date() time.Time          { return r.date }

// Summary renders the four vitals as "HR=72, BP=110, Temp=36.8, O2=98".
func (r *Reading) Summary() string {
	return fmt.Sprintf("HR=%s, BP=%s, Temp=%s, O2=%s",
		num(r.heartRate), num(r.bloodPressure), num(r.bodyTemperature), num(r.oxygenLevel))
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
