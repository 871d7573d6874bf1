package vitals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpms/cmd/internal/errs"
)

var today = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func mustReading(t *testing.T, hr, bp, temp, o2 float64) *Reading {
	t.Helper()
	r, err := NewReading("p1", hr, bp, temp, o2, today, today)
	require.NoError(t, err)
	return r
}

func TestNewReading_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		patient string
		hr      float64
		date    time.Time
	}{
		{name: "empty patient", patient: " ", hr: 70, date: today},
		{name: "zero date", patient: "p1", hr: 70},
		{name: "future date", patient: "p1", hr: 70, date: today.Add(48 * time.Hour)},
		{name: "nan", patient: "p1", hr: math.NaN(), date: today},
		{name: "inf", patient: "p1", hr: math.Inf(1), date: today},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewReading(tc.patient, tc.hr, 110, 36.8, 98, tc.date, today)
			assert.True(t, errs.IsInvalidInput(err), "err=%v", err)
		})
	}
}

func TestNewReading_SameDayLaterHourAllowed(t *testing.T) {
	t.Parallel()

	r, err := NewReading("p1", 70, 110, 36.8, 98, today.Add(6*time.Hour), today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), r.Date())
	assert.Equal(t, "p1", r.PatientID())
	assert.Equal(t, "HR=70, BP=110, Temp=36.8, O2=98", r.Summary())
}

func TestThresholds(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	cases := []struct {
		name   string
		r      *Reading
		within bool
		vitals []string
	}{
		{name: "normal", r: mustReading(t, 72, 110, 36.8, 98), within: true},
		{name: "nil reading", r: nil, within: true},
		{name: "low heart rate", r: mustReading(t, 45, 110, 36.8, 98), vitals: []string{HeartRate}},
		{name: "boundaries inclusive", r: mustReading(t, 60, 140, 36.1, 95), within: true},
		{name: "upper boundaries", r: mustReading(t, 100, 90, 37.2, 100), within: true},
		{name: "high bp and fever", r: mustReading(t, 80, 150, 38.5, 97), vitals: []string{BloodPressure, BodyTemperature}},
		{name: "hypoxia", r: mustReading(t, 80, 120, 36.6, 94.9), vitals: []string{OxygenLevel}},
		{name: "all out", r: mustReading(t, 120, 80, 35, 80), vitals: []string{HeartRate, BloodPressure, BodyTemperature, OxygenLevel}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.within, th.Within(tc.r))
			var got []string
			for _, b := range th.Breaches(tc.r) {
				got = append(got, b.Vital)
			}
			assert.Equal(t, tc.vitals, got)
		})
	}
}

func TestLog_LatestAndHistory(t *testing.T) {
	t.Parallel()

	l := NewLog()

	none, err := l.Latest("p1")
	require.NoError(t, err)
	assert.Nil(t, none)

	older, err := NewReading("p1", 70, 110, 36.8, 98, today.AddDate(0, 0, -3), today)
	require.NoError(t, err)
	newer, err := NewReading("p1", 50, 110, 36.8, 98, today.AddDate(0, 0, -1), today)
	require.NoError(t, err)
	other, err := NewReading("p2", 70, 110, 36.8, 98, today, today)
	require.NoError(t, err)

	require.NoError(t, l.Add(newer))
	require.NoError(t, l.Add(older))
	require.NoError(t, l.Add(other))

	latest, err := l.Latest("p1")
	require.NoError(t, err)
	assert.Same(t, newer, latest)

	hist, err := l.History("p1")
	require.NoError(t, err)
	assert.Equal(t, []*Reading{newer, older}, hist)

	assert.True(t, errs.IsInvalidInput(l.Add(nil)))
	_, err = l.Latest("")
	assert.True(t, errs.IsInvalidInput(err))
	_, err = l.History("")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNewReading_ReportsFirstNonFiniteVital(t *testing.T) {
	t.Parallel()

	for range 20 {
		_, err := NewReading("p1", 70, math.NaN(), 36.8, math.Inf(-1), today, today)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blood pressure is not a finite number")
	}
}

func TestLog_LatestKeepsFirstOnEqualDates(t *testing.T) {
	t.Parallel()

	l := NewLog()
	first, err := NewReading("p1", 70, 110, 36.8, 98, today, today)
	require.NoError(t, err)
	second, err := NewReading("p1", 130, 110, 36.8, 98, today.Add(time.Hour), today)
	require.NoError(t, err)

	require.NoError(t, l.Add(first))
	require.NoError(t, l.Add(second))

	latest, err := l.Latest("p1")
	require.NoError(t, err)
	assert.Same(t, first, latest)
}
