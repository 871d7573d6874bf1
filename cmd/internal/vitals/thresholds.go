package vitals

import "math"

// Vital names used in breach reports.
const (
	HeartRate       = "heart_rate"
	BloodPressure   = "blood_pressure"
	BodyTemperature = "body_temperature"
	OxygenLevel     = "oxygen_level"
)

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Thresholds holds the normal range per vital.
type Thresholds struct {
	HeartRate       Range
	BloodPressure   Range
	BodyTemperature Range
	OxygenLevel     Range
}

// DefaultThresholds returns the standard adult ranges:
// heart rate [60,100], blood pressure [90,140], temperature [36.1,37.2], oxygen >= 95.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRate:       Range{Min: 60, Max: 100},
		BloodPressure:   Range{Min: 90, Max: 140},
		BodyTemperature: Range{Min: 36.1, Max: 37.2},
		OxygenLevel:     Range{Min: 95, Max: math.Inf(1)},
	}
}

// Breach names one vital outside its range.
type Breach struct {
	Vital string
	Value float64
	Range Range
}

// Breaches lists every out-of-range vital of r, in a fixed order. A nil reading has none.
func (t Thresholds) Breaches(r *Reading) []Breach {
	if r == nil {
		return nil
	}

	var out []Breach
	check := func(name string, v float64, rg Range) {
		if !rg.Contains(v) {
			out = append(out, Breach{Vital: name, Value: v, Range: rg})
		}
	}
	check(HeartRate, r.heartRate, t.HeartRate)
	check(BloodPressure, r.bloodPressure, t.BloodPressure)
	check(BodyTemperature, r.bodyTemperature, t.BodyTemperature)
	check(OxygenLevel, r.oxygenLevel, t.OxygenLevel)
	return out
}

// Within reports whether every vital of r is in range. A nil reading counts as within range.
func (t Thresholds) Within(r *Reading) bool {
	return len(t.Breaches(r)) == 0
}
