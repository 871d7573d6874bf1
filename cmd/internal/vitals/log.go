package vitals

import (
	"strings"
	"sync"

	"rpms/cmd/internal/errs"
)

// Log is an in-memory, thread-safe record of readings per patient.
type Log struct {
	mu        sync.RWMutex
	byPatient map[string][]*Reading
}

// NewLog constructs an empty Log.
func NewLog() *Log {
	return &Log{byPatient: make(map[string][]*Reading)}
}

// Add records r.
func (l *Log) Add(r *Reading) error {
	if r == nil {
		return errs.InvalidInput("vitals.Log.Add", "reading is nil")
	}

	l.mu.Lock()
	l.byPatient[r.patientID] = append(l.byPatient[r.patientID], r)
	l.mu.Unlock()
	return nil
}

// Latest returns the newest reading by date for patientID, or nil when none is recorded.
// On equal dates the reading added first wins.
func (l *Log) Latest(patientID string) (*Reading, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, errs.InvalidInput("vitals.Log.Latest", "patient id is empty")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var latest *Reading
	for _, r := range l.byPatient[patientID] {
		if latest == nil || r.date.After(latest.date) {
			latest = r
		}
	}
	return latest, nil
}

// History returns all readings for patientID in insertion order.
func (l *Log) History(patientID string) ([]*Reading, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, errs.InvalidInput("vitals.Log.History", "patient id is empty")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]*Reading(nil), l.byPatient[patientID]...), nil
}
