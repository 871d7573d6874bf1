package app

import (
	"math"
	"time"

	"rpms/cmd/internal/alert"
	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/consult"
	"rpms/cmd/internal/reminder"
	"rpms/cmd/internal/vitals"
)

type sendMessageRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		Read:       m.Read,
	}
}

func toMessageResponses(msgs []chat.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

type historyLineResponse struct {
	Prefix  string    `json:"prefix"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
	Line    string    `json:"line"`
}

type historyResponse struct {
	UserID string                `json:"user_id"`
	With   string                `json:"with"`
	Lines  []historyLineResponse `json:"lines"`
}

type listenersResponse struct {
	Active []string `json:"active"`
}

type recordVitalsRequest struct {
	PatientID       string   `json:"patient_id"`
	HeartRate       float64  `json:"heart_rate"`
	BloodPressure   float64  `json:"blood_pressure"`
	BodyTemperature float64  `json:"body_temperature"`
	OxygenLevel     float64  `json:"oxygen_level"`
	Date            string   `json:"date"`
	Recipients      []string `json:"recipients,omitempty"`
}

type readingResponse struct {
	PatientID       string  `json:"patient_id"`
	HeartRate       float64 `json:"heart_rate"`
	BloodPressure   float64 `json:"blood_pressure"`
	BodyTemperature float64 `json:"body_temperature"`
	OxygenLevel     float64 `json:"oxygen_level"`
	Date            string  `json:"date"`
	Summary         string  `json:"summary"`
}

const dateLayout = "2006-01-02"

func toReadingResponse(r *vitals.Reading) readingResponse {
	return readingResponse{
		PatientID:       r.PatientID(),
		HeartRate:       r.HeartRate(),
		BloodPressure:   r.BloodPressure(),
		BodyTemperature: r.BodyTemperature(),
		OxygenLevel:     r.OxygenLevel(),
		Date:            r.Date().Format(dateLayout),
		Summary:         r.Summary(),
	}
}

type readingsResponse struct {
	PatientID string            `json:"patient_id"`
	Readings  []readingResponse `json:"readings"`
}

type breachResponse struct {
	Vital string  `json:"vital"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	// Max is omitted for open-ended ranges; JSON has no infinity.
	Max *float64 `json:"max,omitempty"`
}

type outcomeResponse struct {
	ID        string           `json:"id,omitempty"`
	Kind      string           `json:"kind"`
	PatientID string           `json:"patient_id"`
	Fired     bool             `json:"fired"`
	Message   string           `json:"message,omitempty"`
	Breaches  []breachResponse `json:"breaches"`
	Delivered int              `json:"delivered"`
}

func toOutcomeResponse(o alert.Outcome) outcomeResponse {
	breaches := make([]breachResponse, 0, len(o.Breaches))
	for _, b := range o.Breaches {
		br := breachResponse{Vital: b.Vital, Value: b.Value, Min: b.Range.Min}
		if !math.IsInf(b.Range.Max, 1) {
			hi := b.Range.Max
			br.Max = &hi
		}
		breaches = append(breaches, br)
	}
	return outcomeResponse{
		ID:        o.ID,
		Kind:      o.Kind,
		PatientID: o.PatientID,
		Fired:     o.Fired,
		Message:   o.Message,
		Breaches:  breaches,
		Delivered: o.Delivered,
	}
}

type recordVitalsResponse struct {
	Reading readingResponse `json:"reading"`
	Alert   outcomeResponse `json:"alert"`
}

type checkRequest struct {
	Recipients []string `json:"recipients,omitempty"`
}

type panicRequest struct {
	PatientID      string   `json:"patient_id"`
	ResponderID    string   `json:"responder_id"`
	// ResponderPhone, when set, also receives the alert by SMS.
	ResponderPhone string   `json:"responder_phone,omitempty"`
	Recipients     []string `json:"recipients,omitempty"`
}

// alertFailureResponse reports a partial fan-out: the outcome so far plus the error.
type alertFailureResponse struct {
	Alert outcomeResponse `json:"alert"`
	Error apiError        `json:"error"`
}

type appointmentRemindersRequest struct {
	Appointments []reminder.Appointment `json:"appointments"`
}

type medicationRemindersRequest struct {
	Prescriptions []reminder.Prescription `json:"prescriptions"`
}

type startConsultationRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
}

type consultationResponse struct {
	ID           string    `json:"id"`
	DoctorID     string    `json:"doctor_id"`
	PatientID    string    `json:"patient_id"`
	Link         string    `json:"link"`
	StartedAt    time.Time `json:"started_at"`
	InvitationID string    `json:"invitation_id"`
}

func toConsultationResponse(c consult.Consultation) consultationResponse {
	return consultationResponse{
		ID:           c.ID,
		DoctorID:     c.DoctorID,
		PatientID:    c.PatientID,
		Link:         c.Link,
		StartedAt:    c.StartedAt,
		InvitationID: c.InvitationID,
	}
}
