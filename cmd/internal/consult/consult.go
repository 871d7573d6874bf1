// Package consult starts doctor-patient video consultations.
//
// A consultation is a meeting link minted from a random UUID under the configured video base URL.
// Starting one posts the link to the patient's chat inbox from the doctor, so the patient's
// listener surfaces the invitation like any other message.
package consult

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/errs"
)

// DefaultBaseURL hosts meeting rooms when no base URL is configured.
const DefaultBaseURL = "https://rpms-video.example.com"

// Inbox is the slice of chat.ConversationStore used to deliver invitations.
type Inbox interface {
	AppendMessage(ctx context.Context, in chat.AppendMessageInput) (chat.Message, error)
}

// Consultation is one started video call.
type Consultation struct {
	ID        string
	DoctorID  string
	PatientID string
	Link      string
	StartedAt time.Time
	// InvitationID is the chat message carrying the link to the patient.
	InvitationID string
}

// Service mints meeting links and remembers started consultations.
type Service struct {
	inbox Inbox
	base  *url.URL
	log   *slog.Logger
	now   func() time.Time

	mu    sync.RWMutex
	calls map[string]Consultation
}

// Option configures Service behavior.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService validates baseURL (absolute http or https; empty means DefaultBaseURL).
func NewService(inbox Inbox, baseURL string, opts ...Option) (*Service, error) {
	const op = "consult.NewService"

	if inbox == nil {
		return nil, errs.InvalidInput(op, "inbox is nil")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errs.InvalidInput(op, "base url must be an absolute http(s) url")
	}

	s := &Service{
		inbox: inbox,
		base:  base,
		log:   slog.Default(),
		now:   time.Now,
		calls: make(map[string]Consultation),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start mints a meeting link for doctorID and patientID and invites the patient.
// The consultation is recorded only after the invitation is stored.
func (s *Service) Start(ctx context.Context, doctorID, patientID string) (Consultation, error) {
	const op = "consult.Start"

	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	switch {
	case doctorID == "":
		return Consultation{}, errs.InvalidInput(op, "doctor id is empty")
	case patientID == "":
		return Consultation{}, errs.InvalidInput(op, "patient id is empty")
	case doctorID == patientID:
		return Consultation{}, errs.InvalidInput(op, "doctor and patient must differ")
	}

	id := uuid.NewString()
	c := Consultation{
		ID:        id,
		DoctorID:  doctorID,
		PatientID: patientID,
		Link:      s.base.JoinPath(id).String(),
		StartedAt: s.now().UTC(),
	}

	msg, err := s.inbox.AppendMessage(ctx, chat.AppendMessageInput{
		SenderID:   doctorID,
		ReceiverID: patientID,
		Content:    Invitation(c.Link),
		Now:        c.StartedAt,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "consult.invite.fail", "consultation_id", id, "patient_id", patientID, "err", err)
		return Consultation{}, err
	}
	c.InvitationID = msg.ID

	s.mu.Lock()
	s.calls[id] = c
	s.mu.Unlock()

	s.log.InfoContext(ctx, "consult.started", "consultation_id", id, "doctor_id", doctorID, "patient_id", patientID)
	return c, nil
}

// Get returns the consultation with id. ok is false for unknown ids.
func (s *Service) Get(id string) (Consultation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[strings.TrimSpace(id)]
	return c, ok
}

// Invitation is the chat text that carries a meeting link.
func Invitation(link string) string {
	return "Video call started: " + link
}
