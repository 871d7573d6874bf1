package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"rpms/cmd/internal/alert"
	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/vitals"
)

func (a *App) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	client, err := chat.NewClient(req.SenderID, a.stores.conversations)
	if err != nil {
		a.writeDomainError(w, r, "chat.send.fail", err)
		return
	}
	msg, err := client.Send(r.Context(), req.ReceiverID, req.Content)
	if err != nil {
		a.writeDomainError(w, r, "chat.send.fail", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (a *App) handleConversation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userA, userB := strings.TrimSpace(q.Get("a")), strings.TrimSpace(q.Get("b"))
	if userA == "" || userB == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query parameters a and b are required")
		return
	}

	msgs, err := a.stores.conversations.MessagesBetween(r.Context(), userA, userB)
	if err != nil {
		a.writeDomainError(w, r, "chat.conversation.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessageResponses(msgs)})
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	with := strings.TrimSpace(r.URL.Query().Get("with"))
	if with == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query parameter with is required")
		return
	}

	client, err := chat.NewClient(userID, a.stores.conversations)
	if err != nil {
		a.writeDomainError(w, r, "chat.history.fail", err)
		return
	}
	lines, err := client.History(r.Context(), with)
	if err != nil {
		a.writeDomainError(w, r, "chat.history.fail", err)
		return
	}

	out := historyResponse{UserID: userID, With: with, Lines: make([]historyLineResponse, 0, len(lines))}
	for _, l := range lines {
		out.Lines = append(out.Lines, historyLineResponse{
			Prefix:  l.Prefix,
			Content: l.Content,
			At:      l.At,
			Line:    l.Prefix + ": " + l.Content,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUnread drains the user's unread messages. Messages returned here are marked read
// and will not be surfaced again by a listener.
func (a *App) handleUnread(w http.ResponseWriter, r *http.Request) {
	client, err := chat.NewClient(r.PathValue("user"), a.stores.conversations)
	if err != nil {
		a.writeDomainError(w, r, "chat.unread.fail", err)
		return
	}
	msgs, err := client.Unread(r.Context())
	if err != nil {
		a.writeDomainError(w, r, "chat.unread.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessageResponses(msgs)})
}

func (a *App) handleListeners(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listenersResponse{Active: a.listeners.Active()})
}

func (a *App) handleRecordVitals(w http.ResponseWriter, r *http.Request) {
	var req recordVitalsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	now := time.Now().UTC()
	date := now
	if strings.TrimSpace(req.Date) != "" {
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.Date), time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	reading, err := vitals.NewReading(req.PatientID, req.HeartRate, req.BloodPressure, req.BodyTemperature, req.OxygenLevel, date, now)
	if err != nil {
		a.writeDomainError(w, r, "vitals.record.fail", err)
		return
	}

	recipients, err := a.recipients(r.Context(), req.Recipients, false)
	if err != nil {
		a.writeDomainError(w, r, "vitals.record.fail", err)
		return
	}
	if err := a.alerts.CanAlert(reading, recipients); err != nil {
		a.writeDomainError(w, r, "vitals.record.fail", err)
		return
	}

	if err := a.readings.Add(reading); err != nil {
		a.writeDomainError(w, r, "vitals.record.fail", err)
		return
	}

	out, err := a.alerts.CheckVitals(r.Context(), reading, recipients)
	if err != nil {
		a.writeAlertError(w, r, "vitals.alert.fail", out, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordVitalsResponse{
		Reading: toReadingResponse(reading),
		Alert:   toOutcomeResponse(out),
	})
}

func (a *App) handleVitalsHistory(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("patient")
	history, err := a.readings.History(patientID)
	if err != nil {
		a.writeDomainError(w, r, "vitals.history.fail", err)
		return
	}

	out := readingsResponse{PatientID: patientID, Readings: make([]readingResponse, 0, len(history))}
	for _, rd := range history {
		out.Readings = append(out.Readings, toReadingResponse(rd))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handleLatestVitals(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("patient")
	latest, err := a.readings.Latest(patientID)
	if err != nil {
		a.writeDomainError(w, r, "vitals.latest.fail", err)
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "not_found", "no reading recorded for patient")
		return
	}
	writeJSON(w, http.StatusOK, toReadingResponse(latest))
}

func (a *App) handleCheckLatest(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	recipients, err := a.recipients(r.Context(), req.Recipients, false)
	if err != nil {
		a.writeDomainError(w, r, "alert.check.fail", err)
		return
	}

	out, err := a.alerts.CheckLatest(r.Context(), r.PathValue("patient"), recipients)
	if err != nil {
		a.writeAlertError(w, r, "alert.check.fail", out, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (a *App) handlePanic(w http.ResponseWriter, r *http.Request) {
	var req panicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	responderID := strings.TrimSpace(req.ResponderID)
	if responderID == "" {
		a.writeDomainError(w, r, "alert.panic.fail", errs.InvalidInput("app.handlePanic", "responder id is empty"))
		return
	}

	recipients, err := a.recipients(r.Context(), req.Recipients, true)
	if err != nil {
		a.writeDomainError(w, r, "alert.panic.fail", err)
		return
	}

	responder := chatResponder{
		store:    a.stores.conversations,
		sms:      a.notify,
		senderID: a.cfg.SystemSenderID,
		userID:   responderID,
		phone:    req.ResponderPhone,
		log:      a.log,
	}
	out, err := a.alerts.Panic(r.Context(), req.PatientID, recipients, responder)
	if err != nil {
		a.writeAlertError(w, r, "alert.panic.fail", out, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeResponse(out))
}

func (a *App) handleAppointmentReminders(w http.ResponseWriter, r *http.Request) {
	var req appointmentRemindersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := a.reminders.SendAppointmentReminders(r.Context(), req.Appointments)
	if err != nil {
		a.writeDomainError(w, r, "reminder.appointments.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleMedicationReminders(w http.ResponseWriter, r *http.Request) {
	var req medicationRemindersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := a.reminders.SendMedicationReminders(r.Context(), req.Prescriptions)
	if err != nil {
		a.writeDomainError(w, r, "reminder.medications.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// recipients uses the explicit list when given, the roster otherwise. With required unset an
// empty roster yields an empty set; the engine rejects it only if an alert has to go out.
func (a *App) recipients(ctx context.Context, explicit []string, required bool) (alert.RecipientSet, error) {
	if len(explicit) > 0 {
		return alert.NewRecipientSet(explicit)
	}
	if required {
		return alert.FromRoster(ctx, a.stores.roster)
	}
	if a.stores.roster == nil {
		return alert.RecipientSet{}, nil
	}
	contacts, err := a.stores.roster.Contacts(ctx)
	if err != nil {
		return alert.RecipientSet{}, err
	}
	if len(contacts) == 0 {
		return alert.RecipientSet{}, nil
	}
	return alert.NewRecipientSet(contacts)
}

// writeAlertError keeps the outcome in the body when fan-out was attempted, so callers see
// how many recipients were reached before the failure.
func (a *App) writeAlertError(w http.ResponseWriter, r *http.Request, event string, out alert.Outcome, err error) {
	if !out.Fired {
		a.writeDomainError(w, r, event, err)
		return
	}
	status, code := errorStatus(err)
	a.log.WarnContext(r.Context(), event, "alert_id", out.ID, "delivered", out.Delivered, "err", err)
	writeJSON(w, status, alertFailureResponse{
		Alert: toOutcomeResponse(out),
		Error: apiError{Code: code, Message: err.Error()},
	})
}

func (a *App) handleStartConsultation(w http.ResponseWriter, r *http.Request) {
	var req startConsultationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	c, err := a.consults.Start(r.Context(), req.DoctorID, req.PatientID)
	if err != nil {
		a.writeDomainError(w, r, "consult.start.fail", err)
		return
	}
	writeJSON(w, http.StatusCreated, toConsultationResponse(c))
}

func (a *App) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	c, ok := a.consults.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown consultation")
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}
