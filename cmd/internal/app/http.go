package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ReadinessRequireDB && a.stores.pool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if a.stores.pool != nil {
			if err := pingDB(r.Context(), a.stores.pool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	mux.HandleFunc("POST /v1/messages", a.handleSendMessage)
	mux.HandleFunc("GET /v1/conversations", a.handleConversation)
	mux.HandleFunc("GET /v1/users/{user}/history", a.handleHistory)
	mux.HandleFunc("GET /v1/users/{user}/unread", a.handleUnread)
	mux.HandleFunc("GET /v1/listeners", a.handleListeners)

	mux.HandleFunc("POST /v1/vitals", a.handleRecordVitals)
	mux.HandleFunc("GET /v1/patients/{patient}/vitals", a.handleVitalsHistory)
	mux.HandleFunc("GET /v1/patients/{patient}/vitals/latest", a.handleLatestVitals)
	mux.HandleFunc("POST /v1/patients/{patient}/check", a.handleCheckLatest)
	mux.HandleFunc("POST /v1/alerts/panic", a.handlePanic)

	mux.HandleFunc("POST /v1/reminders/appointments", a.handleAppointmentReminders)
	mux.HandleFunc("POST /v1/reminders/medications", a.handleMedicationReminders)

	mux.HandleFunc("POST /v1/consultations", a.handleStartConsultation)
	mux.HandleFunc("GET /v1/consultations/{id}", a.handleGetConsultation)

	mux.Handle("/ws", a.ws)
}
