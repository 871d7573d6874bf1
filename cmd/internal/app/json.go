package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"rpms/cmd/internal/errs"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// errorStatus maps domain error kinds to HTTP. Empty-field delivery errors carry both
// the delivery and invalid-input kinds; they are the caller's fault, so input wins.
func errorStatus(err error) (int, string) {
	switch {
	case errs.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_request"
	case errs.IsInvalidState(err):
		return http.StatusConflict, "invalid_state"
	case errs.IsDelivery(err):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func (a *App) writeDomainError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), event, "err", err)
		writeError(w, status, code, "internal error")
		return
	}
	a.log.InfoContext(r.Context(), event, "err", err, "status", status)
	writeError(w, status, code, err.Error())
}
