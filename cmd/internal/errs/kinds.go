// Package errs defines the error taxonomy shared by the messaging and alerting packages.
//
// Every failing operation reports one of the sentinel kinds so callers can branch with errors.Is
// and the HTTP layer can map kinds to status codes.
package errs

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrInvalidState = errors.New("invalid_state")
	ErrDelivery     = errors.New("delivery_failed")
)
