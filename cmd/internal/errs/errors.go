package errs

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Kind MUST be one of the sentinel kinds. Msg is human-readable context.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// InvalidInput builds an OpError of kind ErrInvalidInput.
func InvalidInput(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// InvalidState builds an OpError of kind ErrInvalidState.
func InvalidState(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidState, Msg: msg}
}

// DeliveryError reports a failed delivery attempt on one channel.
// It matches ErrDelivery and also the underlying cause (which may itself be ErrInvalidInput).
type DeliveryError struct {
	Channel string
	Address string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v to %q", e.Channel, ErrDelivery, e.Address)
	}
	return fmt.Sprintf("%s: %v to %q: %v", e.Channel, ErrDelivery, e.Address, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDelivery}
	}
	return []error{ErrDelivery, e.Err}
}

// Delivery wraps cause as a *DeliveryError.
func Delivery(channel, address string, cause error) error {
	return &DeliveryError{Channel: channel, Address: address, Err: cause}
}

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsInvalidState reports whether err represents ErrInvalidState.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsDelivery reports whether err represents ErrDelivery (including DeliveryError).
func IsDelivery(err error) bool { return errors.Is(err, ErrDelivery) }
