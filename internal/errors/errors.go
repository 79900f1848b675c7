// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderRejected     = errors.New("order rejected")
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoData            = errors.New("no data available")
	ErrDatabaseError     = errors.New("database error")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrQuarantined       = errors.New("trading halted pending acknowledgement")
)

// TransportError represents a failed exchange call where no usable response
// was obtained: connection failures, timeouts, malformed bodies. The caller
// treats it as "no data this tick" and retries the same action next tick.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// ExchangeError represents an explicit error message returned by the
// exchange. The server processed and rejected the request, so the triggering
// action must not be retried; the message is quarantined until acknowledged.
type ExchangeError struct {
	Op      string
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error [%s]: %s", e.Op, e.Message)
}

// NewExchangeError creates a new ExchangeError.
func NewExchangeError(op, message string) *ExchangeError {
	return &ExchangeError{Op: op, Message: message}
}

// IsRetryable reports whether err is a transport-class failure that should
// be retried verbatim on the next tick.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsExchangeError extracts an ExchangeError from err's chain, if present.
func AsExchangeError(err error) (*ExchangeError, bool) {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
