package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the national identity number does not exist at the
	// provider. Terminal: callers must not retry.
	ErrNotFound = errors.New("identity not found")

	// ErrAuthRejected indicates the provider rejected our bearer token twice in
	// a row, i.e. once before and once after a forced refresh.
	ErrAuthRejected = errors.New("authorization rejected")

	// ErrInvalidCode indicates a wrong OTP code. The caller may retry within
	// the transaction's attempt budget.
	ErrInvalidCode = errors.New("invalid code")

	// ErrTransactionExpired indicates the OTP transaction window elapsed or the
	// transaction was superseded. A new transaction must be issued; the old
	// transaction identifier must never be retried.
	ErrTransactionExpired = errors.New("transaction expired")
)

// Error reports a transport failure or a generic provider-side failure.
// Distinct from ErrNotFound so callers can tell "identity does not exist"
// apart from "provider unreachable". These are the retryable outcomes.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
}

// IsTransient reports whether the error is a transport or provider failure the
// caller may retry with backoff. NotFound, auth rejection and OTP outcomes are
// never transient.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
