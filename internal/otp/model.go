package otp

import "time"

// State enumerates the lifecycle of an OTP transaction.
type State string

const (
	StateIssued   State = "issued"
	StateVerified State = "verified"
	StateExpired  State = "expired"
	StateFailed   State = "failed"
)

// Terminal reports whether no further transition can leave the state. Expired
// is not terminal for the attempt: the manager re-issues a fresh transaction.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateFailed
}

// Transaction is a snapshot of one OTP transaction. The identifier is opaque
// and provider-issued; a resend supersedes the transaction rather than
// mutating it, so each snapshot carries the identifier it was issued under.
type Transaction struct {
	ID                string
	NationalID        string
	MobileNumber      string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	AttemptsRemaining int
	State             State
}
