package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
)

var (
	// ErrNoTransaction indicates no OTP transaction is live for this attempt.
	ErrNoTransaction = errors.New("no active otp transaction")

	// ErrCodeNotNumeric rejects non-digit input before it is counted against
	// the attempt budget or sent anywhere.
	ErrCodeNotNumeric = errors.New("code must be digits only")

	// ErrWrongCode indicates a mismatch within the attempt budget.
	ErrWrongCode = errors.New("wrong code")

	// ErrAttemptsExhausted indicates the budget reached zero; the transaction
	// is failed regardless of remaining time.
	ErrAttemptsExhausted = errors.New("attempt budget exhausted")

	// ErrExpired indicates the transaction window elapsed or the transaction
	// was superseded; a fresh code has been (or is being) issued.
	ErrExpired = errors.New("transaction expired, a new code was sent")
)

// maxAutoReissues caps how many expiry-driven re-issues may happen in a row
// without any user interaction. Each cycle sends an SMS; an abandoned attempt
// must not keep sending them until restart.
const maxAutoReissues = 3

// Issuer is the subset of the identity provider the manager needs.
type Issuer interface {
	RequestOTP(ctx context.Context, nationalID, mobileNumber string) (string, error)
	VerifyOTP(ctx context.Context, transactionID, code string) error
}

// Manager owns the OTP transactions of a single onboarding attempt. At most
// one transaction is live at a time; issuing a new one supersedes the
// previous. The expiry countdown is a scheduled task owned by the manager:
// when it fires while the transaction is still issued, the manager silently
// re-issues through the same path as a manual resend.
type Manager struct {
	issuer      Issuer
	window      time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu           sync.Mutex
	tx           *Transaction
	timer        *time.Timer
	gen          uint64 // bumped on every state transition; stale racers check it and bail
	autoReissues int    // consecutive expiry re-issues since the last user interaction
}

// NewManager builds a manager with the given expiry window and attempt budget.
func NewManager(issuer Issuer, window time.Duration, maxAttempts int, logger *slog.Logger) *Manager {
	return &Manager{issuer: issuer, window: window, maxAttempts: maxAttempts, logger: logger}
}

// Issue starts a new OTP transaction, superseding any live one. The attempt
// budget and countdown are reset.
func (m *Manager) Issue(ctx context.Context, nationalID, mobileNumber string) (Transaction, error) {
	txID, err := m.issuer.RequestOTP(ctx, nationalID, mobileNumber)
	if err != nil {
		return Transaction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.install(txID, nationalID, mobileNumber)
	return *m.tx, nil
}

// Resend re-issues a code for the current attempt through the same path as
// Issue. The previous transaction identifier becomes invalid.
func (m *Manager) Resend(ctx context.Context) (Transaction, error) {
	m.mu.Lock()
	if m.tx == nil {
		m.mu.Unlock()
		return Transaction{}, ErrNoTransaction
	}
	nationalID, mobile := m.tx.NationalID, m.tx.MobileNumber
	m.autoReissues = 0
	m.mu.Unlock()

	return m.Issue(ctx, nationalID, mobile)
}

// SubmitCode verifies a user-entered code against the live transaction.
// Non-digit input is rejected before any network call and does not consume an
// attempt. The returned snapshot reflects the transaction after the call.
func (m *Manager) SubmitCode(ctx context.Context, code string) (Transaction, error) {
	if !digitsOnly(code) {
		return m.Current(), ErrCodeNotNumeric
	}

	m.mu.Lock()
	m.autoReissues = 0
	if m.tx == nil {
		m.mu.Unlock()
		return Transaction{}, ErrNoTransaction
	}
	switch m.tx.State {
	case StateVerified, StateFailed:
		snap := *m.tx
		m.mu.Unlock()
		if snap.State == StateFailed {
			return snap, ErrAttemptsExhausted
		}
		return snap, fmt.Errorf("transaction already verified: %w", ErrNoTransaction)
	case StateExpired:
		snap := *m.tx
		m.mu.Unlock()
		return snap, ErrExpired
	}
	gen := m.gen
	txID := m.tx.ID
	m.mu.Unlock()

	err := m.issuer.VerifyOTP(ctx, txID, code)

	m.mu.Lock()
	if m.gen != gen || m.tx == nil {
		// The countdown fired (or the attempt was cancelled) while the verify
		// call was in flight; the expiry transition won.
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, ErrExpired
	}

	switch {
	case err == nil:
		m.tx.State = StateVerified
		m.stopTimerLocked()
		snap := *m.tx
		m.mu.Unlock()
		return snap, nil

	case errors.Is(err, provider.ErrInvalidCode):
		m.tx.AttemptsRemaining--
		if m.tx.AttemptsRemaining <= 0 {
			m.tx.State = StateFailed
			m.stopTimerLocked()
			snap := *m.tx
			m.mu.Unlock()
			return snap, ErrAttemptsExhausted
		}
		snap := *m.tx
		m.mu.Unlock()
		return snap, fmt.Errorf("%w (%d attempts remaining)", ErrWrongCode, snap.AttemptsRemaining)

	case errors.Is(err, provider.ErrTransactionExpired):
		m.gen++
		m.tx.State = StateExpired
		nationalID, mobile := m.tx.NationalID, m.tx.MobileNumber
		m.mu.Unlock()
		m.reissueExpired(nationalID, mobile)
		return m.Current(), ErrExpired

	default:
		snap := *m.tx
		m.mu.Unlock()
		return snap, err
	}
}

// Cancel discards the in-flight transaction and stops the countdown. No
// background re-issue happens after cancellation.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.stopTimerLocked()
	m.tx = nil
}

// Current returns a snapshot of the live transaction, zero when none.
func (m *Manager) Current() Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// install records a freshly issued transaction and arms its countdown.
// Callers hold m.mu.
func (m *Manager) install(txID, nationalID, mobileNumber string) {
	m.gen++
	gen := m.gen
	m.stopTimerLocked()

	now := time.Now()
	m.tx = &Transaction{
		ID:                txID,
		NationalID:        nationalID,
		MobileNumber:      mobileNumber,
		IssuedAt:          now,
		ExpiresAt:         now.Add(m.window),
		AttemptsRemaining: m.maxAttempts,
		State:             StateIssued,
	}
	m.timer = time.AfterFunc(m.window, func() { m.expire(gen) })
}

// expire runs when the countdown fires. A stale generation means a verify,
// resend or cancel won the race, in which case expiry is a no-op. Otherwise
// the attempt self-heals: the manager re-issues a fresh transaction, up to
// maxAutoReissues cycles without user interaction.
func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.tx == nil || m.tx.State != StateIssued {
		m.mu.Unlock()
		return
	}
	// Claim the transition before releasing the lock. A verify already in
	// flight re-checks the generation afterwards and loses the race; exactly
	// one of the two outcomes happens.
	m.gen++
	m.tx.State = StateExpired
	m.timer = nil
	nationalID, mobile := m.tx.NationalID, m.tx.MobileNumber
	if m.autoReissues >= maxAutoReissues {
		m.mu.Unlock()
		m.logger.Warn("otp attempt abandoned, auto-reissue budget spent", slog.String("national_id", nationalID))
		return
	}
	m.autoReissues++
	m.mu.Unlock()

	m.reissueExpired(nationalID, mobile)
}

// reissueExpired issues a replacement transaction after an expiry. Failure to
// re-issue leaves the attempt in Expired; the next submit or resend reports
// it.
func (m *Manager) reissueExpired(nationalID, mobileNumber string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := m.Issue(ctx, nationalID, mobileNumber); err != nil {
		m.logger.Warn("otp auto-reissue failed", slog.String("national_id", nationalID), slog.Any("error", err))
		return
	}
	m.logger.Info("otp transaction expired, re-issued", slog.String("national_id", nationalID))
}

func (m *Manager) snapshotLocked() Transaction {
	if m.tx == nil {
		return Transaction{}
	}
	return *m.tx
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func digitsOnly(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
