package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/logging"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
)

// fakeIssuer accepts a fixed code against the most recently issued
// transaction, mirroring the provider's supersede-on-reissue behaviour.
type fakeIssuer struct {
	mu          sync.Mutex
	accept      string
	issued      []string
	verifyCalls int
	issueErr    error
}

func (f *fakeIssuer) RequestOTP(_ context.Context, nationalID, mobileNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return "", f.issueErr
	}
	id := fmt.Sprintf("tx-%d", len(f.issued)+1)
	f.issued = append(f.issued, id)
	return id, nil
}

func (f *fakeIssuer) VerifyOTP(_ context.Context, transactionID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if len(f.issued) == 0 || transactionID != f.issued[len(f.issued)-1] {
		return provider.ErrTransactionExpired
	}
	if code != f.accept {
		return provider.ErrInvalidCode
	}
	return nil
}

func (f *fakeIssuer) issueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

func (f *fakeIssuer) verifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

func newManager(issuer Issuer, window time.Duration) *Manager {
	return NewManager(issuer, window, 4, logging.Discard())
}

func TestSubmitCorrectCode(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, time.Minute)
	ctx := context.Background()

	tx, err := m.Issue(ctx, "902531234V", "+94771234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tx.State != StateIssued || tx.AttemptsRemaining != 4 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	got, err := m.SubmitCode(ctx, "1234")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.State != StateVerified {
		t.Fatalf("expected verified, got %s", got.State)
	}
}

func TestWrongCodeConsumesBudget(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, time.Minute)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 3; i++ {
		tx, err := m.SubmitCode(ctx, "0000")
		if !errors.Is(err, ErrWrongCode) {
			t.Fatalf("attempt %d: expected ErrWrongCode, got %v", i+1, err)
		}
		if tx.AttemptsRemaining != 3-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i+1, 3-i, tx.AttemptsRemaining)
		}
	}

	// The 4th wrong code, not a 5th, drives the transaction to failed.
	tx, err := m.SubmitCode(ctx, "0000")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if tx.State != StateFailed {
		t.Fatalf("expected failed, got %s", tx.State)
	}

	// Terminal: even the correct code cannot succeed any more.
	if _, err := m.SubmitCode(ctx, "1234"); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected terminal transaction to stay failed, got %v", err)
	}
}

func TestNonDigitInputRejectedBeforeNetwork(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, time.Minute)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, code := range []string{"", "12a4", "12 4", "१२३४"} {
		tx, err := m.SubmitCode(ctx, code)
		if !errors.Is(err, ErrCodeNotNumeric) {
			t.Fatalf("code %q: expected ErrCodeNotNumeric, got %v", code, err)
		}
		if tx.AttemptsRemaining != 4 {
			t.Fatalf("code %q consumed an attempt", code)
		}
	}
	if issuer.verifyCount() != 0 {
		t.Fatal("non-digit input must not reach the provider")
	}
}

func TestExpiryAutoReissues(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, 40*time.Millisecond)
	ctx := context.Background()

	first, err := m.Issue(ctx, "902531234V", "+94771234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		cur := m.Current()
		return cur.ID != first.ID && cur.State == StateIssued
	})

	cur := m.Current()
	if cur.ID == first.ID {
		t.Fatal("expected a fresh transaction id after expiry")
	}
	if cur.AttemptsRemaining != 4 {
		t.Fatalf("expected attempt budget reset, got %d", cur.AttemptsRemaining)
	}
}

func TestCancelStopsCountdown(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, 40*time.Millisecond)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.Cancel()

	time.Sleep(150 * time.Millisecond)
	if got := issuer.issueCount(); got != 1 {
		t.Fatalf("expected no re-issue after cancel, got %d issues", got)
	}
	if cur := m.Current(); cur.ID != "" {
		t.Fatalf("expected no live transaction, got %+v", cur)
	}

	if _, err := m.SubmitCode(ctx, "1234"); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestExpiryAfterVerifyIsNoop(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, 60*time.Millisecond)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.SubmitCode(ctx, "1234"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if cur := m.Current(); cur.State != StateVerified {
		t.Fatalf("expiry must not disturb a verified transaction, got %s", cur.State)
	}
	if got := issuer.issueCount(); got != 1 {
		t.Fatalf("expected no re-issue after verify, got %d issues", got)
	}
}

func TestResendSupersedes(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, time.Minute)
	ctx := context.Background()

	first, err := m.Issue(ctx, "902531234V", "+94771234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	second, err := m.Resend(ctx)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("resend must produce a new transaction id")
	}
	if second.AttemptsRemaining != 4 || second.State != StateIssued {
		t.Fatalf("resend must reset the transaction: %+v", second)
	}

	if _, err := m.SubmitCode(ctx, "1234"); err != nil {
		t.Fatalf("submit against resent transaction: %v", err)
	}
}

// gatedIssuer blocks every verify until the gate opens and then accepts any
// transaction id, so only the manager's own bookkeeping can reject it.
type gatedIssuer struct {
	mu     sync.Mutex
	gate   chan struct{}
	issued int
}

func (g *gatedIssuer) RequestOTP(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return fmt.Sprintf("tx-%d", g.issued), nil
}

func (g *gatedIssuer) VerifyOTP(_ context.Context, _, _ string) error {
	<-g.gate
	return nil
}

func (g *gatedIssuer) issueCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

func TestLateVerifyLosesToExpiry(t *testing.T) {
	issuer := &gatedIssuer{gate: make(chan struct{})}
	m := newManager(issuer, 30*time.Millisecond)
	ctx := context.Background()

	first, err := m.Issue(ctx, "902531234V", "+94771234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	type result struct {
		tx  Transaction
		err error
	}
	done := make(chan result, 1)
	go func() {
		tx, err := m.SubmitCode(ctx, "1234")
		done <- result{tx, err}
	}()

	// Let the countdown fire and re-issue while the verify call is blocked.
	waitFor(t, time.Second, func() bool { return issuer.issueCount() >= 2 })
	close(issuer.gate)

	res := <-done
	if !errors.Is(res.err, ErrExpired) {
		t.Fatalf("late verify must lose to expiry, got %v", res.err)
	}
	if res.tx.State == StateVerified {
		t.Fatalf("transaction reported verified after expiry: %+v", res.tx)
	}

	cur := m.Current()
	if cur.ID == first.ID || cur.State == StateVerified {
		t.Fatalf("expected expiry to supersede the transaction, got %+v", cur)
	}
}

func TestAutoReissueBounded(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, 20*time.Millisecond)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	// One initial issue plus the capped number of expiry re-issues.
	waitFor(t, 2*time.Second, func() bool {
		return issuer.issueCount() == 1+maxAutoReissues
	})
	time.Sleep(150 * time.Millisecond)

	if got := issuer.issueCount(); got != 1+maxAutoReissues {
		t.Fatalf("abandoned attempt kept re-issuing: %d issues", got)
	}
	if cur := m.Current(); cur.State != StateExpired {
		t.Fatalf("expected the attempt to end expired, got %s", cur.State)
	}
}

func TestProviderExpiredTriggersReissue(t *testing.T) {
	issuer := &fakeIssuer{accept: "1234"}
	m := newManager(issuer, time.Minute)
	ctx := context.Background()

	first, err := m.Issue(ctx, "902531234V", "+94771234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Supersede the transaction behind the manager's back so the provider
	// reports it expired.
	if _, err := issuer.RequestOTP(ctx, "902531234V", "+94771234567"); err != nil {
		t.Fatalf("fake issue: %v", err)
	}

	if _, err := m.SubmitCode(ctx, "1234"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	cur := m.Current()
	if cur.ID == first.ID || cur.State != StateIssued {
		t.Fatalf("expected self-healing re-issue, got %+v", cur)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
