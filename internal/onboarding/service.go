package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/otp"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/session"
)

const (
	profilesTable = "parkmate-profiles"
	sessionsTable = "parkmate-sessions"

	userTypeCitizen = "citizen"

	retryAttempts = 3
	retryBase     = 200 * time.Millisecond
)

// ErrNoAttempt indicates no onboarding attempt is in progress for the given
// identity.
var ErrNoAttempt = errors.New("no onboarding attempt in progress")

// Verifier resolves national identity numbers to verified profiles.
type Verifier interface {
	VerifyIdentity(ctx context.Context, nationalID string) (provider.IdentityRecord, error)
}

// Client is the full identity-provider surface the pipeline needs.
type Client interface {
	Verifier
	otp.Issuer
}

// Service drives the onboarding pipeline: verify identity, issue and confirm
// an OTP, persist the verified profile through the data gateway and open the
// local session. One attempt is tracked per national identity number.
type Service struct {
	client      Client
	gateway     *gateway.Service
	sessions    session.Stores
	otpWindow   time.Duration
	otpAttempts int
	logger      *slog.Logger

	mu       sync.Mutex
	attempts map[string]*attempt
}

type attempt struct {
	manager *otp.Manager
	record  provider.IdentityRecord
	mobile  string
}

// NewService wires the pipeline dependencies.
func NewService(client Client, gw *gateway.Service, sessions session.Stores, otpWindow time.Duration, otpAttempts int, logger *slog.Logger) *Service {
	return &Service{
		client:      client,
		gateway:     gw,
		sessions:    sessions,
		otpWindow:   otpWindow,
		otpAttempts: otpAttempts,
		logger:      logger,
		attempts:    make(map[string]*attempt),
	}
}

// StartResult reports a freshly opened onboarding attempt.
type StartResult struct {
	Transaction otp.Transaction
	FullName    string
}

// Start verifies the identity and issues the first OTP transaction. A prior
// attempt for the same identity is discarded.
func (s *Service) Start(ctx context.Context, nationalID, mobileNumber string) (StartResult, error) {
	record, err := s.verifyIdentity(ctx, nationalID)
	if err != nil {
		return StartResult{}, err
	}

	manager := otp.NewManager(s.client, s.otpWindow, s.otpAttempts, s.logger)
	tx, err := manager.Issue(ctx, nationalID, mobileNumber)
	if err != nil {
		return StartResult{}, err
	}

	s.mu.Lock()
	if prior, ok := s.attempts[nationalID]; ok {
		prior.manager.Cancel()
	}
	s.attempts[nationalID] = &attempt{manager: manager, record: record, mobile: mobileNumber}
	s.mu.Unlock()

	s.logger.Info("onboarding started", slog.String("national_id", nationalID))
	return StartResult{Transaction: tx, FullName: record.FullName}, nil
}

// Resend issues a fresh code for an open attempt, invalidating the prior
// transaction.
func (s *Service) Resend(ctx context.Context, nationalID string) (otp.Transaction, error) {
	att, err := s.attempt(nationalID)
	if err != nil {
		return otp.Transaction{}, err
	}
	return att.manager.Resend(ctx)
}

// Confirm submits the user's code. On a successful verify the full profile is
// re-fetched, written through the data gateway and the local session opened.
// A session is never persisted from an unverified transaction.
func (s *Service) Confirm(ctx context.Context, nationalID, code, installationID string) (session.AuthSession, error) {
	att, err := s.attempt(nationalID)
	if err != nil {
		return session.AuthSession{}, err
	}

	// A prior Confirm may have verified the code and then failed on the
	// persist step. The transaction stays Verified, so a retry resumes at
	// persistence instead of burning the attempt.
	if att.manager.Current().State != otp.StateVerified {
		if _, err := att.manager.SubmitCode(ctx, code); err != nil {
			return session.AuthSession{}, err
		}
	}

	record, err := s.verifyIdentity(ctx, nationalID)
	if err != nil {
		return session.AuthSession{}, err
	}

	sess := session.AuthSession{
		UserID:          record.NationalID,
		FullName:        record.FullName,
		MobileNumber:    att.mobile,
		Email:           record.Email,
		NicNumber:       record.NationalID,
		ProfileComplete: record.Email != "" && record.Phone != "",
		UserType:        userTypeCitizen,
	}

	if err := s.persist(ctx, record, sess, installationID); err != nil {
		return session.AuthSession{}, err
	}

	if err := s.sessions.For(installationID).Login(ctx, sess); err != nil {
		return session.AuthSession{}, fmt.Errorf("open session: %w", err)
	}

	s.mu.Lock()
	delete(s.attempts, nationalID)
	s.mu.Unlock()

	s.logger.Info("onboarding completed", slog.String("national_id", nationalID))
	return sess, nil
}

// Cancel discards an open attempt and stops its countdown; no background
// re-issue happens afterwards.
func (s *Service) Cancel(nationalID string) error {
	s.mu.Lock()
	att, ok := s.attempts[nationalID]
	if ok {
		delete(s.attempts, nationalID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNoAttempt
	}
	att.manager.Cancel()
	s.logger.Info("onboarding cancelled", slog.String("national_id", nationalID))
	return nil
}

// Session returns the stored session of an installation.
func (s *Service) Session(ctx context.Context, installationID string) (session.AuthSession, error) {
	return s.sessions.For(installationID).Get(ctx)
}

// Logout clears the stored session of an installation.
func (s *Service) Logout(ctx context.Context, installationID string) error {
	return s.sessions.For(installationID).Logout(ctx)
}

func (s *Service) attempt(nationalID string) (*attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attempts[nationalID]
	if !ok {
		return nil, ErrNoAttempt
	}
	return att, nil
}

// persist writes the verified profile and the onboarding session record
// through the data gateway.
func (s *Service) persist(ctx context.Context, record provider.IdentityRecord, sess session.AuthSession, installationID string) error {
	_, err := s.gateway.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     profilesTable,
		Key:       map[string]any{"nationalId": record.NationalID},
		Item: map[string]any{
			"nationalId":  record.NationalID,
			"fullName":    record.FullName,
			"address":     record.Address,
			"dateOfBirth": record.DateOfBirth,
			"gender":      record.Gender,
			"email":       record.Email,
			"phone":       record.Phone,
		},
	})
	if err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}

	_, err = s.gateway.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     sessionsTable,
		Key:       map[string]any{"userId": sess.UserID},
		Item: map[string]any{
			"userId":          sess.UserID,
			"installationId":  installationID,
			"mobileNumber":    sess.MobileNumber,
			"userType":        sess.UserType,
			"profileComplete": sess.ProfileComplete,
			"verifiedAt":      time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}

// verifyIdentity wraps the provider call with a bounded retry for transient
// failures. NotFound is terminal and never retried.
func (s *Service) verifyIdentity(ctx context.Context, nationalID string) (provider.IdentityRecord, error) {
	var record provider.IdentityRecord
	var err error
	for i := 0; i < retryAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(retryBase << (i - 1)):
			case <-ctx.Done():
				return provider.IdentityRecord{}, ctx.Err()
			}
		}
		record, err = s.client.VerifyIdentity(ctx, nationalID)
		if err == nil || !provider.IsTransient(err) {
			return record, err
		}
		s.logger.Warn("identity verification retry", slog.String("national_id", nationalID), slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return provider.IdentityRecord{}, err
}
