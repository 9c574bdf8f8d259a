// Package providertest implements an in-process double of the identity
// provider's HTTP API. Tests mount its Handler on an httptest server; the
// development build of cmd/api serves it on a loopback listener so the
// onboarding pipeline works without the real provider.
//
// Seed scenario: every issued transaction accepts the code "1234".
package providertest

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/notification"
)

// SeedCode is the passcode every transaction issued by the double accepts.
const SeedCode = "1234"

// Identity is a provider-side citizen record.
type Identity struct {
	NationalID  string `json:"nationalId"`
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type transaction struct {
	nationalID string
	codeHash   []byte
	expiresAt  time.Time
	superseded bool
}

// Server is the provider double. Failure injection fields let tests exercise
// the client's retry behaviour; they count down per request served.
type Server struct {
	mu         sync.Mutex
	identities map[string]Identity
	txs        map[string]*transaction
	tokens     map[string]time.Time
	notifier   notification.Notifier

	tokenTTL time.Duration
	txTTL    time.Duration

	tokenRequests int
	rejectAuth    int // serve this many 401s on bearer endpoints
	failNext      int // serve this many 500s on bearer endpoints
}

// New constructs an empty provider double. notifier may be nil.
func New(notifier notification.Notifier) *Server {
	return &Server{
		identities: make(map[string]Identity),
		txs:        make(map[string]*transaction),
		tokens:     make(map[string]time.Time),
		notifier:   notifier,
		tokenTTL:   time.Hour,
		txTTL:      2 * time.Minute,
	}
}

// Seed registers an identity with the double.
func (s *Server) Seed(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.NationalID] = id
}

// SetTokenTTL overrides how long issued bearer tokens stay valid.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// SetTransactionTTL overrides how long issued OTP transactions stay valid.
func (s *Server) SetTransactionTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txTTL = ttl
}

// RejectNextAuth makes the double answer the next n bearer-authenticated
// requests with 401 regardless of the presented token.
func (s *Server) RejectNextAuth(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = n
}

// FailNext makes the double answer the next n bearer-authenticated requests
// with 500.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// TokenRequests reports how many times /token was called.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

// Handler returns the double's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", s.handleToken)
	mux.HandleFunc("/authorize", s.authed(s.handleAuthorize))
	mux.HandleFunc("/authenticate", s.authed(s.handleAuthenticate))
	mux.HandleFunc("/verify", s.authed(s.handleVerify))
	return mux
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokenRequests++
	token := uuid.NewString()
	ttl := s.tokenTTL
	s.tokens[token] = time.Now().Add(ttl)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"accessToken": token,
		"expiresIn":   int(ttl.Seconds()),
	})
}

// authed enforces bearer authentication and applies failure injection.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.failNext > 0 {
			s.failNext--
			s.mu.Unlock()
			writeError(w, http.StatusInternalServerError, "internal", "injected failure")
			return
		}
		if s.rejectAuth > 0 {
			s.rejectAuth--
			s.mu.Unlock()
			writeError(w, http.StatusUnauthorized, "token_rejected", "token rejected")
			return
		}
		const prefix = "Bearer "
		authz := r.Header.Get("Authorization")
		var valid bool
		if len(authz) > len(prefix) {
			exp, ok := s.tokens[authz[len(prefix):]]
			valid = ok && time.Now().Before(exp)
		}
		s.mu.Unlock()

		if !valid {
			writeError(w, http.StatusUnauthorized, "token_rejected", "missing or expired token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"nationalId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NationalID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "nationalId is required")
		return
	}

	s.mu.Lock()
	id, ok := s.identities[req.NationalID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such identity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "record": id})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID   string `json:"nationalId"`
		MobileNumber string `json:"mobileNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NationalID == "" || req.MobileNumber == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "nationalId and mobileNumber are required")
		return
	}

	// Codes are stored hashed; only the delivery channel sees the clear text.
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedCode), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "hash failure")
		return
	}

	txID := uuid.NewString()
	s.mu.Lock()
	for _, tx := range s.txs {
		if tx.nationalID == req.NationalID {
			tx.superseded = true
		}
	}
	s.txs[txID] = &transaction{
		nationalID: req.NationalID,
		codeHash:   hash,
		expiresAt:  time.Now().Add(s.txTTL),
	}
	notifier := s.notifier
	s.mu.Unlock()

	if notifier != nil {
		_ = notifier.Send(r.Context(), notification.Message{
			Kind:        notification.KindOtpIssued,
			Destination: req.MobileNumber,
			Body:        "Your ParkMate verification code is " + SeedCode,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "transactionId": txID})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transactionId"`
		Code          string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "transactionId is required")
		return
	}

	s.mu.Lock()
	tx, ok := s.txs[req.TransactionID]
	var expired bool
	var hash []byte
	if ok {
		expired = tx.superseded || time.Now().After(tx.expiresAt)
		hash = tx.codeHash
	}
	s.mu.Unlock()

	switch {
	case !ok || expired:
		writeError(w, http.StatusBadRequest, "transaction_expired", "transaction expired or superseded")
	case bcrypt.CompareHashAndPassword(hash, []byte(req.Code)) != nil:
		writeError(w, http.StatusBadRequest, "invalid_code", "code mismatch")
	default:
		s.mu.Lock()
		delete(s.txs, req.TransactionID)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "code": code, "message": message})
}
