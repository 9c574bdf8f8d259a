package provider_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/logging"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider/providertest"
)

func newClient(t *testing.T) (*provider.Client, *providertest.Server, func()) {
	t.Helper()
	double := providertest.New(nil)
	srv := httptest.NewServer(double.Handler())
	client := provider.NewClient(srv.URL, "parkmate-mobile", "secret", 5*time.Second, logging.Discard())
	return client, double, srv.Close
}

func seedIdentity(double *providertest.Server) providertest.Identity {
	id := providertest.Identity{
		NationalID:  "902531234V",
		FullName:    "Nimal Perera",
		Address:     "12 Galle Road, Colombo",
		DateOfBirth: "1990-09-09",
		Gender:      "M",
		Email:       "nimal@example.com",
		Phone:       "+94771234567",
	}
	double.Seed(id)
	return id
}

func TestVerifyIdentity(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	want := seedIdentity(double)

	ctx := context.Background()
	record, err := client.VerifyIdentity(ctx, want.NationalID)
	if err != nil {
		t.Fatalf("verify identity: %v", err)
	}
	if record.FullName != want.FullName || record.NationalID != want.NationalID {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestVerifyIdentityNotFound(t *testing.T) {
	client, _, done := newClient(t)
	defer done()

	_, err := client.VerifyIdentity(context.Background(), "000000000X")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if provider.IsTransient(err) {
		t.Fatal("not-found must not be classified as transient")
	}
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.VerifyIdentity(ctx, id.NationalID); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := double.TokenRequests(); got != 1 {
		t.Fatalf("expected 1 token request, got %d", got)
	}
}

func TestRejectedTokenRefreshedOnce(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)

	ctx := context.Background()
	if _, err := client.VerifyIdentity(ctx, id.NationalID); err != nil {
		t.Fatalf("warm-up call: %v", err)
	}

	double.RejectNextAuth(1)
	if _, err := client.VerifyIdentity(ctx, id.NationalID); err != nil {
		t.Fatalf("expected silent refresh and retry, got %v", err)
	}
	if got := double.TokenRequests(); got != 2 {
		t.Fatalf("expected 2 token requests after one rejection, got %d", got)
	}
}

func TestSecondRejectionSurfaces(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)

	double.RejectNextAuth(2)
	_, err := client.VerifyIdentity(context.Background(), id.NationalID)
	if !errors.Is(err, provider.ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	// Exactly one refresh: the initial acquisition plus one forced refresh.
	if got := double.TokenRequests(); got != 2 {
		t.Fatalf("expected 2 token requests, got %d", got)
	}
}

func TestConcurrentCallsShareOneRefresh(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.VerifyIdentity(ctx, id.NationalID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}

	if got := double.TokenRequests(); got != 1 {
		t.Fatalf("expected a single shared token refresh, got %d", got)
	}
}

func TestServerFailureIsTransient(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)

	double.FailNext(1)
	_, err := client.VerifyIdentity(context.Background(), id.NationalID)
	if err == nil {
		t.Fatal("expected error")
	}
	if !provider.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
	if errors.Is(err, provider.ErrNotFound) {
		t.Fatal("5xx must not be reported as not-found")
	}
}

func TestOtpTransactionLifecycle(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)
	ctx := context.Background()

	txID, err := client.RequestOTP(ctx, id.NationalID, id.Phone)
	if err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if txID == "" {
		t.Fatal("expected opaque transaction id")
	}

	if err := client.VerifyOTP(ctx, txID, "9999"); !errors.Is(err, provider.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := client.VerifyOTP(ctx, txID, providertest.SeedCode); err != nil {
		t.Fatalf("expected seed code to verify, got %v", err)
	}
	// A verified transaction is consumed; retrying the old id must fail as
	// expired, never verify twice.
	if err := client.VerifyOTP(ctx, txID, providertest.SeedCode); !errors.Is(err, provider.ErrTransactionExpired) {
		t.Fatalf("expected ErrTransactionExpired, got %v", err)
	}
}

func TestReissueSupersedesTransaction(t *testing.T) {
	client, double, done := newClient(t)
	defer done()
	id := seedIdentity(double)
	ctx := context.Background()

	first, err := client.RequestOTP(ctx, id.NationalID, id.Phone)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := client.RequestOTP(ctx, id.NationalID, id.Phone)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first == second {
		t.Fatal("re-issue must produce a new transaction id")
	}

	if err := client.VerifyOTP(ctx, first, providertest.SeedCode); !errors.Is(err, provider.ErrTransactionExpired) {
		t.Fatalf("superseded transaction should be expired, got %v", err)
	}
	if err := client.VerifyOTP(ctx, second, providertest.SeedCode); err != nil {
		t.Fatalf("fresh transaction should verify: %v", err)
	}
}
