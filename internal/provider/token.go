package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew keeps a safety margin so a token is never used right at its
// expiry instant.
const refreshSkew = 10 * time.Second

type fetchTokenFunc func(ctx context.Context) (value string, expiresAt time.Time, err error)

// tokenCache holds the single shared bearer credential for the identity
// provider. Reads are lock-guarded and refreshes are funneled through a
// single-flight group so concurrent callers observing a stale token trigger
// exactly one network refresh and share its result.
type tokenCache struct {
	mu        sync.Mutex
	value     string
	expiresAt time.Time
	flight    singleflight.Group
}

// get returns a bearer token that is valid now. stale carries the token value
// the caller just had rejected (empty when any fresh token will do); a cached
// token equal to stale is considered unusable and forces one refresh.
func (tc *tokenCache) get(ctx context.Context, stale string, fetch fetchTokenFunc) (string, error) {
	if v, ok := tc.cached(stale); ok {
		return v, nil
	}

	v, err, _ := tc.flight.Do("token", func() (any, error) {
		// Another caller may have completed a refresh while this one waited
		// for the flight slot.
		if v, ok := tc.cached(stale); ok {
			return v, nil
		}

		value, expiresAt, err := fetch(ctx)
		if err != nil {
			return "", err
		}

		tc.mu.Lock()
		tc.value = value
		tc.expiresAt = expiresAt
		tc.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// cached returns the stored token when it is fresh and differs from stale.
func (tc *tokenCache) cached(stale string) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.value == "" || (stale != "" && tc.value == stale) {
		return "", false
	}
	if !time.Now().Add(refreshSkew).Before(tc.expiresAt) {
		return "", false
	}
	return tc.value, true
}
