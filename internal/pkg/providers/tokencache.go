package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultTokenTTL is how long exchanged bearer tokens are reused before a
// refresh. Providers issue 60-minute tokens; 55 minutes leaves headroom.
const DefaultTokenTTL = 55 * time.Minute

// RefreshFunc exchanges credentials for a fresh bearer token.
type RefreshFunc func(ctx context.Context) (string, error)

// TokenCache holds a bearer token with its expiry and refreshes it on demand.
// The clock is injectable so tests can drive expiry without sleeping.
type TokenCache struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time
	ttl     time.Duration
	now     func() time.Time
	refresh RefreshFunc
}

// NewTokenCache creates a token cache with the given refresh function.
func NewTokenCache(ttl time.Duration, refresh RefreshFunc) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCache{
		ttl:     ttl,
		now:     time.Now,
		refresh: refresh,
	}
}

// SetClock overrides the cache's clock (tests only).
func (tc *TokenCache) SetClock(now func() time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = now
}

// Get returns the cached token, refreshing it if missing or expired.
func (tc *TokenCache) Get(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && tc.now().Before(tc.expiry) {
		return tc.token, nil
	}

	token, err := tc.refresh(ctx)
	if err != nil {
		return "", err
	}
	tc.token = token
	tc.expiry = tc.now().Add(tc.ttl)
	return tc.token, nil
}

// Invalidate drops the cached token so the next Get refreshes.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = ""
	tc.expiry = time.Time{}
}
