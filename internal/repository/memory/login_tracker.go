package memory

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
)

// DefaultTrackerRetention bounds how long an idle failure record is kept.
const DefaultTrackerRetention = 24 * time.Hour

// LoginTracker implements port.FailedLoginTracker on top of ttlcache.
// Lockout decisions use the caller's clock; the cache TTL only reclaims
// records that have not been touched for the retention period.
type LoginTracker struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, domain.LoginAttempts]
}

// NewLoginTracker creates a tracker and starts its eviction loop.
// Callers must Close it on shutdown.
func NewLoginTracker(retention time.Duration) *LoginTracker {
	if retention <= 0 {
		retention = DefaultTrackerRetention
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.LoginAttempts](retention),
		ttlcache.WithDisableTouchOnHit[string, domain.LoginAttempts](),
	)
	go cache.Start()

	return &LoginTracker{cache: cache}
}

// Get returns a copy of the record for username.
func (t *LoginTracker) Get(username string) (domain.LoginAttempts, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item := t.cache.Get(username)
	if item == nil {
		return domain.LoginAttempts{}, false
	}
	return cloneAttempts(item.Value()), true
}

// RecordFailure increments the failure count. Reaching maxAttempts stamps the
// lockout deadline.
func (t *LoginTracker) RecordFailure(username string, maxAttempts int, lockUntil time.Time) domain.LoginAttempts {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := domain.LoginAttempts{Username: username}
	if item := t.cache.Get(username); item != nil {
		attempts = cloneAttempts(item.Value())
	}

	attempts.Count++
	if maxAttempts > 0 && attempts.Count >= maxAttempts {
		until := lockUntil
		attempts.LockedUntil = &until
	}

	t.cache.Set(username, attempts, ttlcache.DefaultTTL)
	return cloneAttempts(attempts)
}

// Reset forgets any failures recorded for username.
func (t *LoginTracker) Reset(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache.Delete(username)
}

// Len reports the number of tracked usernames.
func (t *LoginTracker) Len() int {
	return t.cache.Len()
}

// Close stops the eviction loop.
func (t *LoginTracker) Close() error {
	t.cache.Stop()
	return nil
}

func cloneAttempts(in domain.LoginAttempts) domain.LoginAttempts {
	out := in
	if in.LockedUntil != nil {
		until := *in.LockedUntil
		out.LockedUntil = &until
	}
	return out
}

var _ port.FailedLoginTracker = (*LoginTracker)(nil)
