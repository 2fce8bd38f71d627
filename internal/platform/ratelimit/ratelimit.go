// Package ratelimit counts failed sign-in attempts per key and locks a key out
// with exponential backoff once it fails too often.
package ratelimit

import (
	"strconv"
	"sync"
	"time"
)

// Policy sets when a key is locked out and for how long.
type Policy struct {
	// MaxFailures is the number of consecutive failures before lockout begins.
	MaxFailures int
	// BaseLockout is the first lockout; each further failure doubles it up to MaxLockout.
	BaseLockout time.Duration
	MaxLockout  time.Duration
	// Expiry is how long after the last failure a record is forgotten.
	Expiry time.Duration
}

// PerEmail is the policy for verification-code attempts against one address.
var PerEmail = Policy{MaxFailures: 5, BaseLockout: time.Minute, MaxLockout: 15 * time.Minute, Expiry: time.Hour}

// PerIP is the policy for verification-code attempts from one client address.
var PerIP = Policy{MaxFailures: 20, BaseLockout: time.Minute, MaxLockout: 30 * time.Minute, Expiry: time.Hour}

// sweepAt is the record count above which RecordFailure drops expired records.
const sweepAt = 4096

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// Limiter tracks failures per key. It is safe for concurrent use.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

// New returns a Limiter with policy. now may be nil to use the wall clock.
func New(policy Policy, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if policy.MaxFailures <= 0 {
		policy.MaxFailures = 1
	}
	if policy.MaxLockout < policy.BaseLockout {
		policy.MaxLockout = policy.BaseLockout
	}
	return &Limiter{policy: policy, now: now, attempts: make(map[string]*attemptRecord)}
}

// Check reports whether key is locked out and, if so, for how much longer.
func (l *Limiter) Check(key string) (blocked bool, retryAfter time.Duration) {
	if key == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[key]
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Sub(rec.lastFailure) > l.policy.Expiry {
		delete(l.attempts, key)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed attempt for key.
func (l *Limiter) RecordFailure(key string) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.attempts) > sweepAt {
		l.sweepLocked(now)
	}
	rec, ok := l.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		l.attempts[key] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= l.policy.MaxFailures {
		lockout := l.policy.BaseLockout
		for i := 0; i < rec.failures-l.policy.MaxFailures; i++ {
			lockout *= 2
			if lockout >= l.policy.MaxLockout {
				lockout = l.policy.MaxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// RecordSuccess forgets the failures of key.
func (l *Limiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Sweep drops records whose last failure is older than the policy expiry.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, rec := range l.attempts {
		if now.Sub(rec.lastFailure) > l.policy.Expiry {
			delete(l.attempts, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// RetryAfterSeconds formats d for a Retry-After header, rounding up to at least one second.
func RetryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
