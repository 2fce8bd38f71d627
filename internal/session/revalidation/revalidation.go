// Package revalidation decides whether a session token can be trusted on its
// signature alone or must be checked against the session store.
package revalidation

import "time"

// DefaultFreshnessWindow is how long a token is trusted without a store lookup.
// It is also the upper bound on how long a revoked, expired or banned session can
// keep acting: shortening it tightens revocation at the cost of more store reads.
const DefaultFreshnessWindow = 30 * time.Second

// Path is the verification path a request takes.
type Path int

const (
	// FastPath trusts the token contents without I/O.
	FastPath Path = iota
	// SlowPath re-reads the session record and user before trusting the request.
	SlowPath
)

func (p Path) String() string {
	if p == FastPath {
		return "fast"
	}
	return "slow"
}

// Decide returns FastPath when 0 <= now-issuedAt < window and SlowPath otherwise.
// Tokens issued in the future (clock skew) take the slow path.
func Decide(issuedAt, now time.Time, window time.Duration) Path {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	age := now.Sub(issuedAt)
	if age >= 0 && age < window {
		return FastPath
	}
	return SlowPath
}
