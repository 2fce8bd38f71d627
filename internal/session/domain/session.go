package domain

import "time"

// Session is the durable record behind a session cookie. The signed token
// carries only its ID; everything that can revoke a session lives here.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
	LastActiveAt time.Time
	Fingerprint
}

// Fingerprint is the client information recorded on a session.
// Empty fields mean "not observed".
type Fingerprint struct {
	IPAddress string
	UserAgent string
	City      string
	Country   string
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// FingerprintUpdate holds the fingerprint fields to overwrite on touch.
// A nil field is left unchanged.
type FingerprintUpdate struct {
	IPAddress *string
	UserAgent *string
	City      *string
	Country   *string
}

// Empty reports whether the update changes nothing.
func (u FingerprintUpdate) Empty() bool {
	return u.IPAddress == nil && u.UserAgent == nil && u.City == nil && u.Country == nil
}

// Apply writes the present fields of u onto fp.
func (u FingerprintUpdate) Apply(fp *Fingerprint) {
	if u.IPAddress != nil {
		fp.IPAddress = *u.IPAddress
	}
	if u.UserAgent != nil {
		fp.UserAgent = *u.UserAgent
	}
	if u.City != nil {
		fp.City = *u.City
	}
	if u.Country != nil {
		fp.Country = *u.Country
	}
}

// DiffFingerprint returns the fields of observed that are non-empty and differ
// from stored. Fields the request did not observe never clear stored values.
func DiffFingerprint(stored, observed Fingerprint) FingerprintUpdate {
	var u FingerprintUpdate
	u.IPAddress = changed(stored.IPAddress, observed.IPAddress)
	u.UserAgent = changed(stored.UserAgent, observed.UserAgent)
	u.City = changed(stored.City, observed.City)
	u.Country = changed(stored.Country, observed.Country)
	return u
}

func changed(stored, observed string) *string {
	if observed == "" || observed == stored {
		return nil
	}
	v := observed
	return &v
}
