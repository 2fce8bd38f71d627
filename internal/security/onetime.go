package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

const (
	verificationCodeDigits = 6
	linkTokenBytes         = 32
)

var ten = big.NewInt(10)

// GenerateVerificationCode returns a 6-digit numeric code (e.g. "042917").
// Each digit is drawn uniformly from crypto/rand.
func GenerateVerificationCode() (string, error) {
	s := make([]byte, verificationCodeDigits)
	for i := range s {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(d.Int64())
	}
	return string(s), nil
}

// GenerateLinkToken returns a URL-safe random token for magic links.
func GenerateLinkToken() (string, error) {
	b := make([]byte, linkTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashOneTimeCode returns a SHA-256 hash of a verification code or link token, hex-encoded.
// Only the hash is stored.
func HashOneTimeCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// OneTimeCodeEqual performs constant-time comparison of the provided code's hash
// with the stored hash. Returns true only if they match.
func OneTimeCodeEqual(provided, storedHash string) bool {
	providedHash := HashOneTimeCode(provided)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
