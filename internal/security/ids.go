package security

import (
	"crypto/rand"
	"math/big"
)

// SessionIDLength is the length of session ids issued by NewSessionID.
const SessionIDLength = 24

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID returns a random 24-character lowercase alphanumeric id (about 124 bits).
func NewSessionID() (string, error) {
	max := big.NewInt(int64(len(sessionIDAlphabet)))
	b := make([]byte, SessionIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = sessionIDAlphabet[n.Int64()]
	}
	return string(b), nil
}
