package security

import (
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// testSecret is a fixed signing secret for unit tests only. Do not use in production.
const testSecret = "pawplanner-test-secret-0123456789abcdef"

var (
	testKeyOnce sync.Once
	testKey     *memguard.LockedBuffer
	testKeyErr  error
)

// NewTestTokenCodec returns a TokenCodec keyed with the fixed test secret.
// now may be nil to use the wall clock. All test codecs share one locked key,
// so Close on one does not affect the others. For unit tests only.
func NewTestTokenCodec(now func() time.Time) (*TokenCodec, error) {
	testKeyOnce.Do(func() {
		testKey, testKeyErr = deriveKey([]byte(testSecret))
	})
	if testKeyErr != nil {
		return nil, testKeyErr
	}
	return newCodec(testKey, false, WithClock(now)), nil
}
