package security

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func samplePayload() SessionPayload {
	bannedAt := int64(1700000000)
	return SessionPayload{
		SessionID: "abcdefghijklmnopqrstuvwx",
		User: UserSnapshot{
			ID:       "user-1",
			OrgID:    "org-1",
			Role:     "admin",
			Name:     "Dana Walker",
			Email:    "dana@example.com",
			BannedAt: &bannedAt,
			Timezone: "Europe/Berlin",
		},
	}
}

func TestTokenCodec_SignVerifyRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewTestTokenCodec(fixedClock(issued))
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	p := samplePayload()

	token, err := c.Sign(p)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := c.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SessionID != p.SessionID {
		t.Errorf("sid = %q, want %q", claims.SessionID, p.SessionID)
	}
	if !reflect.DeepEqual(claims.User, p.User) {
		t.Errorf("user = %+v, want %+v", claims.User, p.User)
	}
	if !claims.IssuedAtTime().Equal(issued) {
		t.Errorf("iat = %v, want %v", claims.IssuedAtTime(), issued)
	}
	if !claims.NotBeforeTime().Equal(issued) {
		t.Errorf("nbf = %v, want %v", claims.NotBeforeTime(), issued)
	}
	if claims.ExpiresAt != nil {
		t.Error("session tokens must not carry an exp claim")
	}
}

func TestTokenCodec_VerifyFutureDatedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer, err := NewTestTokenCodec(fixedClock(now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	verifier, err := NewTestTokenCodec(fixedClock(now))
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, err := signer.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify of a future-dated token: %v", err)
	}
	if !claims.IssuedAtTime().After(now) {
		t.Errorf("iat = %v, want after %v", claims.IssuedAtTime(), now)
	}
}

func TestTokenCodec_ConcurrentSignVerify(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				token, err := c.Sign(samplePayload())
				if err != nil {
					errs <- err
					return
				}
				if _, err := c.Verify(token); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent sign/verify: %v", err)
	}
}

func TestTokenCodec_VerifyOldTokenStillAuthentic(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	c, err := NewTestTokenCodec(func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, err := c.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	now = issued.Add(90 * 24 * time.Hour)
	if _, err := c.Verify(token); err != nil {
		t.Fatalf("Verify of an old token: %v", err)
	}
}

func TestTokenCodec_TamperedTokenRejected(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, err := c.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	for i := 0; i < len(token); i++ {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, err := c.Verify(string(b)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("byte %d modified: want ErrInvalidToken, got %v", i, err)
		}
	}
}

func TestTokenCodec_WrongKeyRejected(t *testing.T) {
	a, err := NewTokenCodec([]byte(strings.Repeat("a", 32)))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	defer a.Close()
	b, err := NewTokenCodec([]byte(strings.Repeat("b", 32)))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	defer b.Close()
	token, err := a.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := b.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify with other key: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
		SessionID:        "s1",
		User:             UserSnapshot{ID: "u1"},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := c.Verify(unsigned); err != ErrInvalidToken {
		t.Errorf("alg none: want ErrInvalidToken, got %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := c.Verify(hs512); err != ErrInvalidToken {
		t.Errorf("HS512: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_VerifyInvalidInputs(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	for _, tok := range []string{"", "invalid-token", "a.b", "a.b.c", "...."} {
		if _, err := c.Verify(tok); err != ErrInvalidToken {
			t.Errorf("Verify(%q): want ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestTokenCodec_SignRequiresIDs(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	if _, err := c.Sign(SessionPayload{User: UserSnapshot{ID: "u1"}}); err == nil {
		t.Error("Sign without session id should fail")
	}
	if _, err := c.Sign(SessionPayload{SessionID: "s1"}); err == nil {
		t.Error("Sign without user id should fail")
	}
}

func TestNewTokenCodec_WeakSecret(t *testing.T) {
	if _, err := NewTokenCodec([]byte("too-short")); err != ErrWeakSecret {
		t.Errorf("want ErrWeakSecret, got %v", err)
	}
}

func TestTokenCodec_Close(t *testing.T) {
	c, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	token, err := c.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	c.Close()
	if _, err := c.Sign(samplePayload()); !errors.Is(err, ErrCodecClosed) {
		t.Errorf("Sign after Close: want ErrCodecClosed, got %v", err)
	}
	if _, err := c.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify after Close: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_CloseLeavesSharedTestKey(t *testing.T) {
	a, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	b, err := NewTestTokenCodec(nil)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	a.Close()
	token, err := b.Sign(samplePayload())
	if err != nil {
		t.Fatalf("Sign after closing another codec: %v", err)
	}
	if _, err := b.Verify(token); err != nil {
		t.Fatalf("Verify after closing another codec: %v", err)
	}
}

func TestTokenCodec_CloseIsIdempotent(t *testing.T) {
	c, err := NewTokenCodec([]byte(strings.Repeat("c", 32)))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	c.Close()
	c.Close()
	if _, err := c.Sign(samplePayload()); !errors.Is(err, ErrCodecClosed) {
		t.Errorf("Sign after Close: want ErrCodecClosed, got %v", err)
	}
}
