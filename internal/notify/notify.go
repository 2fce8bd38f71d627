// Package notify delivers sign-in links and verification codes to users.
package notify

import (
	"context"
	"log"
	"time"
)

// Sender delivers one-time sign-in credentials.
type Sender interface {
	SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// LogSender is used when no mail server is configured. It records that a
// message would have been sent without logging the credential.
type LogSender struct{}

func (LogSender) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	log.Printf("notify: smtp disabled; magic link for %s not delivered", to)
	return nil
}

func (LogSender) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	log.Printf("notify: smtp disabled; verification code for %s not delivered", to)
	return nil
}
