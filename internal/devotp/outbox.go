package devotp

import (
	"context"
	"time"

	"pawplanner/backend/internal/notify"
)

// Outbox is a notify.Sender that records every credential in a Store before
// handing it to the next sender.
type Outbox struct {
	next  notify.Sender
	store Store
	nowF  func() time.Time
}

// NewOutbox returns an Outbox recording into store. next may be nil.
func NewOutbox(next notify.Sender, store Store) *Outbox {
	return &Outbox{next: next, store: store, nowF: time.Now}
}

func (o *Outbox) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	o.store.Put(ctx, to, Entry{Kind: KindLink, Value: link, ExpiresAt: o.nowF().UTC().Add(ttl)})
	if o.next == nil {
		return nil
	}
	return o.next.SendMagicLink(ctx, to, link, ttl)
}

func (o *Outbox) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	o.store.Put(ctx, to, Entry{Kind: KindCode, Value: code, ExpiresAt: o.nowF().UTC().Add(ttl)})
	if o.next == nil {
		return nil
	}
	return o.next.SendVerificationCode(ctx, to, code, ttl)
}
