package repository

import (
	"context"
	"log"
	"time"
)

// Expirer deletes records that expired at or before now. Session and
// one-time code repositories both implement it.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically deletes expired records. Expired sessions and codes are
// already rejected when used; sweeping only keeps the tables small.
type Sweeper struct {
	name     string
	target   Expirer
	interval time.Duration
	now      func() time.Time
}

// NewSweeper returns a Sweeper for target that runs every interval. name is used in log lines.
func NewSweeper(name string, target Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{name: name, target: target, interval: interval, now: time.Now}
}

// Run sweeps until ctx is done. It returns immediately when interval is not positive.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes records expired as of now and returns the number removed. Errors are logged.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.target.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		log.Printf("session: sweep expired %s failed: %v", s.name, err)
		return 0
	}
	if n > 0 {
		log.Printf("session: swept %d expired %s", n, s.name)
	}
	return n
}
