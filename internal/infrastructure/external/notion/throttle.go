package notion

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// THROTTLE
// ══════════════════════════════════════════════════════════════════════════════

// ThrottleConfig configures the outgoing request rate.
type ThrottleConfig struct {
	// RequestsPerSecond is the sustained rate. Notion allows an average of 3.
	RequestsPerSecond float64

	// BurstSize is the number of requests allowed back to back. A report
	// fans out six queries at once.
	BurstSize int
}

// DefaultThrottleConfig returns settings that fit one report per burst.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		RequestsPerSecond: 3,
		BurstSize:         7,
	}
}

// Throttle is a rate limiter shared by every request of a client, plus a
// pause window set from 429 responses.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time

	mu         sync.Mutex
	pauseUntil time.Time
}

// NewThrottle creates a throttle with a full burst available.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultThrottleConfig().RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		now:     time.Now,
	}
}

// Wait blocks until the pause is over and a token is available, or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		d := t.pauseLeft(t.now())
		if d <= 0 {
			break
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// tryAcquire takes a token at now, or reports how long until one is free.
func (t *Throttle) tryAcquire(now time.Time) (time.Duration, bool) {
	if d := t.pauseLeft(now); d > 0 {
		return d, false
	}
	r := t.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d, false
	}
	return 0, true
}

func (t *Throttle) pauseLeft(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauseUntil.Sub(now)
}

// Pause holds every request for d, as asked by a 429 Retry-After header.
func (t *Throttle) Pause(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if until := t.now().Add(d); until.After(t.pauseUntil) {
		t.pauseUntil = until
	}
}
