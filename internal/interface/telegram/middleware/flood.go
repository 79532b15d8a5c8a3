// Package middleware contains Telegram bot middlewares for update processing.
package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLOOD GUARD
// Per-chat rate limiter over all commands. Separate from the daily grade
// quota: it only keeps one chat from saturating the update workers.
// ══════════════════════════════════════════════════════════════════════════════

// FloodConfig holds configuration for the flood guard.
type FloodConfig struct {
	// RequestsPerMinute is the sustained command rate per chat.
	RequestsPerMinute int

	// BurstSize is the number of commands a quiet chat may send at once.
	BurstSize int

	// IdleTTL drops buckets of chats inactive for longer than this.
	IdleTTL time.Duration
}

// DefaultFloodConfig returns sensible defaults.
func DefaultFloodConfig() FloodConfig {
	return FloodConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		IdleTTL:           10 * time.Minute,
	}
}

// FloodGuard rate-limits commands per chat.
type FloodGuard struct {
	config  FloodConfig
	now     func() time.Time
	mu      sync.Mutex
	buckets map[int64]*chatLimiter
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewFloodGuard creates a flood guard.
func NewFloodGuard(config FloodConfig) *FloodGuard {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultFloodConfig().RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultFloodConfig().BurstSize
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultFloodConfig().IdleTTL
	}
	return &FloodGuard{
		config:  config,
		now:     time.Now,
		buckets: make(map[int64]*chatLimiter),
	}
}

// Allow consumes one token for chatID. It returns false, plus the wait until
// the next token, when the chat is over its rate.
func (g *FloodGuard) Allow(chatID int64) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, ok := g.buckets[chatID]
	if !ok {
		every := time.Minute / time.Duration(g.config.RequestsPerMinute)
		b = &chatLimiter{limiter: rate.NewLimiter(rate.Every(every), g.config.BurstSize)}
		g.buckets[chatID] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Run evicts idle buckets until ctx is done.
func (g *FloodGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.config.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *FloodGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, b := range g.buckets {
		if now.Sub(b.lastSeen) > g.config.IdleTTL {
			delete(g.buckets, id)
		}
	}
}
