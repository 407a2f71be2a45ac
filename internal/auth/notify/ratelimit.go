package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter caps how many codes one destination can receive: burst
// messages at once, refilling one every window/burst.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows burst messages per destination per window. A
// non-positive burst disables limiting.
func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
	if burst > 0 && window > 0 {
		rl.limit = rate.Every(window / time.Duration(burst))
	} else {
		rl.limit = rate.Inf
	}
	return rl
}

// Allow reports whether one more message may go to key now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit == rate.Inf {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Prune drops limiters idle for longer than idle.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Throttled wraps senders with a per-destination RateLimiter.
type Throttled struct {
	Email   EmailSender
	SMS     SMSSender
	Limiter *RateLimiter
}

// SendEmailCode implements EmailSender.
func (t *Throttled) SendEmailCode(ctx context.Context, to string, code Code) (Delivery, error) {
	if !t.Limiter.Allow("email:" + to) {
		return Delivery{}, ErrRateLimited
	}
	return t.Email.SendEmailCode(ctx, to, code)
}

// SendSMSCode implements SMSSender.
func (t *Throttled) SendSMSCode(ctx context.Context, phone string, code Code) (Delivery, error) {
	if !t.Limiter.Allow("sms:" + phone) {
		return Delivery{}, ErrRateLimited
	}
	return t.SMS.SendSMSCode(ctx, phone, code)
}
