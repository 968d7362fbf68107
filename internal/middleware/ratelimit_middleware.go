package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter holds one token bucket per key (client IP or API client).
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter allows perMinute events per key per minute with the
// same burst.
func NewKeyedRateLimiter(perMinute int) *KeyedRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &KeyedRateLimiter{
		limiters: make(map[string]*keyedLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idle:     5 * time.Minute,
	}
}

// NewInvalidAuthRateLimiter limits invalid authentication attempts to 5 per
// minute per IP.
func NewInvalidAuthRateLimiter() *KeyedRateLimiter {
	return NewKeyedRateLimiter(5)
}

// Allow reports whether key may make another attempt now.
func (r *KeyedRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	l, ok := r.limiters[key]
	if !ok {
		l = &keyedLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = l
	}
	l.lastSeen = now
	r.evictIdle(now)
	return l.limiter.AllowN(now, 1)
}

// evictIdle drops keys not seen for the idle window. Caller holds mu.
func (r *KeyedRateLimiter) evictIdle(now time.Time) {
	if len(r.limiters) < 1024 {
		return
	}
	for key, l := range r.limiters {
		if now.Sub(l.lastSeen) > r.idle {
			delete(r.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (r *KeyedRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
