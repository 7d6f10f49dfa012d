package router

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per identity and evicts idle
// entries so disconnected users do not accumulate.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a per-identity limiter; returns nil (limiting
// disabled) if the arguments are not positive.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byKey:   make(map[string]*limiterEntry),
	}
}

// Allow reports whether identity may submit one more envelope now.
func (l *RateLimiter) Allow(identity string) bool {
	now := time.Now()

	l.mu.Lock()
	e, ok := l.byKey[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[identity] = e
	}
	e.lastSeen = now

	l.hits++
	if l.hits%512 == 0 {
		l.evictIdle(now)
	}
	l.mu.Unlock()

	return e.limiter.Allow()
}

// evictIdle removes entries not seen within idleTTL. Caller holds mu.
func (l *RateLimiter) evictIdle(now time.Time) {
	for key, e := range l.byKey {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.byKey, key)
		}
	}
}
