package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client. The whole table is
// dropped every ttl so idle clients do not accumulate.
type clientLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	ttl         time.Duration
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	now         func() time.Time
}

func newClientLimiter(perSecond float64, burst int, ttl time.Duration) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		ttl:         ttl,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow implements echo's middleware.RateLimiterStore.
func (l *clientLimiter) Allow(identifier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.ttl {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = now
	}
	lim, ok := l.limiters[identifier]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[identifier] = lim
	}
	return lim.AllowN(now, 1), nil
}
