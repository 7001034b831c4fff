package mutation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/autobrr/autobrr-sub001/internal/config"
)

// TestLimiter bounds how often one session may run its test action.
type TestLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewTestLimiter creates a limiter from config. A zero rate disables it.
func NewTestLimiter(cfg config.RateLimitConfig) *TestLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.TestsPerMinute > 0 {
		limit = rate.Every(time.Duration(float64(time.Minute) / cfg.TestsPerMinute))
	}
	return &TestLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the session may run a test now.
func (l *TestLimiter) Allow(sessionID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sessionID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the limiter of a closed session.
func (l *TestLimiter) Forget(sessionID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.limiters, sessionID)
	l.mu.Unlock()
}
