package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// saveLimiters tracks one token bucket per user for draft autosaves. The
// client debounces saves; this is the server-side backstop.
type saveLimiters struct {
	mu    sync.Mutex
	per   map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newSaveLimiters(rps float64, burst int) *saveLimiters {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &saveLimiters{per: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (l *saveLimiters) allow(userID string) bool {
	l.mu.Lock()
	lim := l.per[userID]
	if lim == nil {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.per[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
