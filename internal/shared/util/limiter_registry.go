package util

import (
	"sync"
)

// LimiterRegistry manages one limiter per key. The detector uses it to
// bound subprocess launches per external tool so a directory scan cannot
// fork-bomb the host.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	burst    int
}

// NewLimiterRegistry creates a new registry.
// rate: tokens per second granted to each key.
// burst: burst size per key.
func NewLimiterRegistry(r float64, b int) *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*Limiter),
		rate:     r,
		burst:    b,
	}
}

// Get returns the limiter for the given key (e.g., a tool name),
// constructing it on first use.
func (r *LimiterRegistry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[key]
	if !ok {
		l = NewLimiter(r.rate, r.burst)
		r.limiters[key] = l
	}
	return l
}
