package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultFallbackSize = 10_000
	fallbackTTL         = 10 * time.Minute
)

// Fallback is a bounded sliding-log limiter held in process memory. The least
// recently seen identities are evicted once size is reached.
type Fallback struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, []time.Time]
}

func NewFallback(size int) *Fallback {
	if size <= 0 {
		size = DefaultFallbackSize
	}
	return &Fallback{
		entries: expirable.NewLRU[string, []time.Time](size, nil, fallbackTTL),
	}
}

func (f *Fallback) Allow(key string, p Policy, now time.Time) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, _ := f.entries.Get(key)
	cutoff := now.Add(-p.Window)

	kept := make([]time.Time, 0, len(prev)+1)
	for _, ts := range prev {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= p.Limit {
		f.entries.Add(key, kept)
		retryAfter := time.Duration(0)
		if len(kept) > 0 {
			retryAfter = kept[0].Add(p.Window).Sub(now)
		}
		return Decision{Allowed: false, Limit: p.Limit, Remaining: 0, RetryAfter: retryAfter}
	}

	kept = append(kept, now)
	f.entries.Add(key, kept)
	return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit - len(kept)}
}

// Len reports how many identities are tracked.
func (f *Fallback) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries.Len()
}
