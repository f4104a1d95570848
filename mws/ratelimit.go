package mws

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// rateLimiter allows each session at most quota requests inside a sliding
// window.
type rateLimiter struct {
	hits   cmap.ConcurrentMap[string, []time.Time]
	now    func() time.Time
	quota  int
	window time.Duration
}

func newRateLimiter(quota int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		hits:   cmap.New[[]time.Time](),
		now:    time.Now,
		quota:  quota,
		window: window,
	}
}

// Allow records a request of the session and reports whether it is within
// the quota. Rejected requests count too.
func (l *rateLimiter) Allow(sessionID string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)
	hits := l.hits.Upsert(sessionID, nil, func(_ bool, inMap []time.Time, _ []time.Time) []time.Time {
		kept := make([]time.Time, 0, len(inMap)+1)
		for _, t := range inMap {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		return append(kept, now)
	})
	return len(hits) <= l.quota
}

// Sweep forgets sessions without requests in the current window.
func (l *rateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.window)
	removed := 0
	for _, key := range l.hits.Keys() {
		if l.hits.RemoveCb(key, func(_ string, hits []time.Time, exists bool) bool {
			return exists && (len(hits) == 0 || !hits[len(hits)-1].After(cutoff))
		}) {
			removed++
		}
	}
	return removed
}
