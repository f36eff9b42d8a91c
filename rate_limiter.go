package contacts

import (
	"sync"
	"time"
)

// RateLimiter gates sensitive operations like login and password reset
// requests, keyed by caller identity (identifier or client address).
type RateLimiter interface {
	// Allow records an attempt for the key and reports whether it is
	// within the configured budget.
	Allow(key string) bool
	// Reset clears the counter for a key, used after a successful login.
	Reset(key string)
}

type windowEntry struct {
	count      int
	windowFrom time.Time
}

// FixedWindowLimiter allows up to limit attempts per window per key.
// Counters reset when their window lapses.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		entries: map[string]*windowEntry{},
		now:     time.Now,
	}
}

// WithClock injects a custom clock for window boundary tests.
func (l *FixedWindowLimiter) WithClock(clock func() time.Time) *FixedWindowLimiter {
	if clock != nil {
		l.now = clock
	}
	return l
}

func (l *FixedWindowLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	entry, ok := l.entries[key]
	if !ok || IsOutsideThresholdPeriod(entry.windowFrom, l.window, now) {
		l.entries[key] = &windowEntry{count: 1, windowFrom: now}
		l.reclaim(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	return true
}

func (l *FixedWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// reclaim drops lapsed windows. Called with the lock held; bounded so a
// burst of unique keys does not turn every Allow into a full sweep.
func (l *FixedWindowLimiter) reclaim(now time.Time) {
	if len(l.entries) < 1024 {
		return
	}
	for key, entry := range l.entries {
		if IsOutsideThresholdPeriod(entry.windowFrom, l.window, now) {
			delete(l.entries, key)
		}
	}
}
