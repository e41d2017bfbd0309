// Package ratelimiter gates calls to the Popularity and Scrobbles APIs,
// per spec.md §4.1: a rolling window count and a calendar-day quota, both
// persisted so a restart doesn't reset the daily counters.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"sptnr-core/catalog"
)

// API identifies which quota a call consumes.
type API string

const (
	Popularity API = "popularity"
	Scrobbles  API = "scrobbles"
)

// Quotas is the configurable limit set of spec.md §4.1.
type Quotas struct {
	PopularityWindowLimit int
	PopularityDailyLimit  int
	ScrobblesMinSpacingMs int
	ScrobblesDailyLimit   int
}

// bucket is one API's sliding-window + daily-quota state.
type bucket struct {
	window       []time.Time
	windowSize   time.Duration
	windowLimit  int
	dailyCount   int
	dailyLimit   int
}

// Limiter holds one bucket per gated API, protected by a single mutex
// per spec.md §5 ("RateLimiter: protected by a mutex; all token-bucket
// operations atomic").
type Limiter struct {
	mu            sync.Mutex
	buckets       map[API]*bucket
	lastResetDate string

	statePath    string
	recordsSince int
	flushEvery   int
}

// New constructs a Limiter with the popularity window fixed at 30 seconds
// and the scrobbles window derived from the configured minimum spacing
// (spec.md §4.1: "1 request per second minimum spacing" is a window of size
// 1 and limit 1 — modeled as a sliding window of ScrobblesMinSpacingMs with
// a limit of 1, which is equivalent and reuses the same bucket machinery).
func New(q Quotas, statePath string) *Limiter {
	l := &Limiter{
		buckets:    make(map[API]*bucket),
		statePath:  statePath,
		flushEvery: 50,
	}
	l.buckets[Popularity] = &bucket{
		windowSize:  30 * time.Second,
		windowLimit: q.PopularityWindowLimit,
		dailyLimit:  q.PopularityDailyLimit,
	}
	spacing := time.Duration(q.ScrobblesMinSpacingMs) * time.Millisecond
	if spacing <= 0 {
		spacing = time.Second
	}
	l.buckets[Scrobbles] = &bucket{
		windowSize:  spacing,
		windowLimit: 1,
		dailyLimit:  q.ScrobblesDailyLimit,
	}
	l.lastResetDate = today()

	if st, err := loadState(statePath); err == nil && st != nil {
		l.restore(st)
	}

	return l
}

// Check reports whether api may be called right now: window count below
// limit and daily count below limit. It prunes expired window entries as
// a side effect (lazy prune, per spec.md §4.1).
func (l *Limiter) Check(api API) (allowed bool, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	b := l.buckets[api]
	if b == nil {
		return true, ""
	}
	b.prune()

	if b.dailyCount >= b.dailyLimit {
		return false, "daily quota exhausted"
	}
	if len(b.window) >= b.windowLimit {
		return false, "window limit reached"
	}
	return true, ""
}

// Record appends now() to api's window and increments its daily counter.
// State is flushed to disk every flushEvery records.
func (l *Limiter) Record(api API) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	b := l.buckets[api]
	if b == nil {
		return
	}
	b.window = append(b.window, time.Now())
	b.dailyCount++

	l.recordsSince++
	if l.recordsSince >= l.flushEvery {
		l.recordsSince = 0
		l.flushLocked()
	}
}

// WaitIfNeeded blocks (honoring ctx and maxWait) until api's window has
// room, then returns true. If the daily quota is exhausted it returns
// false immediately — never sleeping past midnight, per spec.md §4.1.
func (l *Limiter) WaitIfNeeded(ctx context.Context, api API, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		l.mu.Lock()
		l.resetIfNewDayLocked()
		b := l.buckets[api]
		if b == nil {
			l.mu.Unlock()
			return true
		}
		b.prune()

		if b.dailyCount >= b.dailyLimit {
			l.mu.Unlock()
			return false
		}
		if len(b.window) < b.windowLimit {
			l.mu.Unlock()
			return true
		}
		oldest := b.window[0]
		wait := b.windowSize - time.Since(oldest)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if time.Now().Add(wait).After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// Flush persists the current state to disk immediately (called on
// process exit per spec.md §4.1).
func (l *Limiter) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// BucketState is a read-only snapshot of one API's current counters, for the
// status/dashboard API (spec.md §6, SPEC_FULL.md §4.10).
type BucketState struct {
	WindowCount int
	WindowLimit int
	DailyCount  int
	DailyLimit  int
}

// State returns a snapshot of every gated API's current counters.
func (l *Limiter) State() map[API]BucketState {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	out := make(map[API]BucketState, len(l.buckets))
	for api, b := range l.buckets {
		b.prune()
		out[api] = BucketState{
			WindowCount: len(b.window),
			WindowLimit: b.windowLimit,
			DailyCount:  b.dailyCount,
			DailyLimit:  b.dailyLimit,
		}
	}
	return out
}

func (b *bucket) prune() {
	cutoff := time.Now().Add(-b.windowSize)
	kept := b.window[:0]
	for _, t := range b.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.window = kept
}

func (l *Limiter) resetIfNewDayLocked() {
	d := today()
	if d == l.lastResetDate {
		return
	}
	l.lastResetDate = d
	for _, b := range l.buckets {
		b.dailyCount = 0
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func (l *Limiter) restore(st *catalog.RateLimiterState) {
	l.lastResetDate = st.LastResetDate
	if b := l.buckets[Popularity]; b != nil {
		b.dailyCount = st.PopularityDailyCount
		b.window = append([]time.Time(nil), st.PopularityWindow...)
		b.prune()
	}
	if b := l.buckets[Scrobbles]; b != nil {
		b.dailyCount = st.ScrobblesDailyCount
		b.window = append([]time.Time(nil), st.ScrobblesWindow...)
		b.prune()
	}
}

func (l *Limiter) flushLocked() error {
	st := &catalog.RateLimiterState{
		LastResetDate: l.lastResetDate,
	}
	if b := l.buckets[Popularity]; b != nil {
		st.PopularityDailyCount = b.dailyCount
		st.PopularityWindow = append([]time.Time(nil), b.window...)
	}
	if b := l.buckets[Scrobbles]; b != nil {
		st.ScrobblesDailyCount = b.dailyCount
		st.ScrobblesWindow = append([]time.Time(nil), b.window...)
	}
	return saveState(l.statePath, st)
}
