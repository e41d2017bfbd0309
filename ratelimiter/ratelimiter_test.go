package ratelimiter

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testQuotas() Quotas {
	return Quotas{
		PopularityWindowLimit: 3,
		PopularityDailyLimit:  5,
		ScrobblesMinSpacingMs: 10,
		ScrobblesDailyLimit:   5,
	}
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	l := New(testQuotas(), filepath.Join(t.TempDir(), "state.json"))
	for i := 0; i < 3; i++ {
		allowed, _ := l.Check(Popularity)
		if !allowed {
			t.Fatalf("expected allowed on attempt %d", i)
		}
		l.Record(Popularity)
	}
	allowed, reason := l.Check(Popularity)
	if allowed {
		t.Fatalf("expected window limit to block the 4th request")
	}
	if reason == "" {
		t.Fatalf("expected a reason when disallowed")
	}
}

func TestDailyQuotaBlocksRegardlessOfWindow(t *testing.T) {
	q := testQuotas()
	q.PopularityDailyLimit = 2
	l := New(q, filepath.Join(t.TempDir(), "state.json"))
	l.Record(Popularity)
	l.Record(Popularity)
	allowed, reason := l.Check(Popularity)
	if allowed {
		t.Fatalf("expected daily quota exhaustion to block")
	}
	if reason != "daily quota exhausted" {
		t.Fatalf("got reason %q", reason)
	}
}

func TestWaitIfNeededReturnsFalseWhenDailyExhausted(t *testing.T) {
	q := testQuotas()
	q.PopularityDailyLimit = 1
	l := New(q, filepath.Join(t.TempDir(), "state.json"))
	l.Record(Popularity)

	ctx := context.Background()
	if l.WaitIfNeeded(ctx, Popularity, time.Second) {
		t.Fatalf("expected WaitIfNeeded to return false immediately on exhausted daily quota")
	}
}

func TestWaitIfNeededUnblocksAfterWindowExpires(t *testing.T) {
	q := testQuotas()
	q.PopularityWindowLimit = 1
	l := New(q, filepath.Join(t.TempDir(), "state.json"))
	l.buckets[Popularity].windowSize = 50 * time.Millisecond
	l.Record(Popularity)

	ctx := context.Background()
	start := time.Now()
	if !l.WaitIfNeeded(ctx, Popularity, time.Second) {
		t.Fatalf("expected WaitIfNeeded to eventually allow")
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatalf("expected WaitIfNeeded to actually wait for window expiry")
	}
}

func TestFlushAndReloadPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	l := New(testQuotas(), path)
	l.Record(Popularity)
	l.Record(Scrobbles)
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	l2 := New(testQuotas(), path)
	if l2.buckets[Popularity].dailyCount != 1 {
		t.Fatalf("expected restored popularity daily count 1, got %d", l2.buckets[Popularity].dailyCount)
	}
	if l2.buckets[Scrobbles].dailyCount != 1 {
		t.Fatalf("expected restored scrobbles daily count 1, got %d", l2.buckets[Scrobbles].dailyCount)
	}
}
