package pipeline

import (
	"testing"
	"time"
)

func TestPopularityScoreBlendsAllThreeComponents(t *testing.T) {
	pop := 80.0
	plays := int64(1_000_000)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	release := now.AddDate(-1, 0, 0)

	got := PopularityScore(ScoreInputs{
		PopularityNorm: &pop,
		Playcount:      &plays,
		ReleaseDate:    release,
		Now:            now,
		Decay:          ExponentialDecay{HalfLifeYears: 5},
	}, Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2})

	if got <= 0 || got > 100 {
		t.Fatalf("expected score in (0,100], got %v", got)
	}
}

func TestPopularityScoreRenormalizesWhenAClientIsMissing(t *testing.T) {
	pop := 50.0
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := PopularityScore(ScoreInputs{
		PopularityNorm: &pop,
		Playcount:      nil,
		ReleaseDate:    time.Time{},
		Now:            now,
	}, Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2})

	if got != 50 {
		t.Fatalf("expected renormalized score to equal the sole active component (50), got %v", got)
	}
}

func TestPopularityScoreZeroWhenNoComponentActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := PopularityScore(ScoreInputs{Now: now}, Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2})
	if got != 0 {
		t.Fatalf("expected 0 with no active component, got %v", got)
	}
}

func TestExponentialDecayHalvesAtHalfLife(t *testing.T) {
	d := ExponentialDecay{HalfLifeYears: 5}
	got := d.Decay(5)
	if got < 49.9 || got > 50.1 {
		t.Fatalf("expected ~50 at one half-life, got %v", got)
	}
}

func TestLinearDecayReachesZeroAtMaxYears(t *testing.T) {
	d := LinearDecay{MaxYears: 10}
	if got := d.Decay(10); got != 0 {
		t.Fatalf("expected 0 at MaxYears, got %v", got)
	}
	if got := d.Decay(0); got != 100 {
		t.Fatalf("expected 100 at age 0, got %v", got)
	}
}
