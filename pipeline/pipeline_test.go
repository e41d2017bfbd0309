package pipeline

import (
	"testing"

	"sptnr-core/catalog"
	"sptnr-core/detector"
	"sptnr-core/externalclients"
)

func TestParseReleaseDateAcceptsAllThreeGranularities(t *testing.T) {
	cases := []string{"2010-05-14", "2010-05", "2010"}
	for _, s := range cases {
		if got := parseReleaseDate(s); got.IsZero() {
			t.Errorf("parseReleaseDate(%q) returned zero time", s)
		}
	}
}

func TestParseReleaseDateZeroOnEmptyOrInvalid(t *testing.T) {
	for _, s := range []string{"", "not-a-date"} {
		if got := parseReleaseDate(s); !got.IsZero() {
			t.Errorf("parseReleaseDate(%q) = %v, want zero time", s, got)
		}
	}
}

func TestContainsLiveMarkerIsCaseInsensitive(t *testing.T) {
	cases := map[string]bool{
		"Track Title (Live)": true,
		"Live at Wembley":    true,
		"Alive and Kicking":  true,
		"Studio Version":     false,
	}
	for title, want := range cases {
		if got := containsLiveMarker(title); got != want {
			t.Errorf("containsLiveMarker(%q) = %v, want %v", title, got, want)
		}
	}
}

func TestAbsInt(t *testing.T) {
	if absInt(-5) != 5 {
		t.Fatalf("expected 5")
	}
	if absInt(5) != 5 {
		t.Fatalf("expected 5")
	}
	if absInt(0) != 0 {
		t.Fatalf("expected 0")
	}
}

func TestMax1NeverReturnsBelowOne(t *testing.T) {
	if max1(0) != 1 {
		t.Fatalf("expected floor of 1 for 0")
	}
	if max1(-3) != 1 {
		t.Fatalf("expected floor of 1 for negative")
	}
	if max1(4) != 4 {
		t.Fatalf("expected 4 to pass through")
	}
}

func TestBestPopularityCandidatePicksClosestDuration(t *testing.T) {
	track := &catalog.Track{DurationSec: 200}
	candidates := []externalclients.TrackCandidate{
		{ID: "a", DurationMs: 100_000},
		{ID: "b", DurationMs: 199_000},
		{ID: "c", DurationMs: 300_000},
	}
	got := bestPopularityCandidate(candidates, track)
	if got == nil || got.ID != "b" {
		t.Fatalf("expected candidate b (closest duration), got %+v", got)
	}
}

func TestBestPopularityCandidateNilOnEmpty(t *testing.T) {
	if got := bestPopularityCandidate(nil, &catalog.Track{}); got != nil {
		t.Fatalf("expected nil for no candidates, got %+v", got)
	}
}

func TestNonExcludedPopulationsSkipsExcludedTracks(t *testing.T) {
	tracks := []*catalog.Track{
		{PopularityScore: 80},
		{PopularityScore: 50},
		{PopularityScore: 10},
	}
	pre := []detector.PreprocessResult{
		{Excluded: false},
		{Excluded: true},
		{Excluded: false},
	}
	got := nonExcludedPopulations(tracks, pre)
	if len(got) != 2 || got[0] != 80 || got[1] != 10 {
		t.Fatalf("expected [80 10], got %v", got)
	}
}

func TestNonExcludedPopulationsFallsBackToZeroWhenAllExcluded(t *testing.T) {
	tracks := []*catalog.Track{{PopularityScore: 80}}
	pre := []detector.PreprocessResult{{Excluded: true}}
	got := nonExcludedPopulations(tracks, pre)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected deterministic [0] fallback, got %v", got)
	}
}

func TestDeriveLiveConfirmedRequiresLiveAndAMetadataSingle(t *testing.T) {
	cases := []struct {
		isLive, a, b, want bool
	}{
		{isLive: false, a: true, b: true, want: false},
		{isLive: true, a: false, b: false, want: false},
		{isLive: true, a: true, b: false, want: true},
		{isLive: true, a: false, b: true, want: true},
	}
	for _, c := range cases {
		if got := deriveLiveConfirmed(c.isLive, c.a, c.b); got != c.want {
			t.Errorf("deriveLiveConfirmed(%v,%v,%v) = %v, want %v", c.isLive, c.a, c.b, got, c.want)
		}
	}
}

func TestExcludeLiveRemixAlbumsDropsLiveAndRemixCandidates(t *testing.T) {
	candidates := []externalclients.TrackCandidate{
		{ID: "a", AlbumName: "Studio Album"},
		{ID: "b", AlbumName: "Live at Wembley"},
		{ID: "c", AlbumName: "Song (Remix)"},
	}
	got := excludeLiveRemixAlbums(candidates)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only candidate a to survive, got %+v", got)
	}
}

func TestBandIndexCountsOnlyPrecedingNonExcludedTracks(t *testing.T) {
	pre := []detector.PreprocessResult{
		{Excluded: false}, // band index 0
		{Excluded: true},  // skipped entirely
		{Excluded: false}, // band index 1
	}
	if got := bandIndex(pre, 2); got != 1 {
		t.Fatalf("expected band index 1, got %d", got)
	}
	if got := bandIndex(pre, 1); got != 0 {
		t.Fatalf("excluded target should return 0, got %d", got)
	}
}
