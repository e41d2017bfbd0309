package rater

import (
	"testing"

	"sptnr-core/detector"
)

func floatPtr(f float64) *float64 { return &f }

func TestBandRatingFourBands(t *testing.T) {
	// spec.md §8 scenario 1: pop=40 is the lowest of 10 -> band 4 -> 1 star.
	pops := []float64{85, 70, 65, 60, 55, 52, 50, 48, 45, 40}
	if got := BandRating(pops, 9); got != 1 {
		t.Fatalf("expected lowest band -> 1 star, got %d", got)
	}
	if got := BandRating(pops, 0); got != 4 {
		t.Fatalf("expected top band -> 4 stars, got %d", got)
	}
}

func TestBandRatingZeroPopularityFallback(t *testing.T) {
	pops := []float64{0, 10, 20}
	if got := BandRating(pops, 0); got != 1 {
		t.Fatalf("expected deterministic 1-star fallback for zero popularity, got %d", got)
	}
}

func TestRateHighConfidencePromotesToFive(t *testing.T) {
	in := TrackInput{PopularityScore: 85, Detection: detector.Result{Confidence: detector.ConfidenceHigh}}
	if got := Rate(in, 4, AlbumContext{}); got != 5 {
		t.Fatalf("expected high confidence -> 5 stars, got %d", got)
	}
}

func TestRateMediumWithTwoSourcesPromotesToFive(t *testing.T) {
	in := TrackInput{Detection: detector.Result{Confidence: detector.ConfidenceMedium, Sources: []string{"metadata_a_single", "zscore_metadata"}}}
	if got := Rate(in, 3, AlbumContext{}); got != 5 {
		t.Fatalf("expected medium with >= 2 sources -> 5 stars, got %d", got)
	}
}

func TestRateMediumWithOneSourceAddsOneCappedAtFour(t *testing.T) {
	in := TrackInput{Detection: detector.Result{Confidence: detector.ConfidenceMedium, Sources: []string{"popularity_single"}}}
	if got := Rate(in, 4, AlbumContext{}); got != 4 {
		t.Fatalf("expected band 4 + 1 capped at 4, got %d", got)
	}
	if got := Rate(in, 2, AlbumContext{}); got != 3 {
		t.Fatalf("expected band 2 + 1 = 3, got %d", got)
	}
}

func TestRateExcludedTrackNeverPromoted(t *testing.T) {
	in := TrackInput{Excluded: true, Detection: detector.Result{Confidence: detector.ConfidenceHigh}}
	if got := Rate(in, 2, AlbumContext{}); got != 2 {
		t.Fatalf("excluded track must receive only its band rating, got %d", got)
	}
}

func TestRateUnderperformingAlbumDowngradesLoneSourceHighConfidence(t *testing.T) {
	// spec.md §8 scenario 3: high confidence via a single Metadata-B source,
	// artist_z < 0, album underperforming -> downgrade 5 to 4.
	in := TrackInput{
		Detection: detector.Result{Confidence: detector.ConfidenceHigh, Sources: []string{"metadata_b_single"}},
	}
	ctx := AlbumContext{Underperforming: true, ArtistZ: floatPtr(-0.5)}
	if got := Rate(in, 4, ctx); got != 4 {
		t.Fatalf("expected downgrade from 5 to 4, got %d", got)
	}
}

func TestRateUnderperformingAlbumDoesNotDowngradeArtistStandout(t *testing.T) {
	in := TrackInput{
		Detection: detector.Result{Confidence: detector.ConfidenceHigh, Sources: []string{"metadata_b_single"}},
	}
	ctx := AlbumContext{Underperforming: true, ArtistZ: floatPtr(0.5)}
	if got := Rate(in, 4, ctx); got != 5 {
		t.Fatalf("expected artist-level standout to survive the downgrade, got %d", got)
	}
}

func TestRateUnderperformingAlbumDoesNotDowngradeMultiSource(t *testing.T) {
	in := TrackInput{
		Detection: detector.Result{Confidence: detector.ConfidenceMedium, Sources: []string{"metadata_a_single", "zscore_metadata"}},
	}
	ctx := AlbumContext{Underperforming: true, ArtistZ: floatPtr(-0.5)}
	if got := Rate(in, 4, ctx); got != 5 {
		t.Fatalf("expected >= 2 sources to survive the downgrade, got %d", got)
	}
}
