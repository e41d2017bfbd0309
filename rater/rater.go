// Package rater implements the pure star-rating function of spec.md §4.5:
// band rating by popularity quartile, detection-driven promotions, the
// excluded-track rule, and the underperforming-album downgrade. It takes a
// detector.Result and a small amount of album context, never touching the
// store or external clients directly.
package rater

import "sptnr-core/detector"

// TrackInput is the per-track data Rate needs.
type TrackInput struct {
	PopularityScore float64
	Excluded        bool // trailing-parenthesis filter or alternate-take
	Detection       detector.Result
}

// AlbumContext carries the figures computed once per album by the pipeline.
type AlbumContext struct {
	Underperforming bool
	ArtistZ         *float64 // nil when the artist has < 10 reliable tracks
}

// BandRating computes spec.md §4.5's baseline band rating: non-excluded
// album tracks sorted by popularity_score descending, split into four
// contiguous bands of roughly equal size (top->4, next->3, next->2,
// lowest->1). popularities must already be in that sorted order; index is
// the position of the rated track within it. A popularity of exactly 0
// always yields the deterministic fallback of 1.
func BandRating(popularities []float64, index int) int {
	if popularities[index] == 0 {
		return 1
	}
	n := len(popularities)
	bandSize := (n + 3) / 4 // ceil(n/4), so the earlier bands are full and the last band holds what is left
	band := index / bandSize
	switch band {
	case 0:
		return 4
	case 1:
		return 3
	case 2:
		return 2
	default:
		return 1
	}
}

// Rate implements spec.md §4.5's full rating logic for one track, given its
// precomputed band rating (BandRating, over the non-excluded album tracks).
func Rate(t TrackInput, band int, ctx AlbumContext) int {
	if t.Excluded {
		return band
	}

	stars := band
	switch {
	case t.Detection.Confidence == detector.ConfidenceHigh:
		stars = 5
	case t.Detection.Confidence == detector.ConfidenceMedium && len(t.Detection.Sources) >= 2:
		stars = 5
	case t.Detection.Confidence == detector.ConfidenceMedium && len(t.Detection.Sources) == 1:
		stars = band + 1
		if stars > 4 {
			stars = 4
		}
	}

	// Underperforming-album rule: downgrade an earned 5 to 4 unless the
	// track is an artist-level standout or has >= 2 corroborating sources.
	// Single-source promotions (even high-confidence ones, e.g. a lone
	// Metadata-B confirmation) still get downgraded — see spec.md §8
	// scenario 3, which downgrades exactly this case.
	if stars == 5 && ctx.Underperforming && !isArtistStandout(ctx.ArtistZ) && len(t.Detection.Sources) < 2 {
		stars = 4
	}

	return stars
}

func isArtistStandout(artistZ *float64) bool {
	return artistZ != nil && *artistZ >= 0
}
