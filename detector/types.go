// Package detector is the pure SingleDetector of spec.md §4.4: preprocessing
// (trailing-parenthesis exclusion, alternate-take detection, keyword skip),
// album/artist statistics, and the high/medium/none confidence classification.
// It never imports externalclients or net/http — callers resolve external
// signals first and pass in the narrow Signals struct, keeping this package
// as testable as the teacher's analytics/domain/services aggregation logic
// (generalized here from event counters to statistical classification).
package detector

// Signals is the set of external confirmations the pipeline resolved for a
// track before calling Detect, per spec.md §4.2/§4.4.
type Signals struct {
	// PopularityAlbumType is the Popularity client's reported album type for
	// the matching candidate, already filtered to exclude results whose
	// album name contains "live" or "remix" (spec.md §4.4 Medium sources).
	PopularityAlbumType string // "", "album", "single", "ep", "compilation"
	PopularityTitleMatch bool

	MetadataASingle bool // version-token-matched single confirmation
	MetadataBSingle bool
	MetadataBVideo  bool // official video match

	// LiveConfirmed is true if Metadata-A or Metadata-B confirms this is
	// genuinely a live recording (spec.md §4.4 "Live-track handling").
	LiveConfirmed bool
}

// TrackInput is the per-track data Detect needs, already resolved by the
// pipeline (popularity score looked up, album/artist context computed).
type TrackInput struct {
	Title           string
	PopularityScore float64
	IsLive          bool // title contains "live" or track is on a live album
	Excluded        bool // trailing-parenthesis or alternate-take exclusion
	AlbumZ          *float64
	ArtistZ         *float64
	Signals         Signals
}

// Confidence mirrors catalog.SingleConfidence without importing catalog, so
// this package stays free of persistence concerns.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Result is Detect's output, per spec.md §4.4.
type Result struct {
	IsSingle   bool
	Confidence Confidence
	Sources    []string
}

// AlbumStats is the album-level statistics of spec.md §4.4, computed over
// non-excluded tracks with popularity_score > 0.
type AlbumStats struct {
	Mean       float64
	Stddev     float64
	MeanTop50Z float64
	Underperforming bool // set by the caller once artist stats are known
}

// ArtistStats is the artist-level statistics, computed the same way but
// requiring >= 10 tracks to be considered reliable (spec.md §4.4).
type ArtistStats struct {
	Mean     float64
	Median   float64
	Stddev   float64
	Reliable bool
}
