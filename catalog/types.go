// Package catalog defines the domain types shared by the store, the external
// clients, the single-detector, the rater, and the scan pipeline.
package catalog

import (
	"math"
	"strings"
	"time"
)

// SingleConfidence is the three-level classification spec.md §4.4 assigns to a track.
type SingleConfidence string

const (
	ConfidenceNone   SingleConfidence = "none"
	ConfidenceMedium SingleConfidence = "medium"
	ConfidenceHigh   SingleConfidence = "high"
)

// AlbumType is the release type reported by the library and by Popularity.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeEP          AlbumType = "ep"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeCompilation AlbumType = "compilation"
)

// ScanType distinguishes the three kinds of scan history entries.
type ScanType string

const (
	ScanLibraryImport ScanType = "library_import"
	ScanPopularity    ScanType = "popularity"
	ScanBeetsImport   ScanType = "beets_import"
)

// ScanStatus is the outcome recorded for a ScanHistoryEntry.
type ScanStatus string

const (
	ScanCompleted   ScanStatus = "completed"
	ScanError       ScanStatus = "error"
	ScanSkipped     ScanStatus = "skipped"
	ScanInterrupted ScanStatus = "interrupted"
)

// ExternalIDs is the strict schema for a track or artist's multi-source identifiers
// (spec.md §9: "Dynamic JSON columns holding multi-source IDs ... define a strict
// schema").
type ExternalIDs struct {
	MetadataA *string `json:"metadata_a,omitempty"`
	MetadataB *string `json:"metadata_b,omitempty"`
	Popularity *string `json:"popularity,omitempty"`
	Scrobbles  *string `json:"scrobbles,omitempty"`
}

// Artist is the aggregate-level entity of spec.md §3.
type Artist struct {
	ID          int64
	Name        string // display name
	NameLC      string // case-insensitive normalized name, the identity
	Genres      []string
	ExternalIDs ExternalIDs

	PopularityMean   float64
	PopularityMedian float64
	PopularityStddev float64

	// StatsTrackCount is the number of tracks considered when the above stats were
	// last computed; used to gate the "≥10 tracks" reliability rule.
	StatsTrackCount int
}

// Album is identified by (artist, album) per spec.md §3.
type Album struct {
	ID          int64
	ArtistID    int64
	Artist      string
	ArtistLC    string
	Title       string
	TitleLC     string
	ReleaseDate string // YYYY, YYYY-MM or YYYY-MM-DD; may be empty
	Type        AlbumType
	TrackCount  int
	DiscCount   int
	CoverArtURL string
	Genres      []string
	Notes       string

	MetadataAReleaseID string
	MetadataBReleaseID string

	LastScanned time.Time

	// IsLive / IsUnplugged are derived from Title/Notes per spec.md §4.2's
	// "context inference" rule; cached here so the pipeline computes it once
	// per album instead of per track.
	IsLive      bool
	IsUnplugged bool
}

// Track is identified by an opaque library id and, for deduplication, by its
// content key. See spec.md §3.
type Track struct {
	ID       int64
	LibraryID string

	Title    string
	TitleLC  string
	Artist   string
	ArtistLC string
	Album    string
	AlbumLC  string

	DurationSec int
	ISRC        string
	FilePath    string

	ExternalIDs ExternalIDs

	PopularityScore    float64
	Stars              int
	IsSingle           bool
	SingleConfidence   SingleConfidence
	SingleSources      []string
	AlbumZ             *float64
	ArtistZ            *float64
	AlternateTake      bool
	BaseTrackID        *int64

	LastPopularityLookup time.Time
	LastScanned          time.Time
}

// ContentKey is the uniqueness tuple of spec.md §3/§GLOSSARY:
// (artist_lc, album_lc, title_lc, round(duration)).
type ContentKey struct {
	ArtistLC   string
	AlbumLC    string
	TitleLC    string
	DurationRounded int
}

// Key computes t's content key. Duration is rounded to the nearest second, and
// the store additionally treats keys within ±2 seconds as colliding (see
// the duplicate lookup in store.UpsertTrack), since a content key is a fuzzy identity, not an
// exact tuple match on duration.
func (t *Track) Key() ContentKey {
	return ContentKey{
		ArtistLC:        NormalizeName(t.Artist),
		AlbumLC:         NormalizeName(t.Album),
		TitleLC:         NormalizeName(t.Title),
		DurationRounded: int(math.Round(float64(t.DurationSec))),
	}
}

// NormalizeName lowercases and trims a name for case-insensitive identity
// comparisons (artist/album/title matching throughout the pipeline).
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ScanHistoryEntry records one attempted or completed scan of an album.
type ScanHistoryEntry struct {
	ID              int64
	Artist          string
	Album           string
	ScanType        ScanType
	Timestamp       time.Time
	TracksProcessed int
	Status          ScanStatus
}

// RateLimiterState is the persisted counters of spec.md §3/§4.1.
type RateLimiterState struct {
	PopularityDailyCount int
	ScrobblesDailyCount  int
	LastResetDate        string // YYYY-MM-DD, local time
	PopularityWindow     []time.Time
	ScrobblesWindow      []time.Time
}
