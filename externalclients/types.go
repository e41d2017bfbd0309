// Package externalclients defines the shared signal types the four clients
// (popularity, scrobbles, metadataa, metadatab) return, per spec.md §4.2.
// The detector and pipeline import only these narrow structs, never the
// client implementations themselves, keeping detector/rater pure (spec.md
// §4.4/§4.5 and SPEC_FULL.md §4.5's "no HTTP import here" constraint).
package externalclients

import "time"

// ClientHealth is the lightweight health-reporting surface every client
// exposes, modeled after the teacher's plugin health-check pattern
// (internal/plugins/domain/entities.go's HealthStatus), adapted so the
// status API (package api) can show "Metadata-B has been failing for 20
// minutes" without a reader parsing logs.
type ClientHealth struct {
	LastOK      time.Time
	LastError   time.Time
	LastErrMsg  string
	CircuitOpen bool
}

// TrackCandidate is one Popularity search_track result.
type TrackCandidate struct {
	ID         string
	Title      string
	AlbumType  string // album|single|ep|compilation
	AlbumName  string
	Popularity int // 0-100
	DurationMs int
}

// ScrobbleInfo is the Scrobbles track_info result.
type ScrobbleInfo struct {
	Playcount int
	Tags      []ScrobbleTag
}

type ScrobbleTag struct {
	Name  string
	Count int
}

// ReleaseGroup is the Metadata-A release_group result.
type ReleaseGroup struct {
	PrimaryType       string
	SecondaryTypes    []string
	FirstReleaseDate  string
}

// Release is the Metadata-B find_release result.
type Release struct {
	Formats    []string
	Tracklist  []ReleaseTrack
	Videos     []ReleaseVideo
	MasterID   string
	MasterIsSingle bool
	Year       string
	Label      string
	Country    string
	Promo      bool
}

type ReleaseTrack struct {
	Title       string
	DurationSec int
}

type ReleaseVideo struct {
	Title       string
	Description string
}
