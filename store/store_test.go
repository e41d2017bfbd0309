package store

import (
	"path/filepath"
	"testing"

	"sptnr-core/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertTrackInsertsNewRow(t *testing.T) {
	s := openTestStore(t)
	artist, err := s.UpsertArtist("Test Artist")
	if err != nil {
		t.Fatalf("UpsertArtist: %v", err)
	}
	album, err := s.UpsertAlbum(artist.ID, catalog.Album{Artist: "Test Artist", Title: "Test Album"})
	if err != nil {
		t.Fatalf("UpsertAlbum: %v", err)
	}

	track := &catalog.Track{LibraryID: "lib-1", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180}
	got, err := s.UpsertTrack(album.ID, track)
	if err != nil {
		t.Fatalf("UpsertTrack: %v", err)
	}
	if got.ID == 0 {
		t.Fatalf("expected assigned id")
	}
}

func TestUpsertTrackIdempotent(t *testing.T) {
	s := openTestStore(t)
	artist, _ := s.UpsertArtist("Test Artist")
	album, _ := s.UpsertAlbum(artist.ID, catalog.Album{Artist: "Test Artist", Title: "Test Album"})

	track := &catalog.Track{LibraryID: "lib-1", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180}
	first, err := s.UpsertTrack(album.ID, track)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &catalog.Track{LibraryID: "lib-1", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180}
	got, err := s.UpsertTrack(album.ID, second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected idempotent upsert to reuse id %d, got %d", first.ID, got.ID)
	}

	tracks, err := s.GetAlbumTracks("Test Artist", "Test Album")
	if err != nil {
		t.Fatalf("GetAlbumTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected exactly one row after idempotent upsert, got %d", len(tracks))
	}
}

func TestUpsertTrackMergeOnReimportKeepsHigherQuality(t *testing.T) {
	// spec.md §8 scenario 6: re-import assigns a new opaque track id; content
	// keys collide; merge keeps the row with metadata_a mbid and preserves
	// stars/is_single.
	s := openTestStore(t)
	artist, _ := s.UpsertArtist("Test Artist")
	album, _ := s.UpsertAlbum(artist.ID, catalog.Album{Artist: "Test Artist", Title: "Test Album"})

	mbid := "mbid-123"
	existing := &catalog.Track{
		LibraryID: "old-id", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180,
		ExternalIDs: catalog.ExternalIDs{MetadataA: &mbid},
		IsSingle:    true, Stars: 5,
	}
	first, err := s.UpsertTrack(album.ID, existing)
	if err != nil {
		t.Fatalf("seeding existing track: %v", err)
	}
	// Promote the seeded row's quality fields directly, simulating a prior
	// popularity scan (UpsertTrack's plain-import path alone wouldn't set them).
	if err := s.BatchUpdateSingles([]SinglesUpdate{{TrackID: first.ID, IsSingle: true, SingleConfidence: catalog.ConfidenceHigh, Stars: 5}}); err != nil {
		t.Fatalf("seeding singles: %v", err)
	}

	reimported := &catalog.Track{LibraryID: "new-id", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180}
	merged, err := s.UpsertTrack(album.ID, reimported)
	if err != nil {
		t.Fatalf("merge upsert: %v", err)
	}

	tracks, err := s.GetAlbumTracks("Test Artist", "Test Album")
	if err != nil {
		t.Fatalf("GetAlbumTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected merge to collapse to a single row, got %d", len(tracks))
	}
	if merged.ExternalIDs.MetadataA == nil || *merged.ExternalIDs.MetadataA != mbid {
		t.Fatalf("expected merged row to keep metadata_a mbid")
	}
	if tracks[0].Stars != 5 || !tracks[0].IsSingle {
		t.Fatalf("expected merged row to preserve stars=5/is_single=true, got stars=%d is_single=%v", tracks[0].Stars, tracks[0].IsSingle)
	}
}

func TestUpsertTrackMergePreservesSingleConfidenceAndSourcesWhenNewRowWins(t *testing.T) {
	// When the reimported row out-scores the existing row (e.g. it supplies a
	// file_path the existing row lacked), mergeInto copies the loser's fields
	// into it; single_confidence/single_sources must survive that merge the
	// same way is_single/stars already do.
	s := openTestStore(t)
	artist, _ := s.UpsertArtist("Test Artist")
	album, _ := s.UpsertAlbum(artist.ID, catalog.Album{Artist: "Test Artist", Title: "Test Album"})

	existing := &catalog.Track{
		LibraryID: "old-id", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180,
	}
	first, err := s.UpsertTrack(album.ID, existing)
	if err != nil {
		t.Fatalf("seeding existing track: %v", err)
	}
	if err := s.BatchUpdateSingles([]SinglesUpdate{{
		TrackID: first.ID, IsSingle: true, SingleConfidence: catalog.ConfidenceHigh,
		SingleSources: []string{"popularity_standout"}, Stars: 5,
	}}); err != nil {
		t.Fatalf("seeding singles: %v", err)
	}

	reimported := &catalog.Track{
		LibraryID: "new-id", Title: "Song", Artist: "Test Artist", Album: "Test Album", DurationSec: 180,
		FilePath: "/music/Test Artist/Test Album/Song.flac",
	}
	if _, err := s.UpsertTrack(album.ID, reimported); err != nil {
		t.Fatalf("merge upsert: %v", err)
	}

	tracks, err := s.GetAlbumTracks("Test Artist", "Test Album")
	if err != nil {
		t.Fatalf("GetAlbumTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected merge to collapse to a single row, got %d", len(tracks))
	}
	if tracks[0].SingleConfidence != catalog.ConfidenceHigh {
		t.Fatalf("expected merged row to preserve single_confidence=high, got %q", tracks[0].SingleConfidence)
	}
	if len(tracks[0].SingleSources) != 1 || tracks[0].SingleSources[0] != "popularity_standout" {
		t.Fatalf("expected merged row to preserve single_sources, got %v", tracks[0].SingleSources)
	}
	if !tracks[0].IsSingle || tracks[0].Stars != 5 {
		t.Fatalf("expected is_single/stars also preserved, got is_single=%v stars=%d", tracks[0].IsSingle, tracks[0].Stars)
	}
}

func TestScanHistoryRecordAndQuery(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordScan("Artist", "Album", catalog.ScanPopularity, 10, catalog.ScanCompleted); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	scanned, err := s.WasAlbumScanned("Artist", "Album", catalog.ScanPopularity, 30)
	if err != nil {
		t.Fatalf("WasAlbumScanned: %v", err)
	}
	if !scanned {
		t.Fatalf("expected album to be recorded as recently scanned")
	}

	recent, err := s.RecentScans(10)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent scan, got %d", len(recent))
	}
}
