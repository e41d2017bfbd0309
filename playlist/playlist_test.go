package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"sptnr-core/catalog"
	"sptnr-core/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTracks(t *testing.T, s *store.Store, artist string, n int, stars int) {
	t.Helper()
	ar, err := s.UpsertArtist(artist)
	if err != nil {
		t.Fatalf("UpsertArtist: %v", err)
	}
	al, err := s.UpsertAlbum(ar.ID, catalog.Album{Artist: artist, Title: "Album"})
	if err != nil {
		t.Fatalf("UpsertAlbum: %v", err)
	}
	var singles []store.SinglesUpdate
	for i := 0; i < n; i++ {
		tr := &catalog.Track{LibraryID: "lib", Artist: artist, Album: "Album", Title: fmt.Sprintf("Song %d", i)}
		got, err := s.UpsertTrack(al.ID, tr)
		if err != nil {
			t.Fatalf("UpsertTrack: %v", err)
		}
		singles = append(singles, store.SinglesUpdate{TrackID: got.ID, Stars: stars})
	}
	if err := s.BatchUpdateSingles(singles); err != nil {
		t.Fatalf("BatchUpdateSingles: %v", err)
	}
}

func TestGenerateSkipsWhenBelowBothThresholds(t *testing.T) {
	s := openTestStore(t)
	seedTracks(t, s, "Small Artist", 3, 5)

	dir := t.TempDir()
	w := New(dir)
	if err := w.Generate(context.Background(), s, "Small Artist"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no playlist written, got %v", entries)
	}
}

func TestGenerateFiveStarCaseWritesFiveStarSet(t *testing.T) {
	s := openTestStore(t)
	seedTracks(t, s, "Big Artist", 12, 5)

	dir := t.TempDir()
	w := New(dir)
	if err := w.Generate(context.Background(), s, "Big Artist"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Big Artist.nsp"))
	if err != nil {
		t.Fatalf("reading playlist: %v", err)
	}
	var doc nspDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshaling playlist: %v", err)
	}
	if len(doc.Rules["id"].Is) != 12 {
		t.Fatalf("expected 12 tracks in five-star playlist, got %d", len(doc.Rules["id"].Is))
	}
}

func TestGenerateTopTenPercentCaseWhenNoFiveStarSet(t *testing.T) {
	s := openTestStore(t)
	seedTracks(t, s, "Prolific Artist", 120, 3)

	dir := t.TempDir()
	w := New(dir)
	if err := w.Generate(context.Background(), s, "Prolific Artist"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Prolific Artist.nsp"))
	if err != nil {
		t.Fatalf("reading playlist: %v", err)
	}
	var doc nspDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshaling playlist: %v", err)
	}
	if len(doc.Rules["id"].Is) != 12 {
		t.Fatalf("expected top 10%% of 120 = 12 tracks, got %d", len(doc.Rules["id"].Is))
	}
}

func TestGenerateIsIdempotentOverwrite(t *testing.T) {
	s := openTestStore(t)
	seedTracks(t, s, "Repeat Artist", 10, 5)

	dir := t.TempDir()
	w := New(dir)
	if err := w.Generate(context.Background(), s, "Repeat Artist"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := w.Generate(context.Background(), s, "Repeat Artist"); err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one playlist file after two runs, got %d", len(entries))
	}
}
