// Package playlist implements the "essential playlist" contract of spec.md
// §6: when an artist finishes scanning, if it has >= 10 five-star tracks or
// >= 100 total tracks, write a Navidrome-compatible .nsp (smart playlist,
// JSON) file naming either the five-star set (case A) or the top-10%-by-
// rating set (case B). Writes are idempotent overwrites of a deterministic
// path, so re-running a scan never accumulates stale files.
package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sptnr-core/catalog"
	"sptnr-core/store"
)

const (
	fiveStarThreshold = 10
	totalThreshold    = 100
	topPercent        = 0.10
)

// nspRule is the subset of Navidrome's smart-playlist rule grammar sptnr-core
// needs: an explicit membership test over library track IDs. Navidrome
// resolves "id" against its own library_id column, which mirrors
// catalog.Track.LibraryID.
type nspRule struct {
	Is []string `json:"is"`
}

type nspDocument struct {
	Name    string             `json:"name"`
	Comment string             `json:"comment"`
	Rules   map[string]nspRule `json:"rules"`
	Order   string             `json:"order"`
}

// Writer emits .nsp files under a configured directory.
type Writer struct {
	Dir string
}

// New returns a Writer rooted at dir. dir is created on first Generate call.
func New(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Generate matches the pipeline.EmitPlaylist hook signature, so main wires
// it with `pipeline.EmitPlaylist = playlist.New(cfg.PlaylistDir).Generate`.
func (w *Writer) Generate(ctx context.Context, s *store.Store, artist string) error {
	if w.Dir == "" {
		return nil
	}

	tracks, err := s.GetArtistTracks(artist)
	if err != nil {
		return fmt.Errorf("loading tracks for %s: %w", artist, err)
	}

	fiveStar := filterStars(tracks, 5)

	var selected []*catalog.Track
	var comment string

	switch {
	case len(fiveStar) >= fiveStarThreshold:
		selected = fiveStar
		comment = "five-star tracks"
	case len(tracks) >= totalThreshold:
		selected = topByRating(tracks, topPercent)
		comment = "top 10% by rating"
	default:
		return nil
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("creating playlist directory %s: %w", w.Dir, err)
	}

	doc := buildDocument(artist, comment, selected)
	path := filepath.Join(w.Dir, fileName(artist))
	return writeAtomic(path, doc)
}

func filterStars(tracks []*catalog.Track, stars int) []*catalog.Track {
	var out []*catalog.Track
	for _, t := range tracks {
		if t.Stars == stars {
			out = append(out, t)
		}
	}
	return out
}

// topByRating returns the top pct fraction of tracks ordered by stars then
// popularity score, both descending, so ties resolve deterministically.
func topByRating(tracks []*catalog.Track, pct float64) []*catalog.Track {
	sorted := make([]*catalog.Track, len(tracks))
	copy(sorted, tracks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Stars != sorted[j].Stars {
			return sorted[i].Stars > sorted[j].Stars
		}
		if sorted[i].PopularityScore != sorted[j].PopularityScore {
			return sorted[i].PopularityScore > sorted[j].PopularityScore
		}
		return sorted[i].TitleLC < sorted[j].TitleLC
	})

	n := int(float64(len(sorted)) * pct)
	if n < 1 {
		n = 1
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func buildDocument(artist, comment string, tracks []*catalog.Track) nspDocument {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		id := t.LibraryID
		if id == "" {
			id = fmt.Sprintf("%d", t.ID)
		}
		ids = append(ids, id)
	}
	return nspDocument{
		Name:    fmt.Sprintf("%s — Essential", artist),
		Comment: comment,
		Rules:   map[string]nspRule{"id": {Is: ids}},
		Order:   "rating",
	}
}

// fileName derives a filesystem-safe name from the artist so repeated runs
// land on the same path, satisfying the idempotent-overwrite requirement.
func fileName(artist string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, artist)
	return safe + ".nsp"
}

// writeAtomic writes doc to path via a temp-file-then-rename so a crash mid
// write never leaves a truncated .nsp behind for Navidrome to pick up.
func writeAtomic(path string, doc nspDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling playlist: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
