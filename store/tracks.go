package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"sptnr-core/catalog"
	"sptnr-core/shared/apperr"
)

type trackRow struct {
	id                   int64
	libraryID            string
	title, titleLC       string
	artist, artistLC     string
	album, albumLC       string
	durationSec          int
	isrc, filePath       string
	externalIDsJSON      string
	popularityScore      float64
	stars                int
	isSingle             bool
	singleConfidence     string
	singleSourcesJSON    string
	albumZ, artistZ      sql.NullFloat64
	alternateTake        bool
	baseTrackID          sql.NullInt64
	lastPopularityLookup sql.NullTime
	lastScanned          sql.NullTime
}

func (r trackRow) toCatalog() *catalog.Track {
	t := &catalog.Track{
		ID: r.id, LibraryID: r.libraryID,
		Title: r.title, TitleLC: r.titleLC,
		Artist: r.artist, ArtistLC: r.artistLC,
		Album: r.album, AlbumLC: r.albumLC,
		DurationSec: r.durationSec, ISRC: r.isrc, FilePath: r.filePath,
		PopularityScore: r.popularityScore, Stars: r.stars,
		IsSingle:         r.isSingle,
		SingleConfidence: catalog.SingleConfidence(r.singleConfidence),
		AlternateTake:    r.alternateTake,
	}
	json.Unmarshal([]byte(r.externalIDsJSON), &t.ExternalIDs)
	json.Unmarshal([]byte(r.singleSourcesJSON), &t.SingleSources)
	if r.albumZ.Valid {
		t.AlbumZ = &r.albumZ.Float64
	}
	if r.artistZ.Valid {
		t.ArtistZ = &r.artistZ.Float64
	}
	if r.baseTrackID.Valid {
		t.BaseTrackID = &r.baseTrackID.Int64
	}
	if r.lastPopularityLookup.Valid {
		t.LastPopularityLookup = r.lastPopularityLookup.Time
	}
	if r.lastScanned.Valid {
		t.LastScanned = r.lastScanned.Time
	}
	return t
}

const trackColumns = `id, library_id, title, title_lc, artist, artist_lc, album, album_lc,
	duration_sec, isrc, file_path, external_ids, popularity_score, stars, is_single,
	single_confidence, single_sources, album_z, artist_z, alternate_take, base_track_id,
	last_popularity_lookup, last_scanned`

func scanTrack(scanner interface {
	Scan(...interface{}) error
}) (*trackRow, error) {
	var r trackRow
	err := scanner.Scan(&r.id, &r.libraryID, &r.title, &r.titleLC, &r.artist, &r.artistLC, &r.album, &r.albumLC,
		&r.durationSec, &r.isrc, &r.filePath, &r.externalIDsJSON, &r.popularityScore, &r.stars, &r.isSingle,
		&r.singleConfidence, &r.singleSourcesJSON, &r.albumZ, &r.artistZ, &r.alternateTake, &r.baseTrackID,
		&r.lastPopularityLookup, &r.lastScanned)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// metadataQuality computes the merge-tiebreak score of spec.md §4.3.
func metadataQuality(t *catalog.Track) int {
	score := 0
	if t.ExternalIDs.MetadataA != nil && *t.ExternalIDs.MetadataA != "" {
		score += 500
	}
	if t.ExternalIDs.MetadataB != nil && *t.ExternalIDs.MetadataB != "" {
		score += 200
	}
	if t.FilePath != "" {
		score += 200
	}
	if t.DurationSec > 0 {
		score += 50
	}
	if t.PopularityScore > 0 {
		score += 30
	}
	if t.IsSingle {
		score += 20
	}
	if t.Stars > 0 {
		score += 10
	}
	return score
}

// mergeInto copies every non-null field of loser into winner where winner's
// corresponding field is the zero value, per spec.md §4.3: "merge non-null
// fields from the loser into the winner before deleting the loser." It
// never overwrites is_single/single_confidence/single_sources/stars from a
// plain library-import merge — those are only ever set by the caller
// explicitly via the popularity-scan write path.
func mergeInto(winner, loser *catalog.Track) {
	if winner.ISRC == "" {
		winner.ISRC = loser.ISRC
	}
	if winner.FilePath == "" {
		winner.FilePath = loser.FilePath
	}
	if winner.ExternalIDs.MetadataA == nil {
		winner.ExternalIDs.MetadataA = loser.ExternalIDs.MetadataA
	}
	if winner.ExternalIDs.MetadataB == nil {
		winner.ExternalIDs.MetadataB = loser.ExternalIDs.MetadataB
	}
	if winner.ExternalIDs.Popularity == nil {
		winner.ExternalIDs.Popularity = loser.ExternalIDs.Popularity
	}
	if winner.ExternalIDs.Scrobbles == nil {
		winner.ExternalIDs.Scrobbles = loser.ExternalIDs.Scrobbles
	}
	if winner.PopularityScore == 0 {
		winner.PopularityScore = loser.PopularityScore
	}
	if winner.Stars == 0 {
		winner.Stars = loser.Stars
	}
	if !winner.IsSingle {
		winner.IsSingle = loser.IsSingle
	}
	if winner.SingleConfidence == "" {
		winner.SingleConfidence = loser.SingleConfidence
	}
	if len(winner.SingleSources) == 0 {
		winner.SingleSources = loser.SingleSources
	}
}

// UpsertTrack implements spec.md §4.3's write contract: lookup by content
// key, insert if absent, or merge-and-keep-the-higher-quality row if a
// collision is found. The content key treats durations within ±2 seconds
// as colliding (spec.md §3), so this does a candidate scan over exact and
// near-duration rows rather than a single unique-index insert.
func (s *Store) UpsertTrack(albumID int64, t *catalog.Track) (*catalog.Track, error) {
	artistLC := catalog.NormalizeName(t.Artist)
	albumLC := catalog.NormalizeName(t.Album)
	titleLC := catalog.NormalizeName(t.Title)
	duration := int(math.Round(float64(t.DurationSec)))

	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks
		WHERE artist_lc=? AND album_lc=? AND title_lc=? AND duration_sec BETWEEN ? AND ?`,
		artistLC, albumLC, titleLC, duration-2, duration+2)
	if err != nil {
		return nil, fmt.Errorf("%w: querying content key for %q: %v", apperr.ErrStore, t.Title, err)
	}
	var candidates []*catalog.Track
	for rows.Next() {
		r, err := scanTrack(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning candidate track: %v", apperr.ErrStore, err)
		}
		candidates = append(candidates, r.toCatalog())
	}
	rows.Close()

	if len(candidates) == 0 {
		externalIDs, _ := json.Marshal(t.ExternalIDs)
		sources, _ := json.Marshal(t.SingleSources)
		res, err := s.db.Exec(`INSERT INTO tracks (library_id, album_id, title, title_lc, artist, artist_lc, album, album_lc,
			duration_sec, isrc, file_path, external_ids, popularity_score, stars, is_single, single_confidence, single_sources, last_scanned)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.LibraryID, albumID, t.Title, titleLC, t.Artist, artistLC, t.Album, albumLC,
			t.DurationSec, t.ISRC, t.FilePath, string(externalIDs), t.PopularityScore, t.Stars, t.IsSingle,
			string(t.SingleConfidence), string(sources), time.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: inserting track %q: %v", apperr.ErrStore, t.Title, err)
		}
		id, _ := res.LastInsertId()
		t.ID = id
		return t, nil
	}

	winner := candidates[0]
	winnerScore := metadataQuality(winner)
	for _, cand := range candidates[1:] {
		if score := metadataQuality(cand); score > winnerScore ||
			(score == winnerScore && cand.LastScanned.After(winner.LastScanned)) {
			winner, winnerScore = cand, score
		}
	}
	// The incoming import is itself a candidate in the merge.
	if score := metadataQuality(t); score > winnerScore ||
		(score == winnerScore && t.LastScanned.After(winner.LastScanned)) {
		mergeInto(t, winner)
		t.ID = winner.ID
		winner = t
	} else {
		mergeInto(winner, t)
	}

	for _, cand := range candidates {
		if cand.ID != winner.ID {
			if _, err := s.db.Exec(`DELETE FROM tracks WHERE id=?`, cand.ID); err != nil {
				return nil, fmt.Errorf("%w: deleting merge loser %d: %v", apperr.ErrStore, cand.ID, err)
			}
		}
	}

	externalIDs, _ := json.Marshal(winner.ExternalIDs)
	sources, _ := json.Marshal(winner.SingleSources)
	_, err = s.db.Exec(`UPDATE tracks SET library_id=?, album_id=?, isrc=?, file_path=?, external_ids=?,
		popularity_score=?, stars=?, is_single=?, single_confidence=?, single_sources=?, last_scanned=? WHERE id=?`,
		winner.LibraryID, albumID, winner.ISRC, winner.FilePath, string(externalIDs),
		winner.PopularityScore, winner.Stars, winner.IsSingle, string(winner.SingleConfidence), string(sources), time.Now(), winner.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: writing merged track %d: %v", apperr.ErrStore, winner.ID, err)
	}
	return winner, nil
}

// PopularityUpdate is one row of batch_update_popularity.
type PopularityUpdate struct {
	TrackID              int64
	PopularityScore      float64
	AlbumZ, ArtistZ      *float64
	LastPopularityLookup time.Time
}

// BatchUpdatePopularity atomically updates popularity_score/album_z/artist_z/
// last_popularity_lookup for a batch of tracks, per spec.md §4.3. It never
// moves last_popularity_lookup backward (spec.md §3 invariant).
func (s *Store) BatchUpdatePopularity(rows []PopularityUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning popularity batch: %v", apperr.ErrStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE tracks SET popularity_score=?, album_z=?, artist_z=?,
		last_popularity_lookup=? WHERE id=? AND (last_popularity_lookup IS NULL OR last_popularity_lookup <= ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing popularity batch: %v", apperr.ErrStore, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.PopularityScore, nullableFloat(r.AlbumZ), nullableFloat(r.ArtistZ), r.LastPopularityLookup, r.TrackID, r.LastPopularityLookup); err != nil {
			return fmt.Errorf("%w: updating popularity for track %d: %v", apperr.ErrStore, r.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing popularity batch: %v", apperr.ErrStore, err)
	}
	return nil
}

// SinglesUpdate is one row of batch_update_singles.
type SinglesUpdate struct {
	TrackID          int64
	IsSingle         bool
	SingleConfidence catalog.SingleConfidence
	SingleSources    []string
	Stars            int
}

// BatchUpdateSingles atomically updates is_single/single_confidence/
// single_sources/stars for a batch of tracks.
func (s *Store) BatchUpdateSingles(rows []SinglesUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning singles batch: %v", apperr.ErrStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE tracks SET is_single=?, single_confidence=?, single_sources=?, stars=? WHERE id=?`)
	if err != nil {
		return fmt.Errorf("%w: preparing singles batch: %v", apperr.ErrStore, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		sources, _ := json.Marshal(r.SingleSources)
		if _, err := stmt.Exec(r.IsSingle, string(r.SingleConfidence), string(sources), r.Stars, r.TrackID); err != nil {
			return fmt.Errorf("%w: updating singles for track %d: %v", apperr.ErrStore, r.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing singles batch: %v", apperr.ErrStore, err)
	}
	return nil
}

// AlternateTakeUpdate is one row of batch_update_alternate_takes, the
// detector's §4.4 preprocessing output (alternate_take/base_track_id).
type AlternateTakeUpdate struct {
	TrackID       int64
	AlternateTake bool
	BaseTrackID   *int64
}

// BatchUpdateAlternateTakes persists the preprocessing output of an album's
// trailing-parenthesis/alternate-take detection.
func (s *Store) BatchUpdateAlternateTakes(rows []AlternateTakeUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning alternate-take batch: %v", apperr.ErrStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE tracks SET alternate_take=?, base_track_id=? WHERE id=?`)
	if err != nil {
		return fmt.Errorf("%w: preparing alternate-take batch: %v", apperr.ErrStore, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var baseID interface{}
		if r.BaseTrackID != nil {
			baseID = *r.BaseTrackID
		}
		if _, err := stmt.Exec(r.AlternateTake, baseID, r.TrackID); err != nil {
			return fmt.Errorf("%w: updating alternate-take for track %d: %v", apperr.ErrStore, r.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing alternate-take batch: %v", apperr.ErrStore, err)
	}
	return nil
}

// GetAlbumTracks returns an album's tracks ordered by popularity descending,
// the order the detector's preprocessing requires (spec.md §4.4).
func (s *Store) GetAlbumTracks(artist, album string) ([]*catalog.Track, error) {
	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks WHERE artist_lc=? AND album_lc=? ORDER BY popularity_score DESC`,
		catalog.NormalizeName(artist), catalog.NormalizeName(album))
	if err != nil {
		return nil, fmt.Errorf("%w: reading album tracks for (%q,%q): %v", apperr.ErrStore, artist, album, err)
	}
	defer rows.Close()
	return scanAllTracks(rows)
}

// GetArtistTracks returns all of an artist's tracks.
func (s *Store) GetArtistTracks(artist string) ([]*catalog.Track, error) {
	rows, err := s.db.Query(`SELECT `+trackColumns+` FROM tracks WHERE artist_lc=? ORDER BY popularity_score DESC`,
		catalog.NormalizeName(artist))
	if err != nil {
		return nil, fmt.Errorf("%w: reading artist tracks for %q: %v", apperr.ErrStore, artist, err)
	}
	defer rows.Close()
	return scanAllTracks(rows)
}

func scanAllTracks(rows *sql.Rows) ([]*catalog.Track, error) {
	var out []*catalog.Track
	for rows.Next() {
		r, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning track row: %v", apperr.ErrStore, err)
		}
		out = append(out, r.toCatalog())
	}
	return out, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
