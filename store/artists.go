package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"sptnr-core/catalog"
	"sptnr-core/shared/apperr"
)

// UpsertArtist creates the artist row on first library_import or returns the
// existing one, keyed by the case-insensitive normalized name.
func (s *Store) UpsertArtist(name string) (*catalog.Artist, error) {
	nameLC := catalog.NormalizeName(name)

	var a catalog.Artist
	var genresJSON, idsJSON string
	err := s.db.QueryRow(`SELECT id, name, name_lc, genres, external_ids, popularity_mean, popularity_median, popularity_stddev, stats_track_count FROM artists WHERE name_lc = ?`, nameLC).
		Scan(&a.ID, &a.Name, &a.NameLC, &genresJSON, &idsJSON, &a.PopularityMean, &a.PopularityMedian, &a.PopularityStddev, &a.StatsTrackCount)
	if err == nil {
		json.Unmarshal([]byte(genresJSON), &a.Genres)
		json.Unmarshal([]byte(idsJSON), &a.ExternalIDs)
		return &a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: looking up artist %q: %v", apperr.ErrStore, name, err)
	}

	res, err := s.db.Exec(`INSERT INTO artists (name, name_lc) VALUES (?, ?)`, name, nameLC)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting artist %q: %v", apperr.ErrStore, name, err)
	}
	id, _ := res.LastInsertId()
	return &catalog.Artist{ID: id, Name: name, NameLC: nameLC}, nil
}

// ArtistStats is the aggregate-statistics result of get_artist_stats.
type ArtistStats struct {
	Mean       float64
	Median     float64
	Stddev     float64
	TrackCount int
}

// GetArtistStats returns the persisted aggregate popularity statistics for
// an artist (read contract, spec.md §4.3).
func (s *Store) GetArtistStats(artist string) (*ArtistStats, error) {
	nameLC := catalog.NormalizeName(artist)
	var st ArtistStats
	err := s.db.QueryRow(`SELECT popularity_mean, popularity_median, popularity_stddev, stats_track_count FROM artists WHERE name_lc = ?`, nameLC).
		Scan(&st.Mean, &st.Median, &st.Stddev, &st.TrackCount)
	if err == sql.ErrNoRows {
		return &ArtistStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading artist stats for %q: %v", apperr.ErrStore, artist, err)
	}
	return &st, nil
}

// UpdateArtistStats persists the recomputed artist-level popularity
// statistics (the pipeline's "compute/refresh artist stats" step, §4.6).
func (s *Store) UpdateArtistStats(artistID int64, st ArtistStats) error {
	_, err := s.db.Exec(`UPDATE artists SET popularity_mean=?, popularity_median=?, popularity_stddev=?, stats_track_count=? WHERE id=?`,
		st.Mean, st.Median, st.Stddev, st.TrackCount, artistID)
	if err != nil {
		return fmt.Errorf("%w: updating artist stats for id %d: %v", apperr.ErrStore, artistID, err)
	}
	return nil
}

// UpdateArtistExternalID sets one of the artist's cached external ids
// (resolved once per artist per scan, per spec.md §4.6).
func (s *Store) UpdateArtistExternalID(artistID int64, field string, value string) error {
	var ids catalog.ExternalIDs
	var idsJSON string
	if err := s.db.QueryRow(`SELECT external_ids FROM artists WHERE id=?`, artistID).Scan(&idsJSON); err != nil {
		return fmt.Errorf("%w: reading external ids for artist %d: %v", apperr.ErrStore, artistID, err)
	}
	json.Unmarshal([]byte(idsJSON), &ids)

	switch field {
	case "popularity":
		ids.Popularity = &value
	case "scrobbles":
		ids.Scrobbles = &value
	case "metadata_a":
		ids.MetadataA = &value
	case "metadata_b":
		ids.MetadataB = &value
	}

	data, _ := json.Marshal(ids)
	_, err := s.db.Exec(`UPDATE artists SET external_ids=? WHERE id=?`, string(data), artistID)
	if err != nil {
		return fmt.Errorf("%w: updating external ids for artist %d: %v", apperr.ErrStore, artistID, err)
	}
	return nil
}
