package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sptnr-core/catalog"
	"sptnr-core/shared/apperr"
)

// UpsertAlbum creates the album row on first library_import, identified by
// (artist, album) per spec.md §3, or returns the existing one.
func (s *Store) UpsertAlbum(artistID int64, a catalog.Album) (*catalog.Album, error) {
	artistLC := catalog.NormalizeName(a.Artist)
	titleLC := catalog.NormalizeName(a.Title)

	var existing catalog.Album
	var genresJSON string
	err := s.db.QueryRow(`SELECT id, artist, artist_lc, title, title_lc, release_date, type, track_count, disc_count, cover_art_url, genres, is_live, is_unplugged FROM albums WHERE artist_lc = ? AND title_lc = ?`, artistLC, titleLC).
		Scan(&existing.ID, &existing.Artist, &existing.ArtistLC, &existing.Title, &existing.TitleLC, &existing.ReleaseDate, &existing.Type, &existing.TrackCount, &existing.DiscCount, &existing.CoverArtURL, &genresJSON, &existing.IsLive, &existing.IsUnplugged)
	if err == nil {
		existing.ArtistID = artistID
		json.Unmarshal([]byte(genresJSON), &existing.Genres)
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: looking up album (%q,%q): %v", apperr.ErrStore, a.Artist, a.Title, err)
	}

	genresJSON2, _ := json.Marshal(a.Genres)
	res, err := s.db.Exec(`INSERT INTO albums (artist_id, artist, artist_lc, title, title_lc, release_date, type, track_count, disc_count, cover_art_url, genres, is_live, is_unplugged)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		artistID, a.Artist, artistLC, a.Title, titleLC, a.ReleaseDate, string(a.Type), a.TrackCount, a.DiscCount, a.CoverArtURL, string(genresJSON2), a.IsLive, a.IsUnplugged)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting album (%q,%q): %v", apperr.ErrStore, a.Artist, a.Title, err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.ArtistID = artistID
	a.ArtistLC = artistLC
	a.TitleLC = titleLC
	return &a, nil
}

// TouchAlbumScanned updates an album's last_scanned timestamp.
func (s *Store) TouchAlbumScanned(albumID int64, when time.Time) error {
	_, err := s.db.Exec(`UPDATE albums SET last_scanned=? WHERE id=?`, when, albumID)
	if err != nil {
		return fmt.Errorf("%w: touching album %d: %v", apperr.ErrStore, albumID, err)
	}
	return nil
}
