package store

import "fmt"

import "sptnr-core/shared/apperr"

// migrate applies the idempotent CREATE TABLE IF NOT EXISTS schema, then a
// list of idempotent ALTER TABLE ADD COLUMN steps. Any statement error other
// than an already-present column stops it with ErrStore. It does not compare
// an existing database's tables with baseSchema, so an existing table whose
// columns differ in type or constraints is left as it is.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(baseSchema); err != nil {
		return fmt.Errorf("%w: applying base schema: %v", apperr.ErrStore, err)
	}
	for _, stmt := range alterColumns {
		if _, err := s.db.Exec(stmt); err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("%w: applying migration %q: %v", apperr.ErrStore, stmt, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && containsAny(err.Error(), "duplicate column name", "already exists")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS artists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	name_lc TEXT NOT NULL UNIQUE,
	genres TEXT NOT NULL DEFAULT '[]',
	external_ids TEXT NOT NULL DEFAULT '{}',
	popularity_mean REAL NOT NULL DEFAULT 0,
	popularity_median REAL NOT NULL DEFAULT 0,
	popularity_stddev REAL NOT NULL DEFAULT 0,
	stats_track_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS albums (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
	artist TEXT NOT NULL,
	artist_lc TEXT NOT NULL,
	title TEXT NOT NULL,
	title_lc TEXT NOT NULL,
	release_date TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'album',
	track_count INTEGER NOT NULL DEFAULT 0,
	disc_count INTEGER NOT NULL DEFAULT 1,
	cover_art_url TEXT NOT NULL DEFAULT '',
	genres TEXT NOT NULL DEFAULT '[]',
	notes TEXT NOT NULL DEFAULT '',
	metadata_a_release_id TEXT NOT NULL DEFAULT '',
	metadata_b_release_id TEXT NOT NULL DEFAULT '',
	last_scanned DATETIME,
	is_live INTEGER NOT NULL DEFAULT 0,
	is_unplugged INTEGER NOT NULL DEFAULT 0,
	UNIQUE(artist_lc, title_lc)
);

CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);

CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	library_id TEXT NOT NULL,
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	title_lc TEXT NOT NULL,
	artist TEXT NOT NULL,
	artist_lc TEXT NOT NULL,
	album TEXT NOT NULL,
	album_lc TEXT NOT NULL,
	duration_sec INTEGER NOT NULL DEFAULT 0,
	isrc TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	external_ids TEXT NOT NULL DEFAULT '{}',
	popularity_score REAL NOT NULL DEFAULT 0,
	stars INTEGER NOT NULL DEFAULT 0,
	is_single INTEGER NOT NULL DEFAULT 0,
	single_confidence TEXT NOT NULL DEFAULT 'none',
	single_sources TEXT NOT NULL DEFAULT '[]',
	album_z REAL,
	artist_z REAL,
	alternate_take INTEGER NOT NULL DEFAULT 0,
	base_track_id INTEGER REFERENCES tracks(id) ON DELETE SET NULL,
	last_popularity_lookup DATETIME,
	last_scanned DATETIME,
	UNIQUE(artist_lc, album_lc, title_lc, duration_sec)
);

CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_tracks_content_key ON tracks(artist_lc, album_lc, title_lc, duration_sec);

CREATE TABLE IF NOT EXISTS scan_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	scan_type TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	tracks_processed INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_history_album ON scan_history(artist, album, scan_type, timestamp);

CREATE TABLE IF NOT EXISTS loved_tracks (
	track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
	username TEXT NOT NULL,
	loved_at DATETIME NOT NULL,
	PRIMARY KEY (track_id, username)
);

CREATE TABLE IF NOT EXISTS loved_albums (
	album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	username TEXT NOT NULL,
	loved_at DATETIME NOT NULL,
	PRIMARY KEY (album_id, username)
);

CREATE TABLE IF NOT EXISTS loved_artists (
	artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
	username TEXT NOT NULL,
	loved_at DATETIME NOT NULL,
	PRIMARY KEY (artist_id, username)
);
`

// alterColumns holds idempotent additive migrations applied after the base
// schema — the path for evolving a compiled-in schema version without a
// destructive rebuild, per spec.md §9's "idempotent ALTERs".
var alterColumns = []string{
	// Reserved for future additive columns; applied in order, each ignored
	// if already present (see isDuplicateColumn).
}
