// Package library defines the Library interface consumed by the scan
// pipeline: the opaque Subsonic-compatible music server, specified only by
// the four operations spec.md §2.4/§6 names. No HTTP adapter is implemented
// here — the Subsonic adapter is an explicit Non-goal; see library/fake for
// the in-memory test double pipeline tests build against. Grounded on the
// teacher's TrackRepository/ArtistRepository/AlbumRepository interface
// style (library/domain/repositories/library_repository.go), trimmed to the
// four consumed operations.
package library

import "context"

// LibraryArtist is the subset of artist data the Library interface reports.
type LibraryArtist struct {
	Name string
}

// LibraryAlbum is the subset of album data the Library interface reports.
type LibraryAlbum struct {
	Artist      string
	Title       string
	ReleaseDate string
	Type        string
	TrackCount  int
	DiscCount   int
	CoverArtURL string
	Genres      []string
}

// LibraryTrack is the subset of track data the Library interface reports.
type LibraryTrack struct {
	ID          string
	Title       string
	Artist      string
	Album       string
	DurationSec int
	ISRC        string
	FilePath    string
}

// Library is the external collaborator of spec.md §2.4: list_artists,
// list_albums(artist), list_tracks(album), apply_rating(track_id, stars).
type Library interface {
	ListArtists(ctx context.Context) ([]LibraryArtist, error)
	ListAlbums(ctx context.Context, artist string) ([]LibraryAlbum, error)
	ListTracks(ctx context.Context, artist, album string) ([]LibraryTrack, error)
	ApplyRating(ctx context.Context, trackID string, stars int) error
}
