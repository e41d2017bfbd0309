// Package fake is an in-memory library.Library implementation used by
// pipeline tests, standing in for the out-of-scope Subsonic adapter.
package fake

import (
	"context"
	"fmt"
	"sync"

	"sptnr-core/library"
)

type Library struct {
	mu      sync.Mutex
	artists []library.LibraryArtist
	albums  map[string][]library.LibraryAlbum // keyed by artist
	tracks  map[string][]library.LibraryTrack // keyed by "artist|album"
	ratings map[string]int                    // keyed by track id
}

func New() *Library {
	return &Library{
		albums:  make(map[string][]library.LibraryAlbum),
		tracks:  make(map[string][]library.LibraryTrack),
		ratings: make(map[string]int),
	}
}

func (l *Library) AddArtist(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.artists = append(l.artists, library.LibraryArtist{Name: name})
}

func (l *Library) AddAlbum(artist string, album library.LibraryAlbum) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.albums[artist] = append(l.albums[artist], album)
}

func (l *Library) AddTrack(artist, album string, track library.LibraryTrack) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := fmt.Sprintf("%s|%s", artist, album)
	l.tracks[key] = append(l.tracks[key], track)
}

func (l *Library) Rating(trackID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.ratings[trackID]
	return v, ok
}

func (l *Library) ListArtists(ctx context.Context) ([]library.LibraryArtist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]library.LibraryArtist(nil), l.artists...), nil
}

func (l *Library) ListAlbums(ctx context.Context, artist string) ([]library.LibraryAlbum, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]library.LibraryAlbum(nil), l.albums[artist]...), nil
}

func (l *Library) ListTracks(ctx context.Context, artist, album string) ([]library.LibraryTrack, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := fmt.Sprintf("%s|%s", artist, album)
	return append([]library.LibraryTrack(nil), l.tracks[key]...), nil
}

func (l *Library) ApplyRating(ctx context.Context, trackID string, stars int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ratings[trackID] = stars
	return nil
}
