// Package scrobbles implements the Scrobbles client of spec.md §4.2 over
// github.com/shkh/lastfm-go/lastfm, grounded on llehouerou-waves's
// internal/lastfm client wrapper pattern (api := lastfm.New(key, secret),
// thin method wrappers translating params/results, errors wrapped with
// fmt.Errorf("%w: ...")).
package scrobbles

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shkh/lastfm-go/lastfm"

	"sptnr-core/externalclients"
	"sptnr-core/externalclients/cache"
)

type Client struct {
	api   *lastfm.Api
	cache *cache.LRU

	mu     sync.Mutex
	health externalclients.ClientHealth
}

func New(apiKey string) *Client {
	return &Client{
		api:   lastfm.New(apiKey, ""),
		cache: cache.New(cache.DefaultCapacity),
	}
}

func (c *Client) Health() externalclients.ClientHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

func (c *Client) recordOK() {
	c.mu.Lock()
	c.health.LastOK = time.Now()
	c.health.CircuitOpen = false
	c.mu.Unlock()
}

func (c *Client) recordErr(err error) {
	c.mu.Lock()
	c.health.LastError = time.Now()
	c.health.LastErrMsg = err.Error()
	c.mu.Unlock()
}

// TrackInfo returns {playcount, tags} for (artist, title). Returns a zero
// value on any client error, per spec.md §4.2.
func (c *Client) TrackInfo(artist, title string) externalclients.ScrobbleInfo {
	key := strings.ToLower(artist) + "|" + strings.ToLower(title)
	v, err := c.cache.GetOrLoad(key, func() (interface{}, error) {
		result, err := c.api.Track.GetInfo(lastfm.P{
			"artist": artist,
			"track":  title,
		})
		if err != nil {
			c.recordErr(err)
			return externalclients.ScrobbleInfo{}, nil
		}
		c.recordOK()

		playcount, _ := strconv.Atoi(result.PlayCount)
		tags := make([]externalclients.ScrobbleTag, 0, len(result.TopTags.Tag))
		for _, t := range result.TopTags.Tag {
			count, _ := strconv.Atoi(t.Count)
			tags = append(tags, externalclients.ScrobbleTag{Name: t.Name, Count: count})
		}
		return externalclients.ScrobbleInfo{Playcount: playcount, Tags: tags}, nil
	})
	if err != nil {
		return externalclients.ScrobbleInfo{}
	}
	return v.(externalclients.ScrobbleInfo)
}
