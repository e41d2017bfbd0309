// Package metadatab implements the Metadata-B client of spec.md §4.2: a
// release-format/video lookup service (find_release, is_single,
// has_official_video), bearer-token authenticated, over externalclients/httpx.
package metadatab

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jhprks/damerau"

	"sptnr-core/externalclients"
	"sptnr-core/externalclients/cache"
	"sptnr-core/externalclients/httpx"
)

const baseURL = "https://api.discogs.com"

type releaseResult struct {
	Formats []struct {
		Name         string   `json:"name"`
		Descriptions []string `json:"descriptions"`
	} `json:"formats"`
	Tracklist []struct {
		Title    string `json:"title"`
		Duration string `json:"duration"` // "M:SS"
	} `json:"tracklist"`
	Videos []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"videos"`
	MasterID int    `json:"master_id"`
	Year     string `json:"year"`
	Labels   []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Country string `json:"country"`
	Notes   string `json:"notes"`
}

type searchResponse struct {
	Results []struct {
		ID   int    `json:"id"`
		Type string `json:"type"`
	} `json:"results"`
}

type Client struct {
	token string
	http  *httpx.Client
	cache *cache.LRU

	mu     sync.Mutex
	health externalclients.ClientHealth
}

func New(token string) *Client {
	return &Client{
		token: token,
		http:  httpx.New(),
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

func (c *Client) authHeader() map[string]string {
	return map[string]string{"Authorization": "Discogs token=" + c.token}
}

// FindRelease implements find_release(title, artist, duration?).
func (c *Client) FindRelease(ctx context.Context, title, artist string, durationSec int) *externalclients.Release {
	key := strings.ToLower(artist) + "|" + strings.ToLower(title)
	v, err := c.cache.GetOrLoad(key, func() (interface{}, error) {
		q := fmt.Sprintf("%s %s", artist, title)
		reqURL := fmt.Sprintf("%s/database/search?q=%s&type=release", baseURL, url.QueryEscape(q))
		var search searchResponse
		if err := c.http.GetJSON(ctx, reqURL, c.authHeader(), &search); err != nil {
			c.recordErr(err)
			return (*externalclients.Release)(nil), nil
		}
		if len(search.Results) == 0 {
			c.recordOK()
			return (*externalclients.Release)(nil), nil
		}

		relURL := fmt.Sprintf("%s/releases/%d", baseURL, search.Results[0].ID)
		var rel releaseResult
		if err := c.http.GetJSON(ctx, relURL, c.authHeader(), &rel); err != nil {
			c.recordErr(err)
			return (*externalclients.Release)(nil), nil
		}
		c.recordOK()
		return toRelease(rel), nil
	})
	if err != nil {
		return nil
	}
	return v.(*externalclients.Release)
}

func toRelease(rel releaseResult) *externalclients.Release {
	formats := make([]string, 0, len(rel.Formats))
	isPromo := false
	for _, f := range rel.Formats {
		formats = append(formats, f.Name)
		for _, d := range f.Descriptions {
			formats = append(formats, d)
			if strings.EqualFold(d, "promo") {
				isPromo = true
			}
		}
	}
	tracks := make([]externalclients.ReleaseTrack, 0, len(rel.Tracklist))
	for _, t := range rel.Tracklist {
		tracks = append(tracks, externalclients.ReleaseTrack{Title: t.Title, DurationSec: parseDiscogsDuration(t.Duration)})
	}
	videos := make([]externalclients.ReleaseVideo, 0, len(rel.Videos))
	for _, v := range rel.Videos {
		videos = append(videos, externalclients.ReleaseVideo{Title: v.Title, Description: v.Description})
	}
	label := ""
	if len(rel.Labels) > 0 {
		label = rel.Labels[0].Name
	}
	return &externalclients.Release{
		Formats:   formats,
		Tracklist: tracks,
		Videos:    videos,
		MasterID:  fmt.Sprintf("%d", rel.MasterID),
		Year:      rel.Year,
		Label:     label,
		Country:   rel.Country,
		Promo:     isPromo,
	}
}

func parseDiscogsDuration(s string) int {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0
	}
	var m, sec int
	fmt.Sscanf(parts[0], "%d", &m)
	fmt.Sscanf(parts[1], "%d", &sec)
	return m*60 + sec
}

var punctAndBracket = regexp.MustCompile(`[^a-z0-9 ]|\([^)]*\)\s*$|\[[^\]]*\]\s*$`)

func normalizeTitle(title string) string {
	return strings.TrimSpace(punctAndBracket.ReplaceAllString(strings.ToLower(title), ""))
}

// IsSingle implements spec.md §4.2's Metadata-B single rule. durationSec, if
// known, is matched against the located release's tracklist (exact
// normalized title or duration within ±2 seconds) before the release is
// trusted for this track — otherwise a same-named single by an unrelated
// release could confirm a track that isn't actually on it.
func (c *Client) IsSingle(ctx context.Context, title, artist string, durationSec int, isLive, isUnplugged bool) bool {
	rel := c.FindRelease(ctx, title, artist, durationSec)
	if rel == nil {
		return false
	}
	if !trackInRelease(rel, title, durationSec) {
		return false
	}

	for _, f := range rel.Formats {
		if strings.Contains(f, "Single") || strings.Contains(f, "Maxi-Single") {
			return true
		}
	}
	if len(rel.Tracklist) >= 1 && len(rel.Tracklist) <= 2 {
		return true
	}
	if rel.Promo && len(rel.Tracklist) >= 1 && len(rel.Tracklist) <= 2 {
		return true
	}
	if rel.MasterIsSingle {
		return true
	}
	return false
}

// trackInRelease implements spec.md §4.2's track-in-release match: the
// located release is only trusted for this track if one of its tracklist
// entries is an exact normalized-title match or within ±2 seconds duration.
func trackInRelease(rel *externalclients.Release, title string, durationSec int) bool {
	cleaned := normalizeTitle(title)
	for _, tr := range rel.Tracklist {
		if normalizeTitle(tr.Title) == cleaned {
			return true
		}
		if durationSec > 0 && tr.DurationSec > 0 && absInt(tr.DurationSec-durationSec) <= 2 {
			return true
		}
	}
	return false
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var bannedVideoFlavors = []string{"remix"}

// HasOfficialVideo implements spec.md §4.2's video signal rule.
func (c *Client) HasOfficialVideo(ctx context.Context, title, artist string, isLive bool) bool {
	rel := c.FindRelease(ctx, title, artist, 0)
	if rel == nil {
		return false
	}

	cleanedTrack := normalizeTitle(title)
	for _, vid := range rel.Videos {
		text := strings.ToLower(vid.Title + " " + vid.Description)
		if !strings.Contains(text, "official") && !strings.Contains(text, "lyric") {
			continue
		}
		banned := false
		for _, flavor := range bannedVideoFlavors {
			if strings.Contains(text, flavor) {
				banned = true
			}
		}
		if strings.Contains(text, "live") && !isLive {
			banned = true
		}
		if banned {
			continue
		}

		cleanedVid := normalizeTitle(vid.Title)
		if fuzzyRatio(cleanedVid, cleanedTrack) >= 0.50 {
			return true
		}
	}
	return false
}

// fuzzyRatio normalizes Damerau-Levenshtein edit distance into a 0..1
// similarity ratio, matching spec.md §4.2's "fuzzy ratio ≥ 0.50" language.
func fuzzyRatio(a, b string) float64 {
	maxLen := math.Max(float64(len([]rune(a))), float64(len([]rune(b))))
	if maxLen == 0 {
		return 1
	}
	dist := damerau.DamerauLevenshteinDistance(a, b)
	return 1 - float64(dist)/maxLen
}
