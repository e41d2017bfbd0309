// Package metadataa implements the Metadata-A client of spec.md §4.2: a
// release-group (MusicBrainz-style) lookup service with the version-token
// matching rule for is_single. Grounded on the search/query-building shape
// of other_examples' musicbrainz service (query string assembly, JSON GET,
// a small process-lifetime cache), adapted onto externalclients/httpx + cache.
package metadataa

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"sptnr-core/externalclients"
	"sptnr-core/externalclients/cache"
	"sptnr-core/externalclients/httpx"
)

const baseURL = "https://musicbrainz.org/ws/2"

// versionKeywords is the fixed version-keyword set of spec.md §4.2.
var versionKeywords = map[string]bool{
	"live": true, "acoustic": true, "unplugged": true, "remix": true,
	"edit": true, "demo": true, "instrumental": true, "karaoke": true,
	"remaster": true, "remastered": true, "orchestral": true, "mix": true,
}

var trailingParen = regexp.MustCompile(`\(([^)]*)\)\s*$`)
var trailingDash = regexp.MustCompile(` - ([^-]+)$`)

// VersionTokens extracts the version-token set from a track title's
// trailing "(...)" or " - suffix" segment, per spec.md §4.2.
func VersionTokens(title string) map[string]bool {
	var segment string
	if m := trailingParen.FindStringSubmatch(title); m != nil {
		segment = m[1]
	} else if m := trailingDash.FindStringSubmatch(title); m != nil {
		segment = m[1]
	}
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(segment)) {
		word = strings.Trim(word, ".,!?:;")
		if versionKeywords[word] {
			tokens[word] = true
		}
	}
	return tokens
}

// BaseTitle strips the trailing "(...)" segment used to extract version
// tokens, for matching a release-group's normalized title.
func BaseTitle(title string) string {
	t := trailingParen.ReplaceAllString(title, "")
	t = trailingDash.ReplaceAllString(t, "")
	return strings.ToLower(strings.TrimSpace(t))
}

func tokensEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

type releaseGroupResult struct {
	Title          string   `json:"title"`
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
	FirstRelease   string   `json:"first-release-date"`
}

type searchResponse struct {
	ReleaseGroups []releaseGroupResult `json:"release-groups"`
}

type Client struct {
	userAgent string
	http      *httpx.Client
	cache     *cache.LRU

	mu     sync.Mutex
	health externalclients.ClientHealth
}

func New(userAgent string) *Client {
	return &Client{
		userAgent: userAgent,
		http:      httpx.New(),
		cache:     cache.New(cache.DefaultCapacity),
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

func (c *Client) searchReleaseGroups(ctx context.Context, title, artist string) []releaseGroupResult {
	key := strings.ToLower(artist) + "|" + strings.ToLower(title)
	v, err := c.cache.GetOrLoad(key, func() (interface{}, error) {
		q := fmt.Sprintf(`releasegroup:"%s" AND artist:"%s"`, title, artist)
		reqURL := fmt.Sprintf("%s/release-group?query=%s&fmt=json", baseURL, url.QueryEscape(q))
		var result searchResponse
		if err := c.http.GetJSON(ctx, reqURL, map[string]string{"User-Agent": c.userAgent}, &result); err != nil {
			c.recordErr(err)
			return []releaseGroupResult(nil), nil
		}
		c.recordOK()
		return result.ReleaseGroups, nil
	})
	if err != nil {
		return nil
	}
	return v.([]releaseGroupResult)
}

var bannedSecondary = map[string]bool{"Live": true, "Remix": true, "Compilation": true}

// IsSingle implements spec.md §4.2's Metadata-A single rule.
func (c *Client) IsSingle(ctx context.Context, title, artist string) bool {
	wantTokens := VersionTokens(title)
	wantBase := BaseTitle(title)

	for _, rg := range c.searchReleaseGroups(ctx, title, artist) {
		if BaseTitle(rg.Title) != wantBase {
			continue
		}
		if !tokensEqual(VersionTokens(rg.Title), wantTokens) {
			continue
		}

		// Reject anything with a banned secondary type unless the track's own
		// version tokens require it (e.g. a genuine live recording).
		rejected := false
		for _, sec := range rg.SecondaryTypes {
			if bannedSecondary[sec] && !wantTokens[strings.ToLower(sec)] {
				rejected = true
				break
			}
		}
		if rejected {
			continue
		}

		if rg.PrimaryType == "Single" {
			return true
		}
		if rg.PrimaryType == "EP" && strings.ToLower(strings.TrimSpace(rg.Title)) == wantBase {
			return true
		}
	}
	return false
}

// ReleaseGroup looks up a release-group's metadata by mbid.
func (c *Client) ReleaseGroup(ctx context.Context, mbid string) *externalclients.ReleaseGroup {
	key := "rg:" + mbid
	v, err := c.cache.GetOrLoad(key, func() (interface{}, error) {
		reqURL := fmt.Sprintf("%s/release-group/%s?fmt=json", baseURL, url.PathEscape(mbid))
		var rg releaseGroupResult
		if err := c.http.GetJSON(ctx, reqURL, map[string]string{"User-Agent": c.userAgent}, &rg); err != nil {
			c.recordErr(err)
			return (*externalclients.ReleaseGroup)(nil), nil
		}
		c.recordOK()
		return &externalclients.ReleaseGroup{
			PrimaryType:      rg.PrimaryType,
			SecondaryTypes:   rg.SecondaryTypes,
			FirstReleaseDate: rg.FirstRelease,
		}, nil
	})
	if err != nil {
		return nil
	}
	return v.(*externalclients.ReleaseGroup)
}
