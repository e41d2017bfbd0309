// Package popularity implements the Popularity client of spec.md §4.2:
// OAuth2 client-credentials auth, artist search, and track search returning
// candidates with a 0-100 popularity figure and album type.
package popularity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sptnr-core/externalclients"
	"sptnr-core/externalclients/cache"
	"sptnr-core/externalclients/httpx"
)

const baseURL = "https://api.spotify.com/v1"
const authURL = "https://accounts.spotify.com/api/token"

// Client is the Popularity external client. ClientID/ClientSecret come from
// config.API.Popularity; health and cache are held per-instance (Services
// constructs exactly one, per spec.md §9's "single Services struct").
type Client struct {
	clientID     string
	clientSecret string
	http         *httpx.Client
	authHTTP     *http.Client
	cache        *cache.LRU

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	health      externalclients.ClientHealth
}

func New(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpx.New(),
		authHTTP:     &http.Client{},
		cache:        cache.New(cache.DefaultCapacity),
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

// token returns a cached client-credentials access token, refreshing it 30s
// before expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	form := strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, form)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.authHTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("popularity token exchange: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn-30) * time.Second)
	c.mu.Unlock()
	return out.AccessToken, nil
}

// FindArtistID resolves an artist's Popularity-service id, or "" if not found.
// Errors coerce to an empty id per spec.md §4.2's "any exception returns a
// null/false result".
func (c *Client) FindArtistID(ctx context.Context, name string) string {
	key := "artist:" + strings.ToLower(name)
	v, err := c.cache.GetOrLoad(key, func() (interface{}, error) {
		tok, err := c.token(ctx)
		if err != nil {
			c.recordErr(err)
			return "", nil
		}
		var result struct {
			Artists struct {
				Items []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"items"`
			} `json:"artists"`
		}
		q := url.QueryEscape(fmt.Sprintf("artist:%s", name))
		reqURL := fmt.Sprintf("%s/search?q=%s&type=artist&limit=1", baseURL, q)
		if err := c.http.GetJSON(ctx, reqURL, map[string]string{"Authorization": "Bearer " + tok}, &result); err != nil {
			c.recordErr(err)
			return "", nil
		}
		c.recordOK()
		if len(result.Artists.Items) == 0 {
			return "", nil
		}
		return result.Artists.Items[0].ID, nil
	})
	if err != nil {
		return ""
	}
	return v.(string)
}

// SearchTrack returns candidate matches for (title, artist, album?). Returns
// nil on any client error (spec.md §4.2).
func (c *Client) SearchTrack(ctx context.Context, title, artist, album string) []externalclients.TrackCandidate {
	tok, err := c.token(ctx)
	if err != nil {
		c.recordErr(err)
		return nil
	}

	q := fmt.Sprintf("track:%s artist:%s", title, artist)
	if album != "" {
		q += fmt.Sprintf(" album:%s", album)
	}
	reqURL := fmt.Sprintf("%s/search?q=%s&type=track&limit=10", baseURL, url.QueryEscape(q))

	var result struct {
		Tracks struct {
			Items []struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				DurationMs int    `json:"duration_ms"`
				Popularity int    `json:"popularity"`
				Album      struct {
					Name      string `json:"name"`
					AlbumType string `json:"album_type"`
				} `json:"album"`
			} `json:"items"`
		} `json:"tracks"`
	}
	if err := c.http.GetJSON(ctx, reqURL, map[string]string{"Authorization": "Bearer " + tok}, &result); err != nil {
		c.recordErr(err)
		return nil
	}
	c.recordOK()

	out := make([]externalclients.TrackCandidate, 0, len(result.Tracks.Items))
	for _, it := range result.Tracks.Items {
		out = append(out, externalclients.TrackCandidate{
			ID:         it.ID,
			Title:      it.Name,
			AlbumType:  it.Album.AlbumType,
			AlbumName:  it.Album.Name,
			Popularity: it.Popularity,
			DurationMs: it.DurationMs,
		})
	}
	return out
}
