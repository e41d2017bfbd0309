// Package httpx is the shared HTTP skeleton every external client builds on:
// context-aware requests, JSON decoding, status-code-to-error mapping, and
// the retry/backoff policy of spec.md §4.2. Grounded on the teacher's
// internal/plugins/infrastructure/http_client.go request-building style,
// generalized with retries and Retry-After handling the teacher didn't need.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sptnr-core/shared/apperr"
)

// ErrNotFound is returned when the server responds 404 — callers treat this
// as "no data", not a retryable error.
var ErrNotFound = errors.New("httpx: not found")

// Client wraps http.Client with spec.md §4.2's retry policy: up to 3 retries
// (4 attempts) with exponential backoff (0.3s, 0.6s, 1.2s) on 5xx, no retry on 4xx, and
// Retry-After respected on 429.
type Client struct {
	http       *http.Client
	backoffs   []time.Duration
	timeoutSafe bool
}

// New builds a standard client with up to 3 retries. The underlying
// http.Client sets no connect or read timeout of its own; the only deadline
// is the one on the context the caller supplies.
func New() *Client {
	return &Client{
		http:     &http.Client{},
		backoffs: []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond},
	}
}

// NewTimeoutSafe builds the "timeout-safe" variant of spec.md §4.2: only one
// retry. The clients in this module all construct New(), whatever their
// per-call budget; none of them uses this variant.
func NewTimeoutSafe() *Client {
	return &Client{
		http:        &http.Client{},
		backoffs:    []time.Duration{300 * time.Millisecond},
		timeoutSafe: true,
	}
}

// GetJSON issues a GET with headers, retries per policy, and decodes the
// response body as JSON into out. Returns ErrNotFound on 404, apperr.ErrAPI
// wrapping the status on other non-2xx after retries are exhausted.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response from %s: %v", apperr.ErrAPI, url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var lastErr error
	attempts := len(c.backoffs) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoffs[attempt-1]
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", apperr.ErrConnectivity, ctx.Err())
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("%w: building request: %v", apperr.ErrBug, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%w: %v", apperr.ErrConnectivity, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %v", apperr.ErrConnectivity, err)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: reading body: %v", apperr.ErrAPI, readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %v", apperr.ErrConnectivity, ctx.Err())
				case <-time.After(wait):
				}
			}
			lastErr = fmt.Errorf("%w: rate limited (429)", apperr.ErrAPI)
			continue
		case resp.StatusCode >= 500 || resp.StatusCode == 503:
			lastErr = fmt.Errorf("%w: status %d", apperr.ErrAPI, resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: status %d", apperr.ErrAPI, resp.StatusCode)
		default:
			return data, nil
		}
	}

	return nil, lastErr
}

func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t), true
	}
	return 0, false
}
