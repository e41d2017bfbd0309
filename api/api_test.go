package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"sptnr-core/externalclients/metadataa"
	"sptnr-core/externalclients/metadatab"
	"sptnr-core/externalclients/popularity"
	"sptnr-core/externalclients/scrobbles"
	"sptnr-core/ratelimiter"
	"sptnr-core/store"
)

func testServices(t *testing.T) *Services {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	limiter := ratelimiter.New(ratelimiter.Quotas{
		PopularityWindowLimit: 10, PopularityDailyLimit: 100,
		ScrobblesMinSpacingMs: 1000, ScrobblesDailyLimit: 100,
	}, filepath.Join(t.TempDir(), "ratelimiter.json"))

	return &Services{
		Store:      s,
		Limiter:    limiter,
		Popularity: popularity.New("id", "secret"),
		Scrobbles:  scrobbles.New("key"),
		MetadataA:  metadataa.New("sptnr-core-test"),
		MetadataB:  metadatab.New("token"),
	}
}

func TestHealthEndpointReportsClients(t *testing.T) {
	svc := testServices(t)
	r := NewRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecentScansEndpointReturnsEmptyList(t *testing.T) {
	svc := testServices(t)
	r := NewRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/scans/recent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimiterStateEndpointReturnsBuckets(t *testing.T) {
	svc := testServices(t)
	r := NewRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/ratelimiter/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
