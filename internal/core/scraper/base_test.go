package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"komoditas/internal/core/scraper"
	"komoditas/internal/core/scraper/scrapertest"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newBase(t *testing.T, url string, cfg scraper.Config, cache scraper.Cache) (*scraper.Base, *scrapertest.FakeClock) {
	t.Helper()
	clock := scrapertest.NewFakeClock(epoch)
	cfg.BaseURL = url
	return scraper.NewBase("test-source", cfg, cache, scraper.WithClock(clock)), clock
}

func nonZero(ds []time.Duration) []time.Duration {
	var out []time.Duration
	for _, d := range ds {
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}

// ----- Retry -----

func TestMakeRequestRetryBound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, clock := newBase(t, srv.URL, scraper.Config{MaxRetries: 3, RetryBaseDelay: time.Second}, nil)

	_, err := b.MakeRequest(context.Background(), "/data")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var se *scraper.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}

	backoff := nonZero(clock.Sleeps())
	if len(backoff) != 2 || backoff[0] != time.Second || backoff[1] != 2*time.Second {
		t.Errorf("expected backoff [1s 2s], got %v", backoff)
	}
}

func TestMakeRequestDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b, _ := newBase(t, srv.URL, scraper.Config{MaxRetries: 3}, nil)
	if _, err := b.MakeRequest(context.Background(), "/missing"); err == nil {
		t.Fatal("expected error")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected a single attempt for 404, got %d", got)
	}
}

func TestMakeRequestRecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, _ := newBase(t, srv.URL, scraper.Config{MaxRetries: 3}, nil)
	body, err := b.MakeRequest(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" || hits.Load() != 2 {
		t.Errorf("expected body ok after 2 attempts, got %q after %d", body, hits.Load())
	}
}

func TestMakeRequestAbsoluteURL(t *testing.T) {
	var gotPath string
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("elsewhere"))
	}))
	defer other.Close()

	b, _ := newBase(t, "http://127.0.0.1:1", scraper.Config{MaxRetries: 1}, nil)
	body, err := b.MakeRequest(context.Background(), other.URL+"/table.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "elsewhere" || gotPath != "/table.html" {
		t.Errorf("absolute URL not used as-is: body=%q path=%q", body, gotPath)
	}
}

func TestMakeRequestSendsHeaders(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	cfg := scraper.Config{MaxRetries: 1, Headers: scraper.GetHeaderProfile(scraper.StrategyJSONAPI).Headers()}
	b, _ := newBase(t, srv.URL, cfg, nil)
	if _, err := b.MakeRequest(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	if accept != "application/json" {
		t.Errorf("expected json accept header, got %q", accept)
	}
}

// ----- Rate limit -----

func TestMakeRequestRateLimitFloor(t *testing.T) {
	const limit = 2 * time.Second
	clock := scrapertest.NewFakeClock(epoch)

	var mu sync.Mutex
	var seen []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, clock.Now())
		mu.Unlock()
	}))
	defer srv.Close()

	b := scraper.NewBase("test-source", scraper.Config{BaseURL: srv.URL, MaxRetries: 1, RateLimit: limit}, nil, scraper.WithClock(clock))
	for i := 0; i < 4; i++ {
		if _, err := b.MakeRequest(context.Background(), "/"); err != nil {
			t.Fatal(err)
		}
	}

	if len(seen) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if gap := seen[i].Sub(seen[i-1]); gap < limit {
			t.Errorf("requests %d and %d only %v apart", i-1, i, gap)
		}
	}
}

// ----- Health -----

func TestHealthCheckSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b, _ := newBase(t, srv.URL, scraper.Config{MaxRetries: 3}, nil)
	if b.HealthCheck(context.Background()) {
		t.Error("expected unhealthy")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestHealthCheckOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	b, _ := newBase(t, srv.URL, scraper.Config{}, nil)
	if !b.HealthCheck(context.Background()) {
		t.Error("expected healthy")
	}
}

// ----- Cache -----

func TestCacheHelpers(t *testing.T) {
	cache := scrapertest.NewMemoryCache()
	b, _ := newBase(t, "http://example.invalid", scraper.Config{}, cache)
	ctx := context.Background()

	key := b.CacheKey("provinces")
	if key != "scraper:test-source:provinces" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, ok := scraper.LoadCached[[]string](ctx, b, key); ok {
		t.Fatal("expected miss on empty cache")
	}

	b.SetCached(ctx, key, []string{"31", "32"}, time.Hour)
	got, ok := scraper.LoadCached[[]string](ctx, b, key)
	if !ok || len(got) != 2 || got[1] != "32" {
		t.Fatalf("expected cached value, got %v %v", got, ok)
	}

	cache.SetFailing(true)
	if _, ok := scraper.LoadCached[[]string](ctx, b, key); ok {
		t.Error("failing cache must read as a miss")
	}
	b.SetCached(ctx, key, []string{"x"}, time.Hour) // must not panic
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	b, _ := newBase(t, "http://example.invalid", scraper.Config{}, nil)
	b.SetCached(context.Background(), b.CacheKey("k"), 1, time.Minute)
	if _, ok := scraper.LoadCached[int](context.Background(), b, b.CacheKey("k")); ok {
		t.Error("expected miss without cache")
	}
}
