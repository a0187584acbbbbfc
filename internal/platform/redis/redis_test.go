package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"komoditas/internal/core/scraper"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Options{Addr: mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestCacheRoundTrip(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "scraper:bmkg-weather:x"); !errors.Is(err, scraper.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	if err := s.Set(ctx, "scraper:bmkg-weather:x", []byte(`[1,2]`), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("test:scraper:bmkg-weather:x") {
		t.Error("expected prefixed key in redis")
	}
	got, err := s.Get(ctx, "scraper:bmkg-weather:x")
	if err != nil || string(got) != `[1,2]` {
		t.Errorf("unexpected value %q err=%v", got, err)
	}
	if ok, _ := s.Exists(ctx, "scraper:bmkg-weather:x"); !ok {
		t.Error("expected key to exist")
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := s.Exists(ctx, "scraper:bmkg-weather:x"); ok {
		t.Error("expected key to expire")
	}

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, scraper.ErrCacheMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s, mr := newTestService(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt := s.AsynqRedisOpt(); opt.Addr != mr.Addr() {
		t.Errorf("unexpected asynq addr %s", opt.Addr)
	}

	mr.Close()
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("expected failure once redis is gone")
	}
}
