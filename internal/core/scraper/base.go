package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"komoditas/internal/logger"
)

const (
	healthCheckTimeout = 5 * time.Second
	statsTTL           = 24 * time.Hour
)

// Base carries the cross-cutting behaviour every fetcher shares: rate
// limiting, retry with backoff, caching and run bookkeeping.
type Base struct {
	source  string
	cfg     Config
	client  *Client
	cache   Cache
	clock   Clock
	limiter *rate.Limiter
	log     *logger.Logger
}

type Option func(*Base)

func WithClock(c Clock) Option { return func(b *Base) { b.clock = c } }

func WithHTTPClient(hc *http.Client) Option {
	return func(b *Base) { b.client = NewClient(b.cfg, hc) }
}

func WithLogger(l *logger.Logger) Option { return func(b *Base) { b.log = l } }

// NewBase builds the shared fetcher core. cache may be nil, in which case
// every lookup is a miss and nothing is written.
func NewBase(source string, cfg Config, cache Cache, opts ...Option) *Base {
	cfg = cfg.withDefaults()
	b := &Base{
		source: source,
		cfg:    cfg,
		client: NewClient(cfg, nil),
		cache:  cache,
		clock:  SystemClock{},
		log:    logger.New(source),
	}
	for _, opt := range opts {
		opt(b)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	b.limiter = rate.NewLimiter(limit, 1)
	return b
}

func (b *Base) SourceID() string       { return b.source }
func (b *Base) Config() Config         { return b.cfg }
func (b *Base) Clock() Clock           { return b.clock }
func (b *Base) Logger() *logger.Logger { return b.log }

// wait blocks until the limiter admits one more request.
func (b *Base) wait(ctx context.Context) error {
	now := b.clock.Now()
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate limiter rejected request")
	}
	if err := b.clock.Sleep(ctx, r.DelayFrom(now)); err != nil {
		r.CancelAt(b.clock.Now())
		return err
	}
	return nil
}

// MakeRequest fetches path with the rate limit applied before every attempt
// and retryable failures retried up to MaxRetries attempts, doubling the
// delay from RetryBaseDelay. The last error is returned when attempts run out.
func (b *Base) MakeRequest(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	attempts := b.cfg.MaxRetries

	for i := 0; i < attempts; i++ {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}

		b.log.Debug().Str("url", b.client.Resolve(path)).Int("attempt", i+1).Msg("request")
		body, err := b.client.Get(ctx, path, b.cfg.Timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			break
		}
		if i < attempts-1 {
			delay := b.cfg.RetryBaseDelay * time.Duration(1<<i)
			b.log.Debug().Str("url", path).Int("attempt", i+1).Dur("backoff", delay).Str("error", err.Error()).Msg("retrying")
			if err := b.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	b.log.LogWarnf("Failed to fetch %s: %v", path, lastErr)
	return nil, lastErr
}

// HealthCheck issues one rate-limited request to the root path with a short
// timeout. It never returns an error; failures are logged.
func (b *Base) HealthCheck(ctx context.Context) bool {
	if err := b.wait(ctx); err != nil {
		b.log.LogWarnf("Health check aborted: %v", err)
		return false
	}
	if _, err := b.client.Get(ctx, "/", healthCheckTimeout); err != nil {
		b.log.LogErrorf("Health check failed: %v", err)
		return false
	}
	return true
}

func (b *Base) CacheKey(parts ...string) string {
	return "scraper:" + b.source + ":" + strings.Join(parts, ":")
}

// SetCached stores v as JSON. Failures are logged and otherwise ignored.
func (b *Base) SetCached(ctx context.Context, key string, v any, ttl time.Duration) {
	if b.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.log.LogErrorf("Cache encode %s: %v", key, err)
		return
	}
	if err := b.cache.Set(ctx, key, raw, ttl); err != nil {
		b.log.LogWarnf("Cache write %s: %v", key, err)
	}
}

// LoadCached reads a JSON value written by SetCached. Any failure is a miss.
func LoadCached[T any](ctx context.Context, b *Base, key string) (T, bool) {
	var out T
	if b.cache == nil {
		return out, false
	}
	raw, err := b.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			b.log.LogWarnf("Cache read %s: %v", key, err)
		}
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		b.log.LogWarnf("Cache decode %s: %v", key, err)
		return out, false
	}
	return out, true
}

// RunSummary is the per-day snapshot written after every run.
type RunSummary struct {
	Source      string    `json:"source"`
	Success     bool      `json:"success"`
	RecordCount int       `json:"recordCount"`
	Dropped     int       `json:"dropped"`
	DurationMs  int64     `json:"durationMs"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

func (b *Base) statsKey(day time.Time) string {
	return b.CacheKey("stats", day.UTC().Format("2006-01-02"))
}

func (b *Base) RecordRun(ctx context.Context, res Result, took time.Duration) {
	summary := RunSummary{
		Source:      b.source,
		Success:     res.Success,
		RecordCount: res.TotalRecords,
		Dropped:     res.Dropped,
		DurationMs:  took.Milliseconds(),
		Timestamp:   res.Timestamp,
		Error:       res.Error,
	}
	b.SetCached(ctx, b.statsKey(b.clock.Now()), summary, statsTTL)
}

// Stats returns the cached run summaries of the trailing days, oldest first.
func (b *Base) Stats(ctx context.Context, days int) []RunSummary {
	if days <= 0 {
		return nil
	}
	now := b.clock.Now()
	out := make([]RunSummary, 0, days)
	for i := days - 1; i >= 0; i-- {
		if s, ok := LoadCached[RunSummary](ctx, b, b.statsKey(now.AddDate(0, 0, -i))); ok {
			out = append(out, s)
		}
	}
	return out
}
