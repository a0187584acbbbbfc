package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"komoditas/internal/logger"
)

// ErrNoData marks an upstream dataset that answered but yielded nothing usable.
var ErrNoData = errors.New("no data")

// Result is built once per run and not modified afterwards.
type Result struct {
	Success      bool      `json:"success"`
	Records      []Record  `json:"-"`
	SourceID     string    `json:"sourceId"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
	TotalRecords int       `json:"totalRecords"`
	Dropped      int       `json:"dropped"`
}

// Fetcher is one upstream source. Embedding *Base supplies everything except Scrape.
type Fetcher interface {
	SourceID() string
	Scrape(ctx context.Context) ([]Record, error)
	HealthCheck(ctx context.Context) bool
	RecordRun(ctx context.Context, res Result, took time.Duration)
	Stats(ctx context.Context, days int) []RunSummary
}

// PreProcessor is an optional hook run before Scrape.
type PreProcessor interface {
	PreProcess(ctx context.Context) error
}

// PostProcessor is an optional hook run on the validated records.
type PostProcessor interface {
	PostProcess(ctx context.Context, records []Record) ([]Record, error)
}

type clocked interface{ Clock() Clock }

type logged interface{ Logger() *logger.Logger }

// Run executes the fetch pipeline for f. It always returns a well-formed
// Result; errors and panics become Success=false. Timestamps and durations
// come from the fetcher's clock when it exposes one, as *Base does.
func Run(ctx context.Context, f Fetcher) (res Result) {
	var clock Clock = SystemClock{}
	if c, ok := f.(clocked); ok && c.Clock() != nil {
		clock = c.Clock()
	}
	var log *logger.Logger
	if l, ok := f.(logged); ok && l.Logger() != nil {
		log = l.Logger()
	} else {
		log = logger.New(f.SourceID())
	}
	start := clock.Now()

	defer func() {
		if p := recover(); p != nil {
			res = failed(f.SourceID(), fmt.Errorf("panic: %v", p), clock.Now())
		}
		took := clock.Now().Sub(start)
		if res.Success {
			log.LogInfof("Scraping completed in %v: %d records (%d dropped)", took, res.TotalRecords, res.Dropped)
		} else {
			log.LogErrorf("Scraping failed after %v: %s", took, res.Error)
		}
		f.RecordRun(ctx, res, took)
	}()

	log.LogInfo("Starting scraping process")
	records, dropped, err := pipeline(ctx, f)
	if err != nil {
		return failed(f.SourceID(), err, clock.Now())
	}

	return Result{
		Success:      true,
		Records:      records,
		SourceID:     f.SourceID(),
		Timestamp:    clock.Now(),
		TotalRecords: len(records),
		Dropped:      dropped,
	}
}

func pipeline(ctx context.Context, f Fetcher) ([]Record, int, error) {
	if pre, ok := f.(PreProcessor); ok {
		if err := pre.PreProcess(ctx); err != nil {
			return nil, 0, fmt.Errorf("pre-process: %w", err)
		}
	}

	raw, err := f.Scrape(ctx)
	if err != nil {
		return nil, 0, err
	}

	records, dropped := Validate(raw)

	if post, ok := f.(PostProcessor); ok {
		records, err = post.PostProcess(ctx, records)
		if err != nil {
			return nil, dropped, fmt.Errorf("post-process: %w", err)
		}
	}
	return records, dropped, nil
}

func failed(source string, err error, at time.Time) Result {
	return Result{
		Success:   false,
		Records:   nil,
		SourceID:  source,
		Timestamp: at,
		Error:     err.Error(),
	}
}
