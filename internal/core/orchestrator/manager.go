// Package orchestrator owns the registered fetchers, their schedules and the
// job ledger, and persists what each run produced.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"komoditas/internal/core/job"
	"komoditas/internal/core/schedule"
	"komoditas/internal/core/scraper"
	"komoditas/internal/core/store"
	"komoditas/internal/logger"
)

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrJobNotFound   = job.ErrNotFound
)

const (
	defaultCommodityCategory = "Pangan"
	currencyIDR              = "IDR"
)

type Options struct {
	Store store.Store
	// Mirror receives job snapshots; usually the shared cache. May be nil.
	Mirror   job.Mirror
	Location *time.Location
	Tick     time.Duration
	Now      func() time.Time
}

type Manager struct {
	log    *logger.Logger
	store  store.Store
	ledger *job.Ledger
	table  *schedule.Table
	now    func() time.Time
	tick   time.Duration

	mu       sync.RWMutex
	fetchers map[string]scraper.Fetcher

	runs      sync.WaitGroup
	scheduler *schedule.Scheduler
}

func New(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	return &Manager{
		log:      logger.New("ScraperManager"),
		store:    opts.Store,
		ledger:   job.NewLedger(opts.Mirror, opts.Now),
		table:    schedule.NewTable(opts.Location),
		now:      opts.Now,
		tick:     opts.Tick,
		fetchers: map[string]scraper.Fetcher{},
	}
}

// Register adds a fetcher with its cron schedule. Registering the same
// source again replaces the fetcher and its schedule.
func (m *Manager) Register(f scraper.Fetcher, cronExpr string, enabled bool) error {
	id := f.SourceID()
	if err := m.table.Put(schedule.Schedule{SourceID: id, CronExpression: cronExpr, Enabled: enabled}, m.now()); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}
	m.mu.Lock()
	m.fetchers[id] = f
	m.mu.Unlock()
	m.log.LogInfof("Registered scraper %s (%s)", id, cronExpr)
	return nil
}

// Sources lists the registered source ids in sorted order.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.fetchers))
	for id := range m.fetchers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) fetcher(sourceID string) (scraper.Fetcher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fetchers[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	return f, nil
}

// RunScraper runs sourceID to completion and returns the finished job. If
// the source already has an unfinished job, that job is returned instead and
// no new run starts.
func (m *Manager) RunScraper(ctx context.Context, sourceID string) (job.Job, error) {
	f, err := m.fetcher(sourceID)
	if err != nil {
		return job.Job{}, err
	}
	j, created := m.ledger.Begin(ctx, sourceID)
	if !created {
		m.log.LogWarnf("Scraper %s is already running (job %s)", sourceID, j.ID)
		return j, nil
	}
	if j, err = m.ledger.Start(ctx, j.ID); err != nil {
		return j, err
	}
	return m.execute(ctx, f, j.ID), nil
}

// Trigger starts a run in the background and returns the running job, or
// the unfinished job already held by the source.
func (m *Manager) Trigger(ctx context.Context, sourceID string) (job.Job, error) {
	f, err := m.fetcher(sourceID)
	if err != nil {
		return job.Job{}, err
	}
	j, created := m.ledger.Begin(ctx, sourceID)
	if !created {
		return j, nil
	}
	if j, err = m.ledger.Start(ctx, j.ID); err != nil {
		return j, err
	}

	runCtx := context.WithoutCancel(ctx)
	m.runs.Add(1)
	go func(id string) {
		defer m.runs.Done()
		m.execute(runCtx, f, id)
	}(j.ID)
	return j, nil
}

// Dispatch lets the manager serve as the scheduler's in-process dispatcher.
func (m *Manager) Dispatch(ctx context.Context, sourceID string) error {
	_, err := m.Trigger(ctx, sourceID)
	return err
}

func (m *Manager) execute(ctx context.Context, f scraper.Fetcher, jobID string) job.Job {
	id := f.SourceID()
	m.log.Info().Str("source", id).Str("job", jobID).Msg("Starting scraper")

	res := scraper.Run(ctx, f)

	var (
		final job.Job
		err   error
	)
	if res.Success {
		saved := m.persist(ctx, res.Records)
		final, err = m.ledger.Complete(ctx, jobID, res.TotalRecords)
		m.log.Success().Str("source", id).Str("job", jobID).Int("records", res.TotalRecords).Int("saved", saved).Msg("Scraper completed")
	} else {
		final, err = m.ledger.Fail(ctx, jobID, errors.New(res.Error))
		m.log.Error().Str("source", id).Str("job", jobID).Str("error", res.Error).Msg("Scraper failed")
	}
	if err != nil {
		m.log.LogErrorf("Failed to close job %s: %v", jobID, err)
	}

	if _, err := m.table.MarkRun(id, m.now()); err != nil {
		m.log.LogWarnf("Failed to update schedule of %s: %v", id, err)
	}
	return final
}

// persist upserts reference rows before the observations that point at them.
// A record that fails is logged and skipped. It returns the number saved.
func (m *Manager) persist(ctx context.Context, records []scraper.Record) int {
	seenCommodity := map[string]bool{}
	seenRegion := map[string]bool{}
	saved := 0

	region := func(code, name string) error {
		if seenRegion[code] {
			return nil
		}
		t := store.RegionProvince
		if code == scraper.RegionNational {
			t = store.RegionCountry
		}
		if err := m.store.UpsertRegion(ctx, store.Region{Code: code, Name: name, Type: t}); err != nil {
			return fmt.Errorf("region %s: %w", code, err)
		}
		seenRegion[code] = true
		return nil
	}

	for _, r := range records {
		var err error
		switch rec := r.(type) {
		case scraper.PriceRecord:
			err = m.savePrice(ctx, rec, seenCommodity, region)
		case scraper.WeatherRecord:
			err = m.saveWeather(ctx, rec, region)
		default:
			err = fmt.Errorf("unsupported record type %T", r)
		}
		if err != nil {
			m.log.LogWarnf("Failed to save record: %v", err)
			continue
		}
		saved++
	}
	return saved
}

func (m *Manager) savePrice(ctx context.Context, r scraper.PriceRecord, seen map[string]bool, region func(code, name string) error) error {
	if !seen[r.CommodityCode] {
		c := store.Commodity{
			Code:     r.CommodityCode,
			Name:     r.CommodityName,
			Category: defaultCommodityCategory,
			Unit:     scraper.CommodityUnit(r.CommodityCode),
		}
		if err := m.store.UpsertCommodity(ctx, c); err != nil {
			return fmt.Errorf("commodity %s: %w", r.CommodityCode, err)
		}
		seen[r.CommodityCode] = true
	}
	if err := region(r.RegionCode, r.RegionName); err != nil {
		return err
	}
	p := store.PriceRecord{
		PriceKey: store.PriceKey{
			CommodityCode: r.CommodityCode,
			RegionCode:    r.RegionCode,
			PriceType:     r.PriceType,
			Date:          r.Date,
			Source:        r.Source,
		},
		Price:    r.Price,
		Currency: currencyIDR,
		Unit:     r.Unit,
		Period:   r.Period,
	}
	if err := m.store.UpsertPriceRecord(ctx, p); err != nil {
		return fmt.Errorf("price %s/%s: %w", r.CommodityCode, r.RegionCode, err)
	}
	return nil
}

func (m *Manager) saveWeather(ctx context.Context, r scraper.WeatherRecord, region func(code, name string) error) error {
	if err := region(r.RegionCode, r.RegionName); err != nil {
		return err
	}
	w := store.WeatherRecord{
		WeatherKey: store.WeatherKey{
			RegionCode:  r.RegionCode,
			WeatherType: r.WeatherType,
			Date:        r.Date,
		},
		Source:      r.Source,
		RegionName:  r.RegionName,
		Value:       r.Value,
		Unit:        r.Unit,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Description: r.Description,
	}
	if err := m.store.UpsertWeatherRecord(ctx, w); err != nil {
		return fmt.Errorf("weather %s/%s: %w", r.RegionCode, r.WeatherType, err)
	}
	return nil
}

func (m *Manager) JobStatus(ctx context.Context, id string) (job.Job, error) {
	return m.ledger.Get(ctx, id)
}

// Jobs returns every retained job, oldest first.
func (m *Manager) Jobs() []job.Job { return m.ledger.List() }

func (m *Manager) Schedules() []schedule.Schedule { return m.table.List() }

// UpdateSchedule changes the cron expression and enabled flag of a source.
// An empty expr keeps the current expression.
func (m *Manager) UpdateSchedule(sourceID, expr string, enabled bool) (schedule.Schedule, error) {
	if _, err := m.fetcher(sourceID); err != nil {
		return schedule.Schedule{}, err
	}
	s, err := m.table.Update(sourceID, expr, enabled, m.now())
	if err != nil {
		return schedule.Schedule{}, err
	}
	m.log.LogInfof("Updated schedule for %s: %s (enabled=%v)", sourceID, s.CronExpression, s.Enabled)
	return s, nil
}

// HealthCheckAll probes every source concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	m.mu.RLock()
	fetchers := make([]scraper.Fetcher, 0, len(m.fetchers))
	for _, f := range m.fetchers {
		fetchers = append(fetchers, f)
	}
	m.mu.RUnlock()

	out := make(map[string]bool, len(fetchers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range fetchers {
		wg.Add(1)
		go func(f scraper.Fetcher) {
			defer wg.Done()
			ok := f.HealthCheck(ctx)
			mu.Lock()
			out[f.SourceID()] = ok
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return out
}

// Start begins the schedule loop. A nil dispatcher runs due sources in
// process through Trigger.
func (m *Manager) Start(ctx context.Context, d schedule.Dispatcher) {
	if d == nil {
		d = m
	}
	m.mu.Lock()
	if m.scheduler != nil {
		m.mu.Unlock()
		return
	}
	m.scheduler = schedule.NewScheduler(m.table, d, m.tick, m.now)
	s := m.scheduler
	m.mu.Unlock()

	s.Start(ctx)
	m.log.LogSuccessf("Scraper manager started with %d sources", len(m.Sources()))
}

// Stop ends the schedule loop and waits for background runs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	m.runs.Wait()
	m.log.LogInfo("Scraper manager stopped")
}
