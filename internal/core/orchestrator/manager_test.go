package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"komoditas/internal/core/job"
	"komoditas/internal/core/scraper"
	"komoditas/internal/core/scraper/scrapertest"
	"komoditas/internal/core/sources/bmkg"
	"komoditas/internal/core/store"
	"komoditas/internal/platform/tasks"
)

var epoch = time.Date(2024, 3, 1, 0, 10, 0, 0, time.UTC)

type movableNow struct {
	mu sync.Mutex
	t  time.Time
}

func (n *movableNow) Now() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.t
}

func (n *movableNow) Set(t time.Time) {
	n.mu.Lock()
	n.t = t
	n.mu.Unlock()
}

type stubFetcher struct {
	*scraper.Base
	scrape  func(ctx context.Context) ([]scraper.Record, error)
	healthy bool
}

func newStub(id string, cache scraper.Cache, scrape func(ctx context.Context) ([]scraper.Record, error)) *stubFetcher {
	b := scraper.NewBase(id, scraper.Config{}, cache, scraper.WithClock(scrapertest.NewFakeClock(epoch)))
	return &stubFetcher{Base: b, scrape: scrape, healthy: true}
}

func (s *stubFetcher) Scrape(ctx context.Context) ([]scraper.Record, error) { return s.scrape(ctx) }
func (s *stubFetcher) HealthCheck(context.Context) bool                   { return s.healthy }

func price(commodity, region string, p float64) scraper.PriceRecord {
	return scraper.PriceRecord{
		CommodityCode: commodity, CommodityName: commodity, RegionCode: region, RegionName: region,
		PriceType: scraper.PriceTypeConsumer, Price: p, Unit: scraper.CommodityUnit(commodity),
		Date: epoch, Source: "test",
	}
}

func staticRecords(records ...scraper.Record) func(context.Context) ([]scraper.Record, error) {
	return func(context.Context) ([]scraper.Record, error) { return records, nil }
}

func newManager(t *testing.T, st store.Store, now func() time.Time) *Manager {
	t.Helper()
	if now == nil {
		now = func() time.Time { return epoch }
	}
	m := New(Options{Store: st, Location: time.UTC, Now: now, Tick: 5 * time.Millisecond})
	t.Cleanup(m.Stop)
	return m
}

func serveFixtures(t *testing.T) *httptest.Server {
	t.Helper()
	read := func(name string) []byte {
		b, err := os.ReadFile(filepath.Join("..", "sources", "bmkg", "testdata", name))
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	routes := map[string][]byte{
		"/DataMKG/MEWS/DigitalForecast/DigitalForecast.xml": read("digital_forecast.xml"),
		"/DataMKG/MEWS/climate_data.xml":                    read("climate_data.xml"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body, ok := routes[r.URL.Path]; ok {
			_, _ = w.Write(body)
			return
		}
		if r.URL.Path == "/DataMKG/MEWS/forecast_weather.xml" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWeatherRunEndToEnd(t *testing.T) {
	srv := serveFixtures(t)
	cfg := bmkg.DefaultConfig()
	cfg.BaseURL = srv.URL
	f := bmkg.New(cfg, scrapertest.NewMemoryCache(), scraper.WithClock(scrapertest.NewFakeClock(epoch)))

	st := store.NewMemory()
	m := newManager(t, st, nil)
	if err := m.Register(f, "0 */3 * * *", true); err != nil {
		t.Fatal(err)
	}

	j, err := m.RunScraper(context.Background(), bmkg.SourceID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusCompleted || j.RecordsProcessed != 6 {
		t.Fatalf("expected completed job with 6 records, got %+v", j)
	}
	if jobs := m.Jobs(); len(jobs) != 1 || jobs[0].ID != j.ID {
		t.Errorf("expected exactly one job, got %+v", jobs)
	}
	if got := len(st.Weather()); got != 6 {
		t.Errorf("expected 6 weather rows, got %d", got)
	}
	regions := st.Regions()
	if regions["31"].Type != store.RegionProvince || regions["32"].Type != store.RegionProvince {
		t.Errorf("unexpected regions %+v", regions)
	}

	s := m.Schedules()[0]
	if s.LastRun == nil || s.NextRun == nil || !s.NextRun.After(*s.LastRun) {
		t.Errorf("expected schedule advanced after run, got %+v", s)
	}
}

func TestAtMostOneRunPerSource(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newStub("panel-harga", nil, func(ctx context.Context) ([]scraper.Record, error) {
		close(started)
		<-release
		return []scraper.Record{price("BERAS", "31", 14000)}, nil
	})
	m := newManager(t, nil, nil)
	_ = m.Register(f, "0 */6 * * *", true)

	type outcome struct {
		j   job.Job
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		j, err := m.RunScraper(context.Background(), "panel-harga")
		first <- outcome{j, err}
	}()
	<-started

	running, ok := m.ledger.Active("panel-harga")
	if !ok || running.Status != job.StatusRunning {
		t.Fatalf("expected a running job, got %+v", running)
	}

	second, err := m.RunScraper(context.Background(), "panel-harga")
	if err != nil || second.ID != running.ID || second.Status != job.StatusRunning {
		t.Errorf("expected the running job back, got %+v err=%v", second, err)
	}
	triggered, _ := m.Trigger(context.Background(), "panel-harga")
	if triggered.ID != running.ID {
		t.Errorf("trigger started a second run: %s", triggered.ID)
	}

	close(release)
	res := <-first
	if res.err != nil || res.j.Status != job.StatusCompleted || res.j.ID != running.ID {
		t.Errorf("unexpected final job %+v err=%v", res.j, res.err)
	}
	if n := len(m.Jobs()); n != 1 {
		t.Errorf("expected one job, got %d", n)
	}
}

func TestFailedRunIsRecorded(t *testing.T) {
	f := newStub("bps-statistics", nil, func(context.Context) ([]scraper.Record, error) {
		return nil, errors.New("all 3 sub-fetches failed")
	})
	m := newManager(t, nil, nil)
	_ = m.Register(f, "0 0 */2 * *", true)

	j, err := m.RunScraper(context.Background(), "bps-statistics")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusFailed || j.Error == "" || j.EndTime == nil {
		t.Errorf("unexpected job %+v", j)
	}
	if s := m.Schedules()[0]; s.LastRun == nil {
		t.Error("expected last run recorded for a failed run")
	}

	if _, err := m.RunScraper(context.Background(), "nope"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := m.UpdateSchedule("nope", "* * * * *", true); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := m.JobStatus(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

type flakyStore struct {
	*store.Memory
	failCommodity string
}

func (s *flakyStore) UpsertPriceRecord(ctx context.Context, p store.PriceRecord) error {
	if p.CommodityCode == s.failCommodity {
		return errors.New("constraint violation")
	}
	return s.Memory.UpsertPriceRecord(ctx, p)
}

func TestPersistSkipsFailingRecords(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failCommodity: "TOMAT"}
	f := newStub("panel-harga", nil, staticRecords(
		price("BERAS", "31", 14000),
		price("TOMAT", "31", 9000),
		price("MINYAK_GORENG", scraper.RegionNational, 17000),
	))
	m := newManager(t, st, nil)
	_ = m.Register(f, "0 */6 * * *", true)

	j, _ := m.RunScraper(context.Background(), "panel-harga")
	if j.Status != job.StatusCompleted || j.RecordsProcessed != 3 {
		t.Fatalf("expected completed job despite a failing record, got %+v", j)
	}
	if got := len(st.Prices()); got != 2 {
		t.Errorf("expected 2 stored prices, got %d", got)
	}
	c := st.Commodities()
	if c["MINYAK_GORENG"].Unit != "liter" || c["BERAS"].Unit != "kg" || c["BERAS"].Category != "Pangan" {
		t.Errorf("unexpected commodities %+v", c)
	}
	if r := st.Regions()[scraper.RegionNational]; r.Type != store.RegionCountry {
		t.Errorf("expected national region stored as country, got %+v", r)
	}
	for _, p := range st.Prices() {
		if p.Currency != "IDR" {
			t.Errorf("unexpected currency %q", p.Currency)
		}
	}
}

func TestHandleRunTask(t *testing.T) {
	f := newStub("bmkg-weather", nil, staticRecords())
	m := newManager(t, nil, nil)
	_ = m.Register(f, "0 */3 * * *", true)

	task, _ := tasks.NewRunTask("bmkg-weather")
	if err := m.HandleRunTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs := m.Jobs(); len(jobs) != 1 || jobs[0].Status != job.StatusCompleted {
		t.Errorf("expected one completed job, got %+v", jobs)
	}

	unknown, _ := tasks.NewRunTask("unknown")
	if err := m.HandleRunTask(context.Background(), unknown); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry for unknown source, got %v", err)
	}
	bad := asynq.NewTask(tasks.TaskTypeScraperRun, []byte("not json"))
	if err := m.HandleRunTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry for malformed payload, got %v", err)
	}
}

func TestStats(t *testing.T) {
	cache := scrapertest.NewMemoryCache()
	fail := true
	f := newStub("panel-harga", cache, func(context.Context) ([]scraper.Record, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return []scraper.Record{price("BERAS", "31", 14000), price("JAGUNG", "31", 6000)}, nil
	})
	other := newStub("bmkg-weather", cache, staticRecords())
	m := newManager(t, nil, nil)
	_ = m.Register(f, "0 */6 * * *", true)
	_ = m.Register(other, "0 */3 * * *", true)

	_, _ = m.RunScraper(context.Background(), "panel-harga")
	fail = false
	_, _ = m.RunScraper(context.Background(), "panel-harga")

	s := m.Stats(context.Background(), 7)
	if s.TotalJobs != 2 || s.CompletedJobs != 1 || s.FailedJobs != 1 || s.TotalRecords != 2 {
		t.Errorf("unexpected totals %+v", s)
	}
	ph := s.Sources["panel-harga"]
	if ph.TotalJobs != 2 || ph.RecordsProcessed != 2 || ph.LastRun == nil {
		t.Errorf("unexpected source stats %+v", ph)
	}
	if len(ph.Daily) != 1 || !ph.Daily[0].Success || ph.Daily[0].RecordCount != 2 {
		t.Errorf("expected today's summary from the last run, got %+v", ph.Daily)
	}
	if bw, ok := s.Sources["bmkg-weather"]; !ok || bw.TotalJobs != 0 {
		t.Errorf("expected idle source listed, got %+v", bw)
	}
}

func TestHealthCheckAll(t *testing.T) {
	up := newStub("panel-harga", nil, staticRecords())
	down := newStub("bps-statistics", nil, staticRecords())
	down.healthy = false
	m := newManager(t, nil, nil)
	_ = m.Register(up, "0 */6 * * *", true)
	_ = m.Register(down, "0 0 */2 * *", true)

	got := m.HealthCheckAll(context.Background())
	if len(got) != 2 || !got["panel-harga"] || got["bps-statistics"] {
		t.Errorf("unexpected health %v", got)
	}
}

func TestStartDispatchesDueSources(t *testing.T) {
	now := &movableNow{t: epoch}
	ran := make(chan struct{}, 1)
	f := newStub("bmkg-weather", nil, func(context.Context) ([]scraper.Record, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil, nil
	})
	m := newManager(t, nil, now.Now)
	_ = m.Register(f, "0 */3 * * *", true)

	m.Start(context.Background(), nil)
	now.Set(epoch.Add(3 * time.Hour))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled run never started")
	}
	m.Stop()

	jobs := m.Jobs()
	if len(jobs) != 1 || jobs[0].Status != job.StatusCompleted {
		t.Errorf("expected one completed scheduled job, got %+v", jobs)
	}
}

func TestPersistWeatherKeyIgnoresSource(t *testing.T) {
	st := store.NewMemory()
	obs := func(source string, v float64) scraper.WeatherRecord {
		return scraper.WeatherRecord{
			RegionCode: "31", RegionName: "DKI Jakarta", WeatherType: scraper.WeatherTemperature,
			Value: v, Unit: "°C", Date: epoch, Source: source,
		}
	}
	f := newStub("bmkg-weather", nil, staticRecords(obs("BMKG", 29), obs("BMKG Maritime", 28)))
	m := newManager(t, st, nil)
	_ = m.Register(f, "0 */3 * * *", true)

	if j, _ := m.RunScraper(context.Background(), "bmkg-weather"); j.Status != job.StatusCompleted {
		t.Fatalf("unexpected job %+v", j)
	}
	w := st.Weather()
	if len(w) != 1 {
		t.Fatalf("expected one weather row for region/type/date, got %d", len(w))
	}
	if w[0].Source != "BMKG Maritime" || w[0].Value != 28 {
		t.Errorf("expected last write to win, got %+v", w[0])
	}
}
