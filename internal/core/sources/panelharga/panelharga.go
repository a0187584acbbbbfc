// Package panelharga reads consumer prices from the Panel Harga Pangan (PIHPS) portal.
package panelharga

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"komoditas/internal/core/scraper"
	"komoditas/internal/logger"
)

const SourceID = "panel-harga"

const (
	endpointProvinces   = "/api/provinces"
	endpointCommodities = "/api/commodities"

	sourceLabel      = "Panel Harga Pangan"
	referenceTTL     = 24 * time.Hour
	dedupWindow      = 24 * time.Hour
	provinceParallel = 5
)

var errNoReferenceData = errors.New("failed to fetch provinces or commodities")

func DefaultConfig() scraper.Config {
	return scraper.Config{
		BaseURL:        "https://pihps.kemendag.go.id",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		RateLimit:      2 * time.Second,
		Headers:        scraper.GetHeaderProfile(scraper.StrategyBrowser).Headers(),
	}
}

type Province struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Commodity struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// DefaultCommodities is used when the portal exposes no commodity list.
var DefaultCommodities = []Commodity{
	{ID: "1", Code: "BERAS", Name: "Beras", Unit: "kg"},
	{ID: "2", Code: "JAGUNG", Name: "Jagung", Unit: "kg"},
	{ID: "3", Code: "KEDELAI", Name: "Kedelai", Unit: "kg"},
	{ID: "4", Code: "GULA_PASIR", Name: "Gula Pasir", Unit: "kg"},
	{ID: "5", Code: "MINYAK_GORENG", Name: "Minyak Goreng", Unit: "liter"},
	{ID: "6", Code: "DAGING_SAPI", Name: "Daging Sapi", Unit: "kg"},
	{ID: "7", Code: "DAGING_AYAM", Name: "Daging Ayam", Unit: "kg"},
	{ID: "8", Code: "TELUR_AYAM", Name: "Telur Ayam", Unit: "kg"},
	{ID: "9", Code: "CABAI_MERAH", Name: "Cabai Merah", Unit: "kg"},
	{ID: "10", Code: "BAWANG_MERAH", Name: "Bawang Merah", Unit: "kg"},
	{ID: "11", Code: "BAWANG_PUTIH", Name: "Bawang Putih", Unit: "kg"},
	{ID: "12", Code: "TOMAT", Name: "Tomat", Unit: "kg"},
}

type Fetcher struct {
	*scraper.Base
	log *logger.Logger
}

func New(cfg scraper.Config, cache scraper.Cache, opts ...scraper.Option) *Fetcher {
	log := logger.New("PanelHarga")
	opts = append([]scraper.Option{scraper.WithLogger(log)}, opts...)
	return &Fetcher{Base: scraper.NewBase(SourceID, cfg, cache, opts...), log: log}
}

// Scrape loads the province and commodity lists, then every price series per
// province with at most five provinces in flight.
func (f *Fetcher) Scrape(ctx context.Context) ([]scraper.Record, error) {
	f.log.LogInfo("Starting data scraping")

	var (
		provinces   []Province
		commodities []Commodity
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); provinces = f.provinces(ctx) }()
	go func() { defer wg.Done(); commodities = f.commodities(ctx) }()
	wg.Wait()

	if len(provinces) == 0 || len(commodities) == 0 {
		return nil, errNoReferenceData
	}
	f.log.Info().Int("provinces", len(provinces)).Int("commodities", len(commodities)).Msg("Reference data loaded")

	perProvince := make([][]scraper.PriceRecord, len(provinces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(provinceParallel)
	for i, p := range provinces {
		g.Go(func() error {
			perProvince[i] = f.pricesForProvince(gctx, p, commodities)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []scraper.PriceRecord
	for _, recs := range perProvince {
		out = append(out, recs...)
	}
	return scraper.AsRecords(out), nil
}

// PostProcess keeps one price per commodity, region and price type per day.
func (f *Fetcher) PostProcess(_ context.Context, records []scraper.Record) ([]scraper.Record, error) {
	out := scraper.Dedupe(records, dedupWindow)
	f.log.LogInfof("Processed %d unique price records", len(out))
	return out, nil
}

func (f *Fetcher) provinces(ctx context.Context) []Province {
	key := f.CacheKey("provinces")
	if cached, ok := scraper.LoadCached[[]Province](ctx, f.Base, key); ok && len(cached) > 0 {
		f.log.LogDebugf("Using cached provinces data")
		return cached
	}

	if list, err := f.provincesFromAPI(ctx); err == nil && len(list) > 0 {
		f.SetCached(ctx, key, list, referenceTTL)
		return list
	} else if err != nil {
		f.log.LogWarnf("Provinces API endpoint failed, trying web scraping: %v", err)
	}

	body, err := f.MakeRequest(ctx, "/")
	if err != nil {
		f.log.LogError("Failed to scrape provinces from web", err)
		return nil
	}
	list, err := provincesFromHTML(body)
	if err != nil {
		f.log.LogError("Failed to parse provinces page", err)
		return nil
	}
	f.log.LogInfof("Scraped %d provinces from web", len(list))
	return list
}

func (f *Fetcher) commodities(ctx context.Context) []Commodity {
	key := f.CacheKey("commodities")
	if cached, ok := scraper.LoadCached[[]Commodity](ctx, f.Base, key); ok && len(cached) > 0 {
		f.log.LogDebugf("Using cached commodities data")
		return cached
	}

	if list, err := f.commoditiesFromAPI(ctx); err == nil && len(list) > 0 {
		f.SetCached(ctx, key, list, referenceTTL)
		return list
	} else if err != nil {
		f.log.LogWarnf("Commodities API endpoint failed, trying web scraping: %v", err)
	}

	var list []Commodity
	if body, err := f.MakeRequest(ctx, "/"); err == nil {
		list, _ = commoditiesFromHTML(body)
	}
	if len(list) == 0 {
		f.log.LogDebugf("No commodity list found, using defaults")
		return append([]Commodity(nil), DefaultCommodities...)
	}
	f.log.LogInfof("Scraped %d commodities from web", len(list))
	return list
}

var (
	idField   = scraper.TextField("id", "kode", "code", "province_id", "commodity_id")
	codeField = scraper.TextField("code", "kode")
	nameField = scraper.StringField("name", "nama", "provinsi", "province", "komoditas", "commodity")
	unitField = scraper.StringField("unit", "satuan")
)

func (f *Fetcher) provincesFromAPI(ctx context.Context) ([]Province, error) {
	items, err := f.fetchItems(ctx, endpointProvinces)
	if err != nil {
		return nil, err
	}
	var out []Province
	for _, it := range items {
		id, ok := idField(it)
		name, ok2 := nameField(it)
		if !ok || !ok2 {
			continue
		}
		code, ok := codeField(it)
		if !ok {
			code = id
		}
		out = append(out, Province{ID: id, Code: code, Name: name})
	}
	return out, nil
}

func (f *Fetcher) commoditiesFromAPI(ctx context.Context) ([]Commodity, error) {
	items, err := f.fetchItems(ctx, endpointCommodities)
	if err != nil {
		return nil, err
	}
	var out []Commodity
	for _, it := range items {
		id, ok := idField(it)
		name, ok2 := nameField(it)
		if !ok || !ok2 {
			continue
		}
		code, ok := codeField(it)
		if !ok {
			code = id
		}
		unit, ok := unitField(it)
		if !ok {
			unit = scraper.UnitFromName(name)
		}
		out = append(out, Commodity{ID: id, Code: code, Name: name, Unit: unit})
	}
	return out, nil
}

func (f *Fetcher) fetchItems(ctx context.Context, path string) ([]any, error) {
	body, err := f.MakeRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := scraper.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	items, ok := scraper.Items(doc)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, scraper.ErrNoData)
	}
	return items, nil
}

func (f *Fetcher) pricesForProvince(ctx context.Context, p Province, commodities []Commodity) []scraper.PriceRecord {
	regionCode := p.Code
	if code, ok := scraper.ProvinceCode(p.Name); ok {
		regionCode = code
	}

	var out []scraper.PriceRecord
	for _, c := range commodities {
		if ctx.Err() != nil {
			return out
		}
		points, err := f.priceSeries(ctx, p.ID, c.ID)
		if err != nil {
			f.log.LogWarnf("Failed to get price for %s in %s: %v", c.Name, p.Name, err)
			continue
		}

		commodityCode := c.Code
		if code, ok := scraper.CommodityCode(c.Name); ok {
			commodityCode = code
		}
		unit := c.Unit
		if unit == "" {
			unit = scraper.UnitFromName(c.Name)
		}
		for _, pt := range points {
			out = append(out, scraper.PriceRecord{
				CommodityCode: commodityCode,
				CommodityName: c.Name,
				RegionCode:    regionCode,
				RegionName:    p.Name,
				PriceType:     scraper.PriceTypeConsumer,
				Price:         pt.Price,
				Unit:          unit,
				Date:          pt.Date,
				Source:        sourceLabel,
			})
		}
	}
	return out
}

type pricePoint struct {
	Price float64
	Date  time.Time
}

var (
	priceField = scraper.PriceField("price", "harga", "nilai", "value", "harga_rata_rata")
	dateField  = scraper.DateField("date", "tanggal", "periode", "updated_at")
)

// priceSeries walks the JSON endpoints in order and falls back to the HTML
// price page. An endpoint that answers with a list ends the chain even when
// the list is empty.
func (f *Fetcher) priceSeries(ctx context.Context, provinceID, commodityID string) ([]pricePoint, error) {
	q := url.Values{"province": {provinceID}, "commodity": {commodityID}}.Encode()
	endpoints := []string{
		"/api/prices?" + q,
		"/api/daily-prices?" + q,
		fmt.Sprintf("/data/prices/%s/%s", url.PathEscape(provinceID), url.PathEscape(commodityID)),
	}

	for _, endpoint := range endpoints {
		items, err := f.fetchItems(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		var out []pricePoint
		for _, it := range items {
			price, ok := priceField(it)
			if !ok {
				continue
			}
			// Missing dates stay zero and are dropped by validation.
			date, _ := dateField(it)
			out = append(out, pricePoint{Price: price, Date: date})
		}
		return out, nil
	}

	body, err := f.MakeRequest(ctx, "/harga?"+q)
	if err != nil {
		return nil, err
	}
	return pricesFromHTML(body)
}
