// Package bps reads commodity price tables published by Badan Pusat Statistik.
package bps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"komoditas/internal/core/scraper"
	"komoditas/internal/logger"
)

const SourceID = "bps-statistics"

const (
	sourceLabel  = "BPS"
	websiteLabel = "BPS Website"

	nationalDomain   = "0000"
	consumerCacheTTL = 2 * time.Hour
	dedupWindow      = 24 * time.Hour
	lookupLimit      = 100
)

// DefaultWebsiteURLs are the public statictable pages read when the WebAPI has nothing.
var DefaultWebsiteURLs = []string{
	"https://www.bps.go.id/statictable/2009/06/15/907/rata-rata-harga-beras-di-penggilingan.html",
	"https://www.bps.go.id/statictable/2014/09/08/950/rata-rata-harga-pembelian-petani.html",
}

func DefaultConfig() scraper.Config {
	return scraper.Config{
		BaseURL:        "https://webapi.bps.go.id/v1",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		RateLimit:      3 * time.Second,
		Headers:        scraper.GetHeaderProfile(scraper.StrategyJSONAPI).Headers(),
	}
}

type Fetcher struct {
	*scraper.Base
	log *logger.Logger

	apiKey string
	// WebsiteURLs may be replaced before the first run.
	WebsiteURLs []string
}

// New builds the fetcher. apiKey may be empty; when set it is appended to
// every WebAPI path as /key/<apiKey>.
func New(cfg scraper.Config, apiKey string, cache scraper.Cache, opts ...scraper.Option) *Fetcher {
	log := logger.New("BPS")
	opts = append([]scraper.Option{scraper.WithLogger(log)}, opts...)
	return &Fetcher{
		Base:        scraper.NewBase(SourceID, cfg, cache, opts...),
		log:         log,
		apiKey:      apiKey,
		WebsiteURLs: append([]string(nil), DefaultWebsiteURLs...),
	}
}

// Scrape reads consumer prices, producer prices and regional data concurrently.
func (f *Fetcher) Scrape(ctx context.Context) ([]scraper.Record, error) {
	f.log.LogInfo("Starting statistical data scraping")
	records, err := scraper.Settle(ctx, f.log,
		scraper.SubFetch[scraper.PriceRecord]{Name: "consumer prices", Fn: f.consumerPrices},
		scraper.SubFetch[scraper.PriceRecord]{Name: "producer prices", Fn: func(ctx context.Context) ([]scraper.PriceRecord, error) {
			return f.staticTables(ctx, CategoryProducer)
		}},
		scraper.SubFetch[scraper.PriceRecord]{Name: "regional data", Fn: func(ctx context.Context) ([]scraper.PriceRecord, error) {
			return f.staticTables(ctx, CategoryRegional)
		}},
	)
	if err != nil {
		return nil, err
	}
	return scraper.AsRecords(records), nil
}

func (f *Fetcher) PostProcess(_ context.Context, records []scraper.Record) ([]scraper.Record, error) {
	out := scraper.Dedupe(records, dedupWindow)
	f.log.LogInfof("Processed %d unique price records", len(out))
	return out, nil
}

// Lookup runs the fetcher and returns at most 100 records, optionally
// narrowed to one commodity and one region. Empty filters match everything.
func (f *Fetcher) Lookup(ctx context.Context, commodityCode, regionCode string) ([]scraper.PriceRecord, error) {
	res := scraper.Run(ctx, f)
	if !res.Success {
		return nil, errors.New(res.Error)
	}
	var out []scraper.PriceRecord
	for _, r := range res.Records {
		p, ok := r.(scraper.PriceRecord)
		if !ok {
			continue
		}
		if commodityCode != "" && p.CommodityCode != commodityCode {
			continue
		}
		if regionCode != "" && p.RegionCode != regionCode {
			continue
		}
		out = append(out, p)
		if len(out) == lookupLimit {
			break
		}
	}
	return out, nil
}

// consumerPrices tries static tables, dynamic tables and the public website
// in order and keeps the first non-empty answer.
func (f *Fetcher) consumerPrices(ctx context.Context) ([]scraper.PriceRecord, error) {
	key := f.CacheKey("consumer-prices")
	if cached, ok := scraper.LoadCached[[]scraper.PriceRecord](ctx, f.Base, key); ok && len(cached) > 0 {
		f.log.LogDebugf("Using cached consumer prices data")
		return cached, nil
	}

	approaches := []struct {
		name string
		fn   func(context.Context) ([]scraper.PriceRecord, error)
	}{
		{"static tables", func(ctx context.Context) ([]scraper.PriceRecord, error) {
			return f.staticTables(ctx, CategoryConsumer)
		}},
		{"dynamic tables", func(ctx context.Context) ([]scraper.PriceRecord, error) {
			return f.dynamicTables(ctx, CategoryConsumer)
		}},
		{"website", f.website},
	}

	var errs []error
	for _, a := range approaches {
		records, err := a.fn(ctx)
		if err != nil {
			f.log.LogDebugf("Consumer price approach %s failed, trying next: %v", a.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
			continue
		}
		if len(records) > 0 {
			f.SetCached(ctx, key, records, consumerCacheTTL)
			f.log.LogInfof("Scraped %d consumer price records from %s", len(records), a.name)
			return records, nil
		}
	}
	if len(errs) == len(approaches) {
		return nil, errors.Join(errs...)
	}
	f.log.LogInfo("Scraped 0 consumer price records")
	return nil, nil
}

func (f *Fetcher) staticTables(ctx context.Context, cat Category) ([]scraper.PriceRecord, error) {
	return f.tables(ctx, "statictable", cat)
}

func (f *Fetcher) dynamicTables(ctx context.Context, cat Category) ([]scraper.PriceRecord, error) {
	return f.tables(ctx, "dynamictable", cat)
}

var tableID = scraper.TextField("table_id", "var_id", "id")

// tables lists the tables of one model and reads each of them. A table that
// fails is skipped; only a failing list request is an error.
func (f *Fetcher) tables(ctx context.Context, model string, cat Category) ([]scraper.PriceRecord, error) {
	body, err := f.MakeRequest(ctx, f.apiPath("/api/list/model/%s/domain/%s", model, nationalDomain))
	if err != nil {
		return nil, err
	}
	doc, err := scraper.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s list: %w", model, err)
	}
	list, ok := scraper.Items(doc)
	if !ok {
		f.log.LogWarnf("No %s data found for %s", model, cat)
		return nil, nil
	}

	var out []scraper.PriceRecord
	for _, t := range list {
		id, ok := tableID(t)
		if !ok {
			continue
		}
		rows, err := f.tableData(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.LogWarnf("Failed to process %s %s: %v", model, id, err)
			continue
		}
		for _, row := range rows {
			if r, ok := recordFromRow(row, cat); ok {
				out = append(out, r)
			}
		}
	}
	f.log.Info().Str("model", model).Str("category", string(cat)).Int("records", len(out)).Msg("Tables processed")
	return out, nil
}

func (f *Fetcher) tableData(ctx context.Context, id string) ([]any, error) {
	body, err := f.MakeRequest(ctx, f.apiPath("/api/view/model/data/lang/ind/domain/%s/var/%s", nationalDomain, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	doc, err := scraper.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode table %s: %w", id, err)
	}
	return tableRows(doc), nil
}

func (f *Fetcher) apiPath(format string, args ...any) string {
	p := fmt.Sprintf(format, args...)
	if f.apiKey != "" {
		p += "/key/" + url.PathEscape(f.apiKey)
	}
	return p
}

func (f *Fetcher) website(ctx context.Context) ([]scraper.PriceRecord, error) {
	var out []scraper.PriceRecord
	var lastErr error
	for _, u := range f.WebsiteURLs {
		body, err := f.MakeRequest(ctx, u)
		if err != nil {
			lastErr = err
			f.log.LogWarnf("Failed to scrape URL %s: %v", u, err)
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, websiteRows(doc)...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
