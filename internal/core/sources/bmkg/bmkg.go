// Package bmkg reads weather data from the BMKG open data XML feeds.
package bmkg

import (
	"context"
	"fmt"
	"time"

	"komoditas/internal/core/scraper"
	"komoditas/internal/logger"
)

const SourceID = "bmkg-weather"

const (
	endpointDigitalForecast = "/DataMKG/MEWS/DigitalForecast/DigitalForecast.xml"
	endpointMaritime        = "/DataMKG/MEWS/forecast_weather.xml"

	forecastCacheTTL = time.Hour
	dedupWindow      = time.Hour
)

var climateEndpoints = []string{
	"/DataMKG/MEWS/climate_data.xml",
	"/autogempa.xml",
	"/DataMKG/MEWS/forecast.xml",
}

func DefaultConfig() scraper.Config {
	return scraper.Config{
		BaseURL:        "https://data.bmkg.go.id",
		Timeout:        45 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 3 * time.Second,
		RateLimit:      5 * time.Second,
		Headers:        scraper.GetHeaderProfile(scraper.StrategyXMLFeed).Headers(),
	}
}

type Fetcher struct {
	*scraper.Base
	log *logger.Logger
}

func New(cfg scraper.Config, cache scraper.Cache, opts ...scraper.Option) *Fetcher {
	log := logger.New("BMKG")
	opts = append([]scraper.Option{scraper.WithLogger(log)}, opts...)
	return &Fetcher{Base: scraper.NewBase(SourceID, cfg, cache, opts...), log: log}
}

// Scrape collects the digital forecast, climate and maritime datasets concurrently.
func (f *Fetcher) Scrape(ctx context.Context) ([]scraper.Record, error) {
	f.log.LogInfo("Starting weather data scraping")
	records, err := scraper.Settle(ctx, f.log,
		scraper.SubFetch[scraper.WeatherRecord]{Name: "digital forecast", Fn: f.digitalForecast},
		scraper.SubFetch[scraper.WeatherRecord]{Name: "climate data", Fn: f.climateData},
		scraper.SubFetch[scraper.WeatherRecord]{Name: "maritime weather", Fn: f.maritimeWeather},
	)
	if err != nil {
		return nil, err
	}
	return scraper.AsRecords(records), nil
}

// PostProcess drops readings of the same region and metric within an hour of each other.
func (f *Fetcher) PostProcess(_ context.Context, records []scraper.Record) ([]scraper.Record, error) {
	out := scraper.Dedupe(records, dedupWindow)
	f.log.LogInfof("Processed %d unique weather records", len(out))
	return out, nil
}

func (f *Fetcher) digitalForecast(ctx context.Context) ([]scraper.WeatherRecord, error) {
	key := f.CacheKey("digital-forecast")
	if cached, ok := scraper.LoadCached[[]scraper.WeatherRecord](ctx, f.Base, key); ok {
		f.log.LogDebugf("Using cached digital forecast data")
		return cached, nil
	}

	body, err := f.MakeRequest(ctx, endpointDigitalForecast)
	if err != nil {
		return nil, err
	}
	doc, err := parseXML(body)
	if err != nil {
		return nil, err
	}
	records := parseForecast(doc)
	if len(records) > 0 {
		f.SetCached(ctx, key, records, forecastCacheTTL)
	}
	f.log.LogInfof("Scraped %d digital forecast records", len(records))
	return records, nil
}

// climateData walks the fallback chain and keeps the first endpoint that yields observations.
func (f *Fetcher) climateData(ctx context.Context) ([]scraper.WeatherRecord, error) {
	var lastErr error
	for _, endpoint := range climateEndpoints {
		body, err := f.MakeRequest(ctx, endpoint)
		if err != nil {
			lastErr = err
			f.log.LogDebugf("Climate endpoint %s failed, trying next: %v", endpoint, err)
			continue
		}
		doc, err := parseXML(body)
		if err != nil {
			lastErr = err
			f.log.LogDebugf("Climate endpoint %s unparseable, trying next: %v", endpoint, err)
			continue
		}
		if records := parseObservations(doc); len(records) > 0 {
			f.log.LogInfof("Scraped %d climate records from %s", len(records), endpoint)
			return records, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all climate endpoints failed: %w", lastErr)
	}
	return nil, fmt.Errorf("climate endpoints: %w", scraper.ErrNoData)
}

func (f *Fetcher) maritimeWeather(ctx context.Context) ([]scraper.WeatherRecord, error) {
	body, err := f.MakeRequest(ctx, endpointMaritime)
	if err != nil {
		return nil, err
	}
	doc, err := parseXML(body)
	if err != nil {
		return nil, err
	}
	records := parseObservations(doc)
	f.log.LogInfof("Scraped %d maritime records", len(records))
	return records, nil
}
