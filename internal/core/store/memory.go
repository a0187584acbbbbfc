package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store, used when no database is configured and in tests.
type Memory struct {
	mu          sync.RWMutex
	commodities map[string]Commodity
	regions     map[string]Region
	prices      map[PriceKey]PriceRecord
	weather     map[WeatherKey]WeatherRecord
}

func NewMemory() *Memory {
	return &Memory{
		commodities: map[string]Commodity{},
		regions:     map[string]Region{},
		prices:      map[PriceKey]PriceRecord{},
		weather:     map[WeatherKey]WeatherRecord{},
	}
}

func (m *Memory) UpsertCommodity(_ context.Context, c Commodity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commodities[c.Code] = c
	return nil
}

func (m *Memory) UpsertRegion(_ context.Context, r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[r.Code] = r
	return nil
}

func (m *Memory) UpsertPriceRecord(_ context.Context, p PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Date = Day(p.Date)
	m.prices[p.PriceKey] = p
	return nil
}

func (m *Memory) UpsertWeatherRecord(_ context.Context, w WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Date = w.Date.UTC()
	m.weather[w.WeatherKey] = w
	return nil
}

func (m *Memory) Commodities() map[string]Commodity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Commodity, len(m.commodities))
	for k, v := range m.commodities {
		out[k] = v
	}
	return out
}

func (m *Memory) Regions() map[string]Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Region, len(m.regions))
	for k, v := range m.regions {
		out[k] = v
	}
	return out
}

func (m *Memory) Prices() []PriceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PriceRecord, 0, len(m.prices))
	for _, v := range m.prices {
		out = append(out, v)
	}
	return out
}

func (m *Memory) Weather() []WeatherRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WeatherRecord, 0, len(m.weather))
	for _, v := range m.weather {
		out = append(out, v)
	}
	return out
}
