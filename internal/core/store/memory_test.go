package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryUpsertByNaturalKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	day := time.Date(2024, 3, 1, 7, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	key := PriceKey{CommodityCode: "BERAS", RegionCode: "31", PriceType: "KONSUMEN", Date: day, Source: "BPS"}
	_ = m.UpsertPriceRecord(ctx, PriceRecord{PriceKey: key, Price: 14000, Currency: "IDR", Unit: "kg"})
	key.Date = day.UTC()
	_ = m.UpsertPriceRecord(ctx, PriceRecord{PriceKey: key, Price: 14500, Currency: "IDR", Unit: "kg"})

	prices := m.Prices()
	if len(prices) != 1 || prices[0].Price != 14500 {
		t.Fatalf("expected one row with the latest price, got %+v", prices)
	}

	_ = m.UpsertCommodity(ctx, Commodity{Code: "BERAS", Name: "Beras", Unit: "kg"})
	_ = m.UpsertCommodity(ctx, Commodity{Code: "BERAS", Name: "Beras Medium", Unit: "kg"})
	if c := m.Commodities(); len(c) != 1 || c["BERAS"].Name != "Beras Medium" {
		t.Errorf("unexpected commodities %+v", c)
	}

	wk := WeatherKey{RegionCode: "31", WeatherType: "TEMPERATURE", Date: day}
	_ = m.UpsertWeatherRecord(ctx, WeatherRecord{WeatherKey: wk, Source: "BMKG", Value: 30})
	_ = m.UpsertWeatherRecord(ctx, WeatherRecord{WeatherKey: wk, Source: "BMKG", Value: 31})
	if w := m.Weather(); len(w) != 1 || w[0].Value != 31 {
		t.Errorf("unexpected weather %+v", w)
	}
}

func TestMemoryWeatherLaterSourceOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	at := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	wk := WeatherKey{RegionCode: "31", WeatherType: "TEMPERATURE", Date: at}

	_ = m.UpsertWeatherRecord(ctx, WeatherRecord{WeatherKey: wk, Source: "BMKG", Value: 29})
	_ = m.UpsertWeatherRecord(ctx, WeatherRecord{WeatherKey: wk, Source: "BMKG Maritime", Value: 28.5})

	w := m.Weather()
	if len(w) != 1 {
		t.Fatalf("expected one row for region/type/date, got %d", len(w))
	}
	if w[0].Source != "BMKG Maritime" || w[0].Value != 28.5 {
		t.Errorf("expected the later source to win, got %+v", w[0])
	}
}

func TestMemoryPricesKeyedPerDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := PriceKey{CommodityCode: "CABAI_MERAH", RegionCode: "32", PriceType: "KONSUMEN", Source: "Panel Harga Pangan"}

	key.Date = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	_ = m.UpsertPriceRecord(ctx, PriceRecord{PriceKey: key, Price: 52000})
	key.Date = time.Date(2024, 3, 1, 17, 45, 0, 0, time.UTC)
	_ = m.UpsertPriceRecord(ctx, PriceRecord{PriceKey: key, Price: 54000})

	prices := m.Prices()
	if len(prices) != 1 || prices[0].Price != 54000 {
		t.Fatalf("expected one row per day with the latest price, got %+v", prices)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !prices[0].Date.Equal(want) {
		t.Errorf("expected date truncated to %v, got %v", want, prices[0].Date)
	}
}
