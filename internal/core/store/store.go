// Package store defines the persistence collaborator that receives normalized records.
package store

import (
	"context"
	"time"
)

type Commodity struct {
	Code     string
	Name     string
	Category string
	Unit     string
}

type RegionType string

const (
	RegionCountry  RegionType = "country"
	RegionProvince RegionType = "province"
)

type Region struct {
	Code string
	Name string
	Type RegionType
}

// PriceKey is the natural key of a price observation.
type PriceKey struct {
	CommodityCode string
	RegionCode    string
	PriceType     string
	Date          time.Time
	Source        string
}

type PriceRecord struct {
	PriceKey
	Price    float64
	Currency string
	Unit     string
	Period   string
}

// Day truncates t to the UTC calendar date; prices are keyed per day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeatherKey is the natural key of a weather observation.
type WeatherKey struct {
	RegionCode  string
	WeatherType string
	Date        time.Time
}

// WeatherRecord is keyed without its source: a later source overwrites an earlier one.
type WeatherRecord struct {
	WeatherKey
	Source      string
	RegionName  string
	Value       float64
	Unit        string
	Latitude    *float64
	Longitude   *float64
	Description string
}

// Store upserts by natural key: writing the same key twice keeps one row
// holding the latest values. Implementations must be safe for concurrent use.
type Store interface {
	UpsertCommodity(ctx context.Context, c Commodity) error
	UpsertRegion(ctx context.Context, r Region) error
	UpsertPriceRecord(ctx context.Context, p PriceRecord) error
	UpsertWeatherRecord(ctx context.Context, w WeatherRecord) error
}
