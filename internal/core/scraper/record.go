package scraper

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrInvalidRecord = errors.New("invalid record")

const (
	PriceTypeConsumer = "KONSUMEN"
	PriceTypeProducer = "PRODUSEN"
)

const (
	WeatherTemperature   = "TEMPERATURE"
	WeatherHumidity      = "HUMIDITY"
	WeatherWindSpeed     = "WIND_SPEED"
	WeatherWindDirection = "WIND_DIRECTION"
	WeatherPressure      = "PRESSURE"
	WeatherRainfall      = "RAINFALL"
	WeatherCondition     = "WEATHER_CONDITION"
)

// Record is one normalized observation produced by a fetcher.
type Record interface {
	// Validate reports why the record must not leave the fetcher, or nil.
	Validate() error
	// DedupKey groups records describing the same identity and metric.
	DedupKey() string
	ObservedAt() time.Time
}

type PriceRecord struct {
	CommodityCode string    `json:"commodityCode"`
	CommodityName string    `json:"commodityName"`
	RegionCode    string    `json:"regionCode"`
	RegionName    string    `json:"regionName"`
	PriceType     string    `json:"priceType"`
	Price         float64   `json:"price"`
	Unit          string    `json:"unit"`
	Date          time.Time `json:"date"`
	Source        string    `json:"source"`
	Period        string    `json:"period,omitempty"`
	Category      string    `json:"category,omitempty"`
}

func (r PriceRecord) Validate() error {
	switch {
	case blank(r.CommodityCode), blank(r.CommodityName):
		return fmt.Errorf("%w: missing commodity", ErrInvalidRecord)
	case blank(r.RegionCode):
		return fmt.Errorf("%w: missing region", ErrInvalidRecord)
	case blank(r.Source):
		return fmt.Errorf("%w: missing source", ErrInvalidRecord)
	case math.IsNaN(r.Price) || math.IsInf(r.Price, 0) || r.Price <= 0:
		return fmt.Errorf("%w: price %v is not a positive number", ErrInvalidRecord, r.Price)
	case r.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	return nil
}

func (r PriceRecord) DedupKey() string {
	return strings.Join([]string{r.CommodityCode, r.RegionCode, r.PriceType}, "|")
}

func (r PriceRecord) ObservedAt() time.Time { return r.Date }

type WeatherRecord struct {
	RegionCode  string    `json:"regionCode"`
	RegionName  string    `json:"regionName"`
	WeatherType string    `json:"weatherType"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Description string    `json:"description,omitempty"`
}

func (r WeatherRecord) Validate() error {
	switch {
	case blank(r.RegionCode), blank(r.RegionName):
		return fmt.Errorf("%w: missing region", ErrInvalidRecord)
	case blank(r.WeatherType):
		return fmt.Errorf("%w: missing weather type", ErrInvalidRecord)
	case blank(r.Source):
		return fmt.Errorf("%w: missing source", ErrInvalidRecord)
	case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
		return fmt.Errorf("%w: value %v is not finite", ErrInvalidRecord, r.Value)
	case r.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	return nil
}

func (r WeatherRecord) DedupKey() string {
	return r.RegionCode + "|" + r.WeatherType
}

func (r WeatherRecord) ObservedAt() time.Time { return r.Date }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Validate splits records into the valid ones and the number dropped.
func Validate(records []Record) ([]Record, int) {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r == nil || r.Validate() != nil {
			continue
		}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

// AsRecords widens a typed slice for the run pipeline.
func AsRecords[T Record](in []T) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}
