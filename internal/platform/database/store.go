package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"komoditas/internal/core/store"
)

// Store writes records with INSERT .. ON CONFLICT on their natural keys.
type Store struct {
	db *gorm.DB
}

func NewStore(d *DB) *Store { return &Store{db: d.gorm} }

func upsert(keys []string, updates ...string) clause.OnConflict {
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	return clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(append(updates, "updated_at")),
	}
}

func (s *Store) UpsertCommodity(ctx context.Context, c store.Commodity) error {
	row := Commodity{Code: c.Code, Name: c.Name, Category: c.Category, Unit: c.Unit}
	err := s.db.WithContext(ctx).
		Clauses(upsert([]string{"code"}, "name", "category", "unit")).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert commodity %s: %w", c.Code, err)
	}
	return nil
}

func (s *Store) UpsertRegion(ctx context.Context, r store.Region) error {
	row := Region{Code: r.Code, Name: r.Name, Type: string(r.Type)}
	err := s.db.WithContext(ctx).
		Clauses(upsert([]string{"code"}, "name", "type")).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert region %s: %w", r.Code, err)
	}
	return nil
}

func (s *Store) UpsertPriceRecord(ctx context.Context, p store.PriceRecord) error {
	row := PriceRecord{
		CommodityCode: p.CommodityCode,
		RegionCode:    p.RegionCode,
		PriceType:     p.PriceType,
		Date:          store.Day(p.Date),
		Source:        p.Source,
		Price:         decimal.NewFromFloat(p.Price).Round(2),
		Currency:      p.Currency,
		Unit:          p.Unit,
		Period:        p.Period,
	}
	err := s.db.WithContext(ctx).
		Clauses(upsert(
			[]string{"commodity_code", "region_code", "price_type", "date", "source"},
			"price", "currency", "unit", "period",
		)).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", p.CommodityCode, p.RegionCode, err)
	}
	return nil
}

func (s *Store) UpsertWeatherRecord(ctx context.Context, w store.WeatherRecord) error {
	row := WeatherRecord{
		RegionCode:  w.RegionCode,
		WeatherType: w.WeatherType,
		Date:        w.Date.UTC(),
		Source:      w.Source,
		RegionName:  w.RegionName,
		Value:       decimal.NewFromFloat(w.Value).Round(4),
		Unit:        w.Unit,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Description: w.Description,
	}
	err := s.db.WithContext(ctx).
		Clauses(upsert(
			[]string{"region_code", "weather_type", "date"},
			"source", "region_name", "value", "unit", "latitude", "longitude", "description",
		)).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert weather %s/%s: %w", w.RegionCode, w.WeatherType, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
