package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type Commodity struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"uniqueIndex;size:64;not null"`
	Name      string    `gorm:"not null"`
	Category  string    `gorm:"size:64"`
	Unit      string    `gorm:"size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Region struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"uniqueIndex;size:64;not null"`
	Name      string    `gorm:"not null"`
	Type      string    `gorm:"size:16"` // country, province
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceRecord is unique per commodity, region, price type, day and source.
type PriceRecord struct {
	ID            uint            `gorm:"primaryKey"`
	CommodityCode string          `gorm:"uniqueIndex:idx_price_identity;size:64;not null"`
	RegionCode    string          `gorm:"uniqueIndex:idx_price_identity;size:64;not null"`
	PriceType     string          `gorm:"uniqueIndex:idx_price_identity;size:16;not null"`
	Date          time.Time       `gorm:"uniqueIndex:idx_price_identity;type:date;not null"`
	Source        string          `gorm:"uniqueIndex:idx_price_identity;size:64;not null"`
	Price         decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency      string          `gorm:"size:3"`
	Unit          string          `gorm:"size:16"`
	Period        string          `gorm:"size:32"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type WeatherRecord struct {
	ID          uint            `gorm:"primaryKey"`
	RegionCode  string          `gorm:"uniqueIndex:idx_weather_identity;size:64;not null"`
	WeatherType string          `gorm:"uniqueIndex:idx_weather_identity;size:32;not null"`
	Date        time.Time       `gorm:"uniqueIndex:idx_weather_identity;not null"`
	Source      string          `gorm:"size:64;not null"`
	RegionName  string
	Value       decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Unit        string          `gorm:"size:16"`
	Latitude    *float64
	Longitude   *float64
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func models() []any {
	return []any{&Commodity{}, &Region{}, &PriceRecord{}, &WeatherRecord{}}
}
