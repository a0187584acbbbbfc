package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"komoditas/internal/core/store"
)

type captured struct {
	sql  string
	vars []any
}

// newDryStore builds statements against the postgres dialect without a server.
func newDryStore(t *testing.T) (*Store, *[]captured) {
	t.Helper()
	g, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	var out []captured
	err = g.Callback().Create().After("gorm:create").Register("test:capture", func(db *gorm.DB) {
		out = append(out, captured{sql: db.Statement.SQL.String(), vars: db.Statement.Vars})
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(&DB{gorm: g}), &out
}

func TestUpsertPriceRecordStatement(t *testing.T) {
	s, out := newDryStore(t)
	at := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	err := s.UpsertPriceRecord(context.Background(), store.PriceRecord{
		PriceKey: store.PriceKey{CommodityCode: "BERAS", RegionCode: "31", PriceType: "KONSUMEN", Date: at, Source: "Panel Harga Pangan"},
		Price:    14500.456, Currency: "IDR", Unit: "kg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(*out) != 1 {
		t.Fatalf("expected one statement, got %d", len(*out))
	}
	stmt := (*out)[0]
	for _, want := range []string{`INSERT INTO "price_records"`, `ON CONFLICT`, `"commodity_code","region_code","price_type","date","source"`, `DO UPDATE SET`, `"price"="excluded"."price"`} {
		if !strings.Contains(stmt.sql, want) {
			t.Errorf("statement missing %q:\n%s", want, stmt.sql)
		}
	}

	var sawPrice, sawDay bool
	for _, v := range stmt.vars {
		switch x := v.(type) {
		case decimal.Decimal:
			sawPrice = x.Equal(decimal.RequireFromString("14500.46"))
		case time.Time:
			if x.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
				sawDay = true
			}
		}
	}
	if !sawPrice || !sawDay {
		t.Errorf("expected rounded price and truncated date in %v", stmt.vars)
	}
}

func TestUpsertReferenceAndWeatherStatements(t *testing.T) {
	s, out := newDryStore(t)
	ctx := context.Background()
	lat := -6.2
	_ = s.UpsertCommodity(ctx, store.Commodity{Code: "BERAS", Name: "Beras", Category: "Pangan", Unit: "kg"})
	_ = s.UpsertRegion(ctx, store.Region{Code: "NATIONAL", Name: "Indonesia", Type: store.RegionCountry})
	_ = s.UpsertWeatherRecord(ctx, store.WeatherRecord{
		WeatherKey: store.WeatherKey{RegionCode: "31", WeatherType: "TEMPERATURE", Date: time.Now()},
		Source:     "BMKG",
		RegionName: "DKI Jakarta", Value: 27.5, Unit: "°C", Latitude: &lat,
	})

	if len(*out) != 3 {
		t.Fatalf("expected three statements, got %d", len(*out))
	}
	checks := []struct{ table, conflict string }{
		{`"commodities"`, `ON CONFLICT ("code")`},
		{`"regions"`, `ON CONFLICT ("code")`},
		{`"weather_records"`, `ON CONFLICT ("region_code","weather_type","date") DO UPDATE SET "source"="excluded"."source"`},
	}
	for i, c := range checks {
		sql := (*out)[i].sql
		if !strings.Contains(sql, c.table) || !strings.Contains(sql, c.conflict) {
			t.Errorf("statement %d: expected %s with %s, got\n%s", i, c.table, c.conflict, sql)
		}
	}
}
