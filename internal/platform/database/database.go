// Package database is the Postgres implementation of the record store.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"komoditas/internal/logger"
)

type Options struct {
	DSN         string
	Production  bool
	AutoMigrate bool
	MaxOpen     int
	MaxIdle     int
}

type DB struct {
	gorm *gorm.DB
	log  *logger.Logger
}

// Open connects, verifies the connection and optionally migrates the schema.
func Open(ctx context.Context, opts Options) (*DB, error) {
	level := gormlogger.Info
	if opts.Production {
		level = gormlogger.Error
	}
	g, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	d := &DB{gorm: g, log: logger.New("Database")}
	if err := d.HealthCheck(ctx); err != nil {
		return nil, err
	}
	if opts.AutoMigrate {
		if err := d.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	d.log.LogSuccessf("Database connection verified")
	return d, nil
}

// Migrate creates or alters the tables behind the store.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.gorm.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *DB) HealthCheck(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
