package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string
	AutoMigrate   bool

	Timezone      string
	SchedulerTick time.Duration
	SchedulesFile string
	// DispatchMode selects how due runs are started: "queue" (asynq) or "inline"
	DispatchMode   string
	TaskMaxRetries int

	PanelHargaBaseURL string
	BMKGBaseURL       string
	BPSBaseURL        string
	BPSAPIKey         string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AutoMigrate:   getenvBool("DB_AUTO_MIGRATE", false),

		Timezone:       getenv("SCRAPER_TIMEZONE", "Asia/Jakarta"),
		SchedulerTick:  getenvDuration("SCHEDULER_TICK", 30*time.Second),
		SchedulesFile:  os.Getenv("SCHEDULES_FILE"),
		DispatchMode:   getenv("DISPATCH_MODE", "queue"),
		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 0),

		PanelHargaBaseURL: getenv("PANEL_HARGA_BASE_URL", "https://pihps.kemendag.go.id"),
		BMKGBaseURL:       getenv("BMKG_BASE_URL", "https://data.bmkg.go.id"),
		BPSBaseURL:        getenv("BPS_BASE_URL", "https://webapi.bps.go.id/v1"),
		BPSAPIKey:         os.Getenv("BPS_API_KEY"),
	}
	return cfg
}

// ScheduleOverride replaces the built-in cron entry for one source.
type ScheduleOverride struct {
	Source  string `yaml:"source"`
	Cron    string `yaml:"cron"`
	Enabled *bool  `yaml:"enabled"`
}

type schedulesFile struct {
	Schedules []ScheduleOverride `yaml:"schedules"`
}

// LoadSchedules reads schedule overrides from a YAML file:
//
//	schedules:
//	  - source: bmkg-weather
//	    cron: "0 */3 * * *"
//	    enabled: true
//
// An empty path yields no overrides.
func LoadSchedules(path string) ([]ScheduleOverride, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules file: %w", err)
	}
	return ParseSchedules(b)
}

func ParseSchedules(b []byte) ([]ScheduleOverride, error) {
	var f schedulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse schedules file: %w", err)
	}
	for i, s := range f.Schedules {
		if s.Source == "" {
			return nil, fmt.Errorf("schedules[%d]: source is required", i)
		}
	}
	return f.Schedules, nil
}
