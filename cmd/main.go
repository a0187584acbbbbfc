package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"komoditas/internal/config"
	"komoditas/internal/core/orchestrator"
	"komoditas/internal/core/schedule"
	"komoditas/internal/core/scraper"
	"komoditas/internal/core/sources/bmkg"
	"komoditas/internal/core/sources/bps"
	"komoditas/internal/core/sources/panelharga"
	"komoditas/internal/core/store"
	"komoditas/internal/logger"
	"komoditas/internal/platform/database"
	rds "komoditas/internal/platform/redis"
	"komoditas/internal/platform/tasks"
	"komoditas/internal/server"
	"komoditas/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[komoditas] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")
	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", cfg.Timezone, err)
	}

	redisSvc, err := rds.New(ctx, rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	components := map[string]server.Checker{"redis": redisSvc}

	var st store.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, database.Options{
			DSN:         cfg.DatabaseURL,
			Production:  cfg.AppEnv == "production",
			AutoMigrate: cfg.AutoMigrate,
			MaxOpen:     10,
			MaxIdle:     5,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		st = database.NewStore(db)
		components["database"] = db
	} else {
		logr.LogWarn("DATABASE_URL not set, records are kept in memory")
	}

	mgr := orchestrator.New(orchestrator.Options{
		Store:    st,
		Mirror:   redisSvc,
		Location: loc,
		Tick:     cfg.SchedulerTick,
	})

	if err := registerSources(cfg, mgr, redisSvc); err != nil {
		log.Fatal(err)
	}

	// Due runs go through asynq in queue mode so several replicas share one run per source.
	var dispatcher schedule.Dispatcher
	var asynqServer *asynq.Server
	if cfg.DispatchMode == "queue" {
		taskClient := tasks.New(redisSvc.AsynqRedisOpt(), cfg.TaskMaxRetries)
		defer taskClient.Close()
		dispatcher = taskClient

		asynqServer = asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
			Concurrency: 3,
			Queues:      map[string]int{"default": 1},
		})
		mux := worker.NewMux()
		mux.HandleFunc(tasks.TaskTypeScraperRun, mgr.HandleRunTask)
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Fatalf("[worker] start: %v", err)
		}
	}

	runCtx, cancelRuns := context.WithCancel(ctx)
	mgr.Start(runCtx, dispatcher)

	app := fiber.New(fiber.Config{
		AppName: "Komoditas Scraper Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		Manager:    mgr,
		Components: components,
	})
	healthHandler.SetReady()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
		cancelRuns()
		mgr.Stop()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}

// registerSources wires the three fetchers with their built-in schedules and
// any overrides from the schedules file.
func registerSources(cfg config.Config, mgr *orchestrator.Manager, cache scraper.Cache) error {
	phCfg := panelharga.DefaultConfig()
	phCfg.BaseURL = cfg.PanelHargaBaseURL
	bmkgCfg := bmkg.DefaultConfig()
	bmkgCfg.BaseURL = cfg.BMKGBaseURL
	bpsCfg := bps.DefaultConfig()
	bpsCfg.BaseURL = cfg.BPSBaseURL

	fetchers := map[string]scraper.Fetcher{
		panelharga.SourceID: panelharga.New(phCfg, cache),
		bmkg.SourceID:       bmkg.New(bmkgCfg, cache),
		bps.SourceID:        bps.New(bpsCfg, cfg.BPSAPIKey, cache),
	}

	overrides, err := config.LoadSchedules(cfg.SchedulesFile)
	if err != nil {
		return err
	}
	byID := map[string]config.ScheduleOverride{}
	for _, o := range overrides {
		byID[o.Source] = o
	}

	for _, s := range schedule.Defaults() {
		f, ok := fetchers[s.SourceID]
		if !ok {
			continue
		}
		if o, ok := byID[s.SourceID]; ok {
			if o.Cron != "" {
				s.CronExpression = o.Cron
			}
			if o.Enabled != nil {
				s.Enabled = *o.Enabled
			}
		}
		if err := mgr.Register(f, s.CronExpression, s.Enabled); err != nil {
			return err
		}
	}
	return nil
}
