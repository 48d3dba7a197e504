package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"trialstore/internal/jobs"
	"trialstore/internal/maintenance"
	"trialstore/internal/platform/config"
	"trialstore/internal/platform/httpserver"
	"trialstore/internal/platform/logger"
	"trialstore/internal/platform/metrics"
	platformredis "trialstore/internal/platform/redis"
	"trialstore/internal/quality"
	qualitycache "trialstore/internal/quality/cache"
	"trialstore/internal/registry"
	"trialstore/internal/trial/handler"
	"trialstore/internal/trial/service"
	"trialstore/internal/trial/store"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	pg := store.NewPostgres(db)
	txRunner := store.NewPostgresTxRunner(db)
	source := registry.NewClient(cfg.RegistryBaseURL)

	trials := service.New(source, pg, pg, txRunner, m, log, cfg.IngestParallel)
	engine := quality.NewEngine(pg, log)
	reportCache := qualitycache.New(redisClient, cfg.QualityCacheTTL)
	qualitySvc := quality.NewService(engine, reportCache, m, log)
	maint := maintenance.New(db, log)

	checks := []handler.HealthCheck{
		{Name: "postgres", Check: db.PingContext},
	}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: redisClient.Health})
	}

	h := handler.New(trials, qualitySvc, maint, log, checks...)
	srv := httpserver.New(cfg.Addr, h.Router())

	var scheduler *jobs.Scheduler
	if cfg.EnableScheduler {
		scheduler = jobs.New(log)
		if err := scheduler.Add("quality-run", cfg.QualityCronSpec, func(ctx context.Context) error {
			_, err := qualitySvc.Report(ctx, true)
			return err
		}); err != nil {
			log.Error("schedule quality run", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Add("optimize", cfg.MaintenanceCron, func(ctx context.Context) error {
			_, err := maint.Optimize(ctx)
			return err
		}); err != nil {
			log.Error("schedule optimize", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	log.Info("starting trialstore", "addr", cfg.Addr, "scheduler", cfg.EnableScheduler)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("trialstore stopped")
}
