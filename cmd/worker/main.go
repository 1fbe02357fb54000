package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/app"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/infrastructure/database"
	"github.com/yokitheyo/backdrop/internal/infrastructure/kafka"
	"github.com/yokitheyo/backdrop/internal/infrastructure/storage"
	"github.com/yokitheyo/backdrop/internal/metrics"
	"github.com/yokitheyo/backdrop/internal/repository/postgres"
	"github.com/yokitheyo/backdrop/internal/retry"
	"github.com/yokitheyo/backdrop/internal/usecase"
	"github.com/yokitheyo/backdrop/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Backdrop Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := zlog.SetLevel(cfg.Logging.Level); err != nil {
		zlog.Logger.Warn().Err(err).Str("level", cfg.Logging.Level).Msg("invalid log level, keeping default")
	}

	db, err := database.Open(&cfg.Database, cfg.Migrations.Path)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to prepare database")
	}

	storageService, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	m := metrics.MustNew(prometheus.DefaultRegisterer)

	pipeline, err := app.NewPipeline(cfg, m)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}

	// The worker never enqueues, so it runs without a producer.
	repo := postgres.NewCompositeRepository(db, retry.DefaultStrategy)
	jobTimeout := time.Duration(cfg.Worker.JobTimeoutSec) * time.Second
	compositeUsecase := usecase.NewCompositeUsecase(pipeline, storageService, repo, nil, m)
	compositeUsecase.SetStaleAfter(2 * jobTimeout)
	compositeWorker := worker.NewCompositeWorker(compositeUsecase, jobTimeout)

	kafkaConsumer := kafka.NewConsumer(&cfg.Kafka, retry.DefaultStrategy, compositeWorker.HandleCompositeTask)
	defer kafkaConsumer.Close()

	var metricsSrv *http.Server
	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			zlog.Logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("Starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kafkaConsumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	select {
	case <-done:
	case <-time.After(time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second):
		zlog.Logger.Warn().Msg("consumer did not stop in time")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			zlog.Logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	database.Close(db)
	zlog.Logger.Info().Msg("Worker shutdown complete")
}
