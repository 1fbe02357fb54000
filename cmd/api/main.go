package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/app"
	"github.com/yokitheyo/backdrop/internal/config"
	httpHandler "github.com/yokitheyo/backdrop/internal/handler/http"
	"github.com/yokitheyo/backdrop/internal/handler/middleware"
	"github.com/yokitheyo/backdrop/internal/infrastructure/auth"
	"github.com/yokitheyo/backdrop/internal/infrastructure/database"
	"github.com/yokitheyo/backdrop/internal/infrastructure/kafka"
	"github.com/yokitheyo/backdrop/internal/infrastructure/storage"
	"github.com/yokitheyo/backdrop/internal/metrics"
	"github.com/yokitheyo/backdrop/internal/repository/postgres"
	"github.com/yokitheyo/backdrop/internal/retry"
	"github.com/yokitheyo/backdrop/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Backdrop API Server")

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

	kafkaProducer := kafka.NewProducer(&cfg.Kafka, retry.DefaultStrategy)
	defer kafkaProducer.Close()

	repo := postgres.NewCompositeRepository(db, retry.DefaultStrategy)
	compositeUsecase := usecase.NewCompositeUsecase(pipeline, storageService, repo, kafkaProducer, m)
	verifier := auth.NewJWTVerifier(&cfg.Auth)

	engine := ginext.New(cfg.Server.Mode)
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(m),
		middleware.CORSMiddleware(),
	)

	engine.GET("/", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"message": "Server is running!"})
	})
	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpHandler.NewCompositeHandler(pipeline, compositeUsecase).
		RegisterRoutes(engine, middleware.AuthMiddleware(verifier))
	if cfg.Storage.Type == "local" {
		httpHandler.NewStorageHandler(storageService).RegisterRoutes(engine)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	database.Close(db)
	zlog.Logger.Info().Msg("API shutdown complete")
}
