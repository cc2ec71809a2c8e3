package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/andamio-erp/andamio-erp/internal/app"
	"github.com/andamio-erp/andamio-erp/internal/auth"
	"github.com/andamio-erp/andamio-erp/internal/billing"
	"github.com/andamio-erp/andamio-erp/internal/catalog"
	"github.com/andamio-erp/andamio-erp/internal/export"
	"github.com/andamio-erp/andamio-erp/internal/observability"
	"github.com/andamio-erp/andamio-erp/internal/shared"
	"github.com/andamio-erp/andamio-erp/internal/store"
	"github.com/andamio-erp/andamio-erp/jobs"
	"github.com/andamio-erp/andamio-erp/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	docs := store.NewPGStore(dbpool, redisClient, logger)
	auditLogger := shared.NewAuditLogger(dbpool)

	authService := auth.NewService(redisClient, cfg.PINHash, cfg.PINUser, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService)

	billingRepo := billing.NewStoreRepository(docs)
	reportCache := billing.NewReportCache(redisClient, 5*time.Minute)
	billingService := billing.NewService(billingRepo, auditLogger, reportCache, logger)
	archiver := billing.NewArchiver(billingRepo, auditLogger, reportCache, logger)
	billingHandler := billing.NewHandler(logger, billingService, archiver, reportCache, docs)

	catalogService := catalog.NewService(docs)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	pdfClient := report.NewClient(cfg.GotenbergURL, nil)
	exportHandler := export.NewHandler(logger, billingService, docs, pdfClient)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		BillingHandler: billingHandler,
		CatalogHandler: catalogHandler,
		ExportHandler:  exportHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
