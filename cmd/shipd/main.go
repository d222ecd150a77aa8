package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oneclickship/telemetry/internal/api"
	"github.com/oneclickship/telemetry/internal/broadcast"
	"github.com/oneclickship/telemetry/internal/config"
	"github.com/oneclickship/telemetry/internal/insight"
	"github.com/oneclickship/telemetry/internal/metrics"
	"github.com/oneclickship/telemetry/internal/recorder"
	"github.com/oneclickship/telemetry/internal/status"
	"github.com/oneclickship/telemetry/internal/store"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Stores
	projectStore := store.NewProjectStore(db)
	sessionStore := store.NewSessionStore(db)
	eventStore := store.NewEventStore(db)
	operationStore := store.NewOperationStore(db)
	statusStore := store.NewStatusStore(db)
	insightStore := store.NewInsightStore(db)

	// Fast-path projection cache and live fan-out
	cache := status.New(cfg.StatusTTL)
	broadcaster := broadcast.New(logger)

	// Ingestion pipeline
	svc := recorder.NewService(projectStore, sessionStore, eventStore,
		operationStore, statusStore, cache, broadcaster, logger)

	// Read side
	aggregator := metrics.NewAggregator(db)
	insights := insight.NewGenerator(cfg.AnthropicAPIKey, cfg.InsightModel,
		cfg.InsightEnabled, sessionStore, eventStore, insightStore, logger)

	// Router
	router := api.NewRouter(db, svc, sessionStore, eventStore, operationStore,
		statusStore, projectStore, cache, broadcaster, aggregator, insights,
		cfg.SubscriberBuffer, cfg.APIKey, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("telemetry server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
