package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/bootstrap"
	"github.com/bryanwahyu/automaton-analyst/internal/config"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
	"github.com/bryanwahyu/automaton-analyst/internal/middleware"
	"github.com/bryanwahyu/automaton-analyst/internal/telemetry"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.LoadOptional(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := telemetry.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	if !cfg.IsConfigured() {
		logger.Warn("llm or alpha vantage key missing, reports will be degraded", zap.Any("status", cfg.Status()))
	}

	ctx := context.Background()
	metrics := middleware.NewMetrics()
	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{Persist: true, Tracker: metrics})
	if err != nil {
		logger.Fatal("bootstrap error", zap.Error(err))
	}
	defer app.Close()

	health := map[string]middleware.HealthChecker{
		"configuration": middleware.ConfigChecker(cfg.Status, "llm", "alpha_vantage"),
		"sources":       middleware.QuotaChecker(app.Usage.Usage),
	}
	if app.DB != nil {
		health["database"] = &middleware.DatabaseHealthChecker{DB: app.DB}
	}
	limiter := ratelimit.NewKeyed(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	defer limiter.Close()

	handler := httpserver.NewRouter(httpserver.Deps{
		Analyses:    app.Service,
		Usage:       app.Usage.Usage,
		Metrics:     metrics,
		Health:      health,
		Ready:       cfg.IsConfigured,
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // POST /v1/analyses/run menunggu sampai run selesai
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
