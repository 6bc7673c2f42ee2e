package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "identityapp/internal/adapter/http"
	"identityapp/internal/adapter/telemetry"
	"identityapp/pkg/config"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "identityapp"
	serviceVersion = "1.0.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := config.NewLogger(serviceName, cfg.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slogger)

	tel, err := telemetry.NewContainer(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		MetricsPort:    cfg.MetricsPort,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}, slogger)
	if err != nil {
		log.Fatal("Failed to initialize telemetry: ", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	tel.AppMetrics.StartSystemMetrics(ctx)

	if err := api.StartServerWithConfig(ctx, cfg, tel.AppMetrics, tel.NewTelemetryProbe(slogger), logger); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shut down gracefully")
}
