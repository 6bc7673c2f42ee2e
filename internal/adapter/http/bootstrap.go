package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identityapp/internal/adapter/http/routes"
	"identityapp/internal/core/port"
	"identityapp/internal/core/telemetry"
	"identityapp/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// StartServerWithConfig serves the identity API until ctx is cancelled, then
// drains in-flight requests.
func StartServerWithConfig(ctx context.Context, cfg *config.AppConfig, metrics *telemetry.AppMetrics, probe port.Telemetry, logger *config.Logger) error {
	container, err := NewContainer(ctx, cfg, metrics, probe)
	if err != nil {
		return err
	}
	defer container.Close()

	router := routes.SetupRouterWithConfig(routes.HandlersConfig{
		AuthHandler: container.AuthHandler,
		UserHandler: container.UserHandler,
		Identity:    container.Identity,
	}, metrics, logger, cfg)

	slog.Info("Server starting",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"database_driver", cfg.DatabaseDriver,
		"cache_driver", cfg.CacheDriver,
		"rate_limit_enabled", cfg.RateLimitEnabled,
		"https_enforced", cfg.EnforceHTTPS)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		slog.Error("Server failed to start", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
