// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/health"
	middleware "github.com/mohammed-shakir/snowflake-featureserver/internal/core/middleware"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/router"
)

// Handler builds the full route tree. A nil metrics handler serves the
// default Prometheus registry.
func Handler(logger *slog.Logger, svc router.FeatureService, ready health.ReadinessReporter, metrics http.Handler) http.Handler {
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	r.Get("/metrics", metrics.ServeHTTP)
	router.Mount(r, logger, svc)
	return r
}

// Run serves until ctx is done. No timeout is enforced on warehouse calls;
// WriteTimeout does not cancel a handler's context.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
