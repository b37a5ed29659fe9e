// Command eventcored serves the partial-import and fee API over HTTP.
// It wires storage, archive and observability from the environment and
// shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"eventcore/internal/core"
	"eventcore/internal/httpapi"
)

// slogLogger adapts log/slog to the service's Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func main() {
	// Local overrides; absence of the file is not an error.
	_ = godotenv.Load()

	logger := slogLogger{l: slog.New(slog.NewJSONHandler(os.Stdout, nil))}
	ctx := context.Background()

	store, err := core.OpenPersistentStore()
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	archive, err := core.OpenArchiveStore(ctx)
	if err != nil {
		logger.Error("open archive", "error", err)
		os.Exit(1)
	}

	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetrics(core.NewPrometheusMetricsRecorder(nil)),
		core.WithArchive(archive),
	)

	addr := os.Getenv("EVENTCORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewRouter(svc, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
