// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command mockapi is the development backend of the lead CRM: the REST API
// and the realtime channel the client core and crmctl talk to.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from MOCKAPI_* environment variables.
//  3. Wire the backend (PostgreSQL and migrations only when configured).
//  4. Start the periodic realtime pushes.
//  5. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/taibuivan/leadcrm/internal/mockapi"
	"github.com/taibuivan/leadcrm/internal/platform/config"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", "leadcrm-mockapi"))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.LoadMockAPI()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "leadcrm-mockapi"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("postgres", cfg.DatabaseURL != ""),
	)

	// A startup deadline catches an unreachable database quickly.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Wiring ─────────────────────────────────────────────────────────
	app, err := mockapi.Build(startupCtx, cfg, log, mockapi.Options{})
	must(log, err, "build backend")
	defer app.Close()

	// ── 4. Realtime Pushes ────────────────────────────────────────────────
	runCtx, stopPushes := context.WithCancel(context.Background())
	defer stopPushes()
	go app.Hub.Run(runCtx)

	// ── 5. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	stopPushes()
	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := app.Server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		app.Close()
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Limited to startup wiring; after startup every error is returned and handled.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
