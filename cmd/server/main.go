package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/orgenrich/internal/application"
	"github.com/JonMunkholm/orgenrich/internal/config"
	"github.com/JonMunkholm/orgenrich/internal/logging"
	"github.com/JonMunkholm/orgenrich/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// A failed preload is not fatal: runs report it and the dataset can be
	// reloaded through the API.
	if cfg.Reference.Preload {
		if err := app.Preload(ctx); err != nil {
			slog.Warn("reference preload failed", "error", err, "required", cfg.Reference.Required)
		}
	}

	server := web.NewServer(app.Service, cfg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := app.Service.LimiterStatus(); st.Active > 0 {
			slog.Info("waiting for runs to complete", "active", st.Active)
			if err := app.Service.Drain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}
