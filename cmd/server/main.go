// Package main is the entry point for the admin console server. It loads
// configuration, connects to Redis, wires the backend API client and push
// transport into the application, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/app"
	"github.com/innohedge/console/internal/brand"
	"github.com/innohedge/console/internal/config"
	"github.com/innohedge/console/internal/database"
	"github.com/innohedge/console/internal/push"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	b, err := brand.Lookup(cfg.Brand)
	if err != nil {
		slog.Error("failed to load brand", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting console",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("brand", b.Key),
	)

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Backend API and push channel ---
	api := apiclient.New(cfg.API.BaseURL, apiclient.WithTimeout(cfg.API.Timeout))

	dialer, err := push.NewDialer(cfg.Push, rdb)
	if err != nil {
		slog.Error("failed to configure push transport", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("push transport configured", slog.String("transport", cfg.Push.Transport))

	// --- Create Application ---
	application := app.New(cfg, b, rdb, api, dialer)
	application.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reap idle dashboards; closes all of them on shutdown.
	reaperDone := make(chan struct{})
	go func() {
		application.Dashboards.Run(ctx)
		close(reaperDone)
	}()

	// --- Graceful Shutdown ---
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}

	stop()
	<-reaperDone
}

// setupLogging configures the global slog logger. Development uses text
// format, production JSON. LOG_LEVEL overrides the default level.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			slog.Warn("ignoring invalid LOG_LEVEL", slog.String("value", cfg.LogLevel))
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
