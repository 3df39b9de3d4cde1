package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flor3z/redeem-bot/internal/bot"
	"github.com/flor3z/redeem-bot/internal/config"
	"github.com/flor3z/redeem-bot/internal/redeem"
	"github.com/flor3z/redeem-bot/internal/storage"
	"github.com/flor3z/redeem-bot/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting Redeem Request Bot")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// The lifecycle service shared by both intake surfaces
	service := redeem.NewService(repo, nil, redeem.Policy{
		SubmitCooldown: time.Duration(cfg.SubmitCooldownMinutes) * time.Minute,
		OriginWindow:   time.Duration(cfg.OriginWindowMinutes) * time.Minute,
		OriginMax:      cfg.OriginMaxRequests,
	}, cfg.ContactEmail)

	// Discord surface (skipped in web-only mode)
	var b *bot.Bot
	if !cfg.WebOnly {
		b, err = bot.New(cfg, service)
		if err != nil {
			slog.Error("Failed to create bot", "error", err)
			os.Exit(1)
		}
		service.SetNotifier(b.Notifier())

		if err := b.Start(ctx); err != nil {
			slog.Error("Failed to start bot", "error", err)
			os.Exit(1)
		}
	}

	// Web intake surface
	webSrv := web.NewServer(service, cfg.HTTPAddr)
	go func() {
		if err := webSrv.Start(); err != nil {
			slog.Error("Web server failed", "error", err)
		}
	}()

	slog.Info("Service is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	cancel()

	if err := webSrv.Stop(context.Background()); err != nil {
		slog.Error("Error stopping web server", "error", err)
	}
	if b != nil {
		if err := b.Stop(); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}

	slog.Info("Service stopped")
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
