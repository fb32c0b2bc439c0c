package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adrelay/adrelay-go/internal/mockapi"
	"github.com/adrelay/adrelay-go/internal/telemetry"
	"github.com/adrelay/adrelay-go/sdk"
)

func main() {
	// Load API configuration
	cfg, err := mockapi.LoadConfig()
	if err != nil {
		telemetry.L().WithError(err).Fatal("Failed to load configuration")
	}

	telCfg := telemetry.NewConfigFromEnv("adrelay-mockapi")
	shutdownTelemetry, err := telemetry.Init(context.Background(), telCfg)
	if err != nil {
		telemetry.L().WithError(err).Fatal("Failed to initialize telemetry")
	}
	log := telemetry.L()

	server := mockapi.NewServer(cfg, sdk.Version)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go mockapi.NewJanitor(server.Handler, cfg.IdempotencyTTL, cfg.CleanupInterval).Start(janitorCtx)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")
		stopJanitor()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := server.App.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("Server forced to shutdown")
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.WithError(err).Warn("Telemetry shutdown incomplete")
		}
	}()

	log.WithFields(map[string]interface{}{
		"addr":     cfg.Addr(),
		"auth":     cfg.APIKey != "",
		"maxDelay": cfg.MaxDelay.String(),
	}).Info("AdRelay mock API listening")

	if err := server.App.Listen(cfg.Addr()); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
