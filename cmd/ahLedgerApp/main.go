package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ahLedgerApp/config"
	"ahLedgerApp/internal/app"
	httphandlers "ahLedgerApp/internal/handlers/http"
	"ahLedgerApp/internal/infrastructure/queue"
	"ahLedgerApp/pkg/utils"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutting down...")
		cancel()
	}()

	log.Info("Initializing app...")
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to initialize app: %v", err))
		os.Exit(1)
	}

	// Start the Kafka upload processor when configured
	if application.Processor != nil {
		log.Info("Starting upload processor...")
		go func() {
			if err := application.Processor.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error(fmt.Sprintf("Upload processor stopped: %v", err))
			}
		}()
	}

	// In debug mode with Kafka enabled, feed the topic with synthetic uploads
	if cfg.Debug && application.KafkaProducer != nil {
		generator := utils.NewUploadGenerator()
		go func() {
			log.Info("Starting demo upload generator...")
			for ctx.Err() == nil {
				realm, character, buckets := generator.GenerateUpload(20)
				msg := queue.UploadMessage{Realm: realm, Character: character, Buckets: buckets}
				if err := application.KafkaProducer.PublishUpload(ctx, msg); err != nil && ctx.Err() == nil {
					log.Warn(fmt.Sprintf("Failed to publish demo upload: %v", err))
				}
				time.Sleep(2 * time.Second)
			}
			log.Info("Demo upload generator stopped")
		}()
	}

	// Set up HTTP server
	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := httphandlers.NewServer(httpAddr, application.Ledger, application.Broadcaster, application.Recorder, application.ResetStore, cfg.Debug)

	go func() {
		log.Info(fmt.Sprintf("HTTP server listening on %s", httpAddr))
		if err := httpServer.Start(); err != nil {
			log.Info(fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Info(fmt.Sprintf("HTTP server shutdown error: %v", err))
	}

	log.Info("Cleaning up app resources...")
	application.Cleanup(shutdownCtx)

	log.Info("Service stopped.")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	case envLocal:
		fallthrough
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
}
