/*
Package main is the entry point for the hiroba relay.

It loads configuration, initializes the global logging system, builds the Hub
and its message history store, sets up the HTTP server, and handles operating
system interrupt signals (SIGINT, SIGTERM) for a graceful shutdown. A failure
to bind the listening endpoint is fatal to the whole process.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hiroba/internal/app/space"
	"hiroba/internal/app/storage"
	"hiroba/internal/configs"
	"hiroba/internal/handler"
	"hiroba/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("name_uniqueness", cfg.EnforceUniqueNames).
		Int("history_limit", cfg.HistoryLimit).
		Bool("storage_enabled", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the message history store and the Hub
	history, err := space.NewHistory(cfg.HistoryLimit)
	if err != nil {
		logx.Fatal(err, "Failed to initialize history store")
	}

	hub := space.NewHub(cfg, history)

	// Optional avatar storage
	deps := &handler.AppDeps{
		Hub:    hub,
		Config: cfg,
	}

	if cfg.StorageEnabled() {
		storageService, err := storage.NewStorageService(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar storage")
		}
		deps.Storage = storageService
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Hiroba relay accepting connections on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	if err := history.Close(); err != nil {
		logx.Error(err, "Failed to close history store")
	}

	logx.Info("Server gracefully stopped.")
}
