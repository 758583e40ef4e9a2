package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/server"
	"github.com/iddaa-lens/jobrunner/pkg/store"
)

func main() {
	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("api-service")

	// Load configuration
	cfg := config.Load()

	opened, err := store.Open(context.Background(), cfg, log, false)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "store_open_failed").
			Str("driver", cfg.Store.Driver).
			Msg("Failed to open job store")
	}
	defer opened.Close()

	srv := server.New(cfg, opened.Store, log)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().
				Err(err).
				Str("action", "server_shutdown_failed").
				Msg("Server did not shut down cleanly")
		}
	}()

	// Start server
	if err := srv.Start(); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_failed").
			Msg("Server failed to start")
	}
}
