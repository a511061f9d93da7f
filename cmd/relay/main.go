package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/enot3481-eng/messenger-app/internal/api"
	"github.com/enot3481-eng/messenger-app/internal/config"
	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/presence"
	"github.com/enot3481-eng/messenger-app/internal/registry"
	"github.com/enot3481-eng/messenger-app/internal/relay"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	// Relay state is memory-only and lives exactly as long as the
	// process: registry and directory reset to empty on restart.
	tracker := presence.NewTracker()
	reg := registry.New(tracker)
	dir := directory.NewIndex()
	rt := relay.NewRouter(reg, dir, logger)

	router := api.NewRouter(cfg, logger, rt, dir, tracker)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("relay stopped")
}
