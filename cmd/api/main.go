package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/api"
	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/settings"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := settings.Open(ctx, cfg.Settings)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Settings.Backend).Msg("failed to open settings store")
	}
	defer store.Close()

	adapter := llm.NewAdapterFromConfig(cfg.LLM, store)

	// Create server
	srv, err := api.NewServer(cfg, store, adapter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server. Generation runs in the background, so the write timeout stays short.
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not gracefully shutdown the server")
		}
		if err := srv.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("abandoning in-flight generations")
		}
		close(done)
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("settings_backend", cfg.Settings.Backend).
		Str("default_provider", string(adapter.DefaultProvider())).
		Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("could not listen on port")
	}

	<-done
	log.Info().Msg("server stopped")
}
