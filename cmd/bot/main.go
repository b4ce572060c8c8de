package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"idlewatch/internal/config"
	"idlewatch/internal/database"
	"idlewatch/internal/discord"
	"idlewatch/internal/server"
	"idlewatch/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	telemetry.Init()

	// Initialize database
	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	// Create repository
	repository := database.NewRepository(db)

	// Initialize Discord bot
	bot, err := discord.New(cfg.DiscordToken, repository, cfg.CommandPrefix,
		log.With().Str("component", "bot").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Discord bot")
	}

	// Start bot
	if err := bot.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start bot")
	}
	defer bot.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the inactivity reconciler once the gateway connection is up
	reconciler := discord.NewReconciler(bot.Session(), repository,
		cfg.InactiveRoleName, cfg.InactivityWindow, cfg.CheckInterval,
		log.With().Str("component", "reconciler").Logger())
	go reconciler.Start(ctx)

	// Liveness HTTP server, independent of the bot
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewMux(db, repository),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	log.Info().Msg("shutting down bot")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
