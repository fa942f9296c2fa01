// Package main provides the entry point for the engram memory engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/internal/engine"
)

var Version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Str("version", Version).Msg("starting engram")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.StartMaintenance(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("received shutdown signal")

	cancel()
	eng.StopMaintenance()

	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("error closing engine")
	}

	log.Info().Msg("engram shutdown complete")
}
