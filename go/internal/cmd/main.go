package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xBumstead/FarmersLeague/go/clients/randomness_client"
	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/gateway"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
)

const defaultBlockInterval = 2 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if getEnv("LOG_PRETTY", "") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("LEAGUE_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer pool.Close()

	archive, err := setupArchive(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up game archive")
	}

	jsConfig := events.DefaultJetStreamConfig()
	jsConfig.URL = getEnv("NATS_URL", jsConfig.URL)
	publisher, err := events.NewJetStreamPublisher(jsConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event publisher")
	}
	defer publisher.Close()

	services, err := setupServices(ctx, config, publisher, archive, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire league services")
	}

	interval := defaultBlockInterval
	if config.League.BlockInterval != "" {
		parsed, err := time.ParseDuration(config.League.BlockInterval)
		if err != nil {
			log.Fatal().Err(err).Str("block_interval", config.League.BlockInterval).Msg("invalid block interval")
		}
		interval = parsed
	}
	ticker := chain.NewTicker(services.Counter, clockwork.NewRealClock(), interval)
	if err := ticker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start block ticker")
	}
	defer func() {
		if err := ticker.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop block ticker")
		}
	}()

	beacon := randomness_client.NewBeaconClient(getEnv("ORACLE_BEACON_URL", ""))
	fulfiller := oracle.NewFulfiller(services.Bridge, beacon, clockwork.NewRealClock(), interval, log.Logger)
	if err := fulfiller.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start oracle fulfiller")
	}
	defer func() {
		if err := fulfiller.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop oracle fulfiller")
		}
	}()

	gwConfig := gateway.DefaultServiceConfig()
	gwConfig.Consumer.NATSUrl = jsConfig.URL
	gw, err := gateway.NewService(gwConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}
	if err := gw.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start gateway service")
	}
	defer gw.Stop()

	server := setupServer(services, gw)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("league server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
