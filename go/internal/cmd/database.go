package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/0xBumstead/FarmersLeague/go/internal/dbconfig"
	"github.com/0xBumstead/FarmersLeague/go/internal/gamearchive"
)

func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	return pool, nil
}

func setupArchive(ctx context.Context, pool *pgxpool.Pool) (*gamearchive.PostgresRepository, error) {
	repo := gamearchive.NewPostgresRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return repo, nil
}
