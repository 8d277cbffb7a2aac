package gamearchive

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_records (
    game_id         BIGINT PRIMARY KEY,
    home_team_id    BIGINT NOT NULL,
    away_team_id    BIGINT NOT NULL,
    result          SMALLINT NOT NULL,
    stake_pot       BIGINT NOT NULL,
    scheduled_block BIGINT NOT NULL,
    settled_block   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS game_records_home_idx ON game_records (home_team_id);
CREATE INDEX IF NOT EXISTS game_records_away_idx ON game_records (away_team_id);
`

// PostgresRepository stores game records in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// InitSchema creates the archive tables if they are missing.
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init game archive schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveRecord(ctx context.Context, record models.GameRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO game_records
		    (game_id, home_team_id, away_team_id, result, stake_pot, scheduled_block, settled_block)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id) DO NOTHING`,
		record.GameID, record.HomeTeamID, record.AwayTeamID, int16(record.Result),
		record.StakePot, record.ScheduledBlock, record.SettledBlock,
	)
	if err != nil {
		return fmt.Errorf("save game record %d: %w", record.GameID, err)
	}
	return nil
}

func (r *PostgresRepository) GetRecord(ctx context.Context, gameID uint64) (*models.GameRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT game_id, home_team_id, away_team_id, result, stake_pot, scheduled_block, settled_block
		FROM game_records WHERE game_id = $1`, gameID)

	var record models.GameRecord
	var result int16
	err := row.Scan(&record.GameID, &record.HomeTeamID, &record.AwayTeamID, &result,
		&record.StakePot, &record.ScheduledBlock, &record.SettledBlock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game record %d: %w", gameID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get game record %d: %w", gameID, err)
	}
	record.Result = models.GameResult(result)
	return &record, nil
}

func (r *PostgresRepository) ListRecordsByTeam(ctx context.Context, teamID uint64, limit int) ([]models.GameRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT game_id, home_team_id, away_team_id, result, stake_pot, scheduled_block, settled_block
		FROM game_records
		WHERE home_team_id = $1 OR away_team_id = $1
		ORDER BY settled_block DESC
		LIMIT $2`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list game records for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var record models.GameRecord
		var result int16
		if err := rows.Scan(&record.GameID, &record.HomeTeamID, &record.AwayTeamID, &result,
			&record.StakePot, &record.ScheduledBlock, &record.SettledBlock); err != nil {
			return nil, fmt.Errorf("scan game record: %w", err)
		}
		record.Result = models.GameResult(result)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game records: %w", err)
	}
	return records, nil
}
