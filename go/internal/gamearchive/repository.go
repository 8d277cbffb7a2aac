package gamearchive

import (
	"context"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// Repository persists settled games for off-chain querying.
type Repository interface {
	SaveRecord(ctx context.Context, record models.GameRecord) error
	GetRecord(ctx context.Context, gameID uint64) (*models.GameRecord, error)
	ListRecordsByTeam(ctx context.Context, teamID uint64, limit int) ([]models.GameRecord, error)
}
