package gamearchive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetRecord(ctx, 1)
	require.ErrorIs(t, err, models.ErrNotFound)

	first := models.GameRecord{GameID: 1, HomeTeamID: 10, AwayTeamID: 20, Result: models.ResultHomeWin, StakePot: 9, SettledBlock: 100}
	require.NoError(t, repo.SaveRecord(ctx, first))

	// Saving the same game again keeps the original record.
	dup := first
	dup.Result = models.ResultDraw
	require.NoError(t, repo.SaveRecord(ctx, dup))

	got, err := repo.GetRecord(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.ResultHomeWin, got.Result)

	require.NoError(t, repo.SaveRecord(ctx, models.GameRecord{GameID: 2, HomeTeamID: 20, AwayTeamID: 30, SettledBlock: 200}))
	require.NoError(t, repo.SaveRecord(ctx, models.GameRecord{GameID: 3, HomeTeamID: 40, AwayTeamID: 20, SettledBlock: 300}))

	records, err := repo.ListRecordsByTeam(ctx, 20, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(3), records[0].GameID)
	require.Equal(t, uint64(2), records[1].GameID)
}
