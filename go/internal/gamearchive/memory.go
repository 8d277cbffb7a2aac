package gamearchive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// MemoryRepository keeps game records in memory, for tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[uint64]models.GameRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uint64]models.GameRecord)}
}

func (r *MemoryRepository) SaveRecord(ctx context.Context, record models.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.GameID]; ok {
		return nil
	}
	r.records[record.GameID] = record
	return nil
}

func (r *MemoryRepository) GetRecord(ctx context.Context, gameID uint64) (*models.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[gameID]
	if !ok {
		return nil, fmt.Errorf("game record %d: %w", gameID, models.ErrNotFound)
	}
	return &record, nil
}

func (r *MemoryRepository) ListRecordsByTeam(ctx context.Context, teamID uint64, limit int) ([]models.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []models.GameRecord
	for _, record := range r.records {
		if record.HomeTeamID == teamID || record.AwayTeamID == teamID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SettledBlock > records[j].SettledBlock
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
