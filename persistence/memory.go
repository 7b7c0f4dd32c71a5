// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/avalon/models"
)

// MemoryStore keeps the archive in process; it is the default for local play.
type MemoryStore struct {
	games map[string]models.GameRecord
	mutex sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]models.GameRecord)}
}

func (s *MemoryStore) SaveGame(ctx context.Context, record *models.GameRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.games[record.ID] = clone(*record)
	return nil
}

func (s *MemoryStore) LoadGame(ctx context.Context, id string) (*models.GameRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	record, ok := s.games[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := clone(record)
	return &out, nil
}

func (s *MemoryStore) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	games := make([]models.GameRecord, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, clone(g))
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].EndedAt.After(games[j].EndedAt)
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *MemoryStore) PlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &models.PlayerStats{UserID: userID}
	var last models.GameRecord
	for _, g := range s.games {
		for _, p := range g.Players {
			if p.UserID != userID {
				continue
			}
			stats.TotalGames++
			if p.Won {
				stats.Wins++
			} else {
				stats.Losses++
			}
			if p.Evil {
				stats.EvilGames++
			}
			if !g.EndedAt.Before(last.EndedAt) {
				last = g
				stats.Name = p.Name
			}
		}
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clone(r models.GameRecord) models.GameRecord {
	r.Progress = append([]string(nil), r.Progress...)
	r.Players = append([]models.PlayerResult(nil), r.Players...)
	return r
}
