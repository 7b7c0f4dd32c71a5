// services/stats_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/avalon/engine"
	"github.com/wfunc/avalon/models"
	"github.com/wfunc/avalon/persistence"
)

type StatsService struct {
	store persistence.Store
}

func NewStatsService(store persistence.Store) *StatsService {
	return &StatsService{store: store}
}

// ToRecord converts a finished game for the archive.
func ToRecord(channel string, r engine.Result) *models.GameRecord {
	mode := "avalon"
	if r.Resistance {
		mode = "resistance"
	}
	record := &models.GameRecord{
		ID:        r.GameID,
		Channel:   channel,
		Mode:      mode,
		Winner:    string(r.Winner),
		Reason:    r.Reason,
		Rejects:   r.Rejects,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
	for _, o := range r.Progress {
		record.Progress = append(record.Progress, string(o))
	}
	for _, p := range r.Players {
		record.Players = append(record.Players, models.PlayerResult{
			UserID:   p.ID,
			Name:     p.Name,
			Role:     string(p.Role),
			Evil:     p.Evil,
			Assassin: p.ID == r.Assassin,
			Won:      r.Won(p),
		})
	}
	return record
}

// RecordGame archives a finished game.
func (s *StatsService) RecordGame(ctx context.Context, channel string, r engine.Result) error {
	if err := s.store.SaveGame(ctx, ToRecord(channel, r)); err != nil {
		return fmt.Errorf("archive game %s: %w", r.GameID, err)
	}
	return nil
}

// GetPlayerStats returns zero stats for a player without archived games.
func (s *StatsService) GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	stats, err := s.store.PlayerStats(ctx, userID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return &models.PlayerStats{UserID: userID}, nil
	}
	return stats, err
}

func (s *StatsService) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	return s.store.RecentGames(ctx, limit)
}

// Summary is the chat reply to `stats`.
func (s *StatsService) Summary(ctx context.Context, userID, name string) (string, error) {
	stats, err := s.GetPlayerStats(ctx, userID)
	if err != nil {
		return "", err
	}
	if stats.TotalGames == 0 {
		return fmt.Sprintf("@%s has not finished any games yet.", name), nil
	}
	plural := "s"
	if stats.TotalGames == 1 {
		plural = ""
	}
	return fmt.Sprintf("@%s has played %d game%s: %d won, %d lost, %d on the evil side.",
		name, stats.TotalGames, plural, stats.Wins, stats.Losses, stats.EvilGames), nil
}
