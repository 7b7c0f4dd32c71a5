// models/models.go
package models

import (
	"time"
)

// GameRecord 一局结束后的归档记录
type GameRecord struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Mode      string         `json:"mode"` // avalon/resistance
	Winner    string         `json:"winner"`
	Reason    string         `json:"reason"`
	Progress  []string       `json:"progress"`
	Rejects   int            `json:"rejects"`
	Players   []PlayerResult `json:"players"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

// PlayerResult 玩家在一局中的身份和输赢
type PlayerResult struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Evil     bool   `json:"evil"`
	Assassin bool   `json:"assassin"`
	Won      bool   `json:"won"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	EvilGames  int    `json:"evil_games"`
}

// Duration of the game, zero when timestamps are missing.
func (r GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
