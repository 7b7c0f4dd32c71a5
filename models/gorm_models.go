// models/gorm_models.go
package models

import (
	"strings"
	"time"
)

// GormGameRecord 游戏记录表
type GormGameRecord struct {
	ID        string           `gorm:"primaryKey;size:36"`
	Channel   string           `gorm:"index;not null"`
	Mode      string           `gorm:"size:16;not null"`
	Winner    string           `gorm:"size:8"`
	Reason    string           `gorm:"size:32"`
	Progress  string           `gorm:"size:64"`
	Rejects   int              `gorm:"default:0"`
	StartedAt time.Time        `gorm:"not null"`
	EndedAt   time.Time        `gorm:"index;not null"`
	Players   []GormGamePlayer `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (GormGameRecord) TableName() string { return "game_records" }

// GormGamePlayer 每局的玩家明细
type GormGamePlayer struct {
	ID       uint   `gorm:"primaryKey"`
	GameID   string `gorm:"index;size:36;not null"`
	Seat     int    `gorm:"not null"`
	UserID   string `gorm:"index;not null"`
	Name     string `gorm:"not null"`
	Role     string `gorm:"size:16;not null"`
	Evil     bool
	Assassin bool
	Won      bool
}

func (GormGamePlayer) TableName() string { return "game_players" }

func JoinProgress(progress []string) string {
	return strings.Join(progress, ",")
}

func SplitProgress(progress string) []string {
	if progress == "" {
		return nil
	}
	return strings.Split(progress, ",")
}

func ToGorm(r *GameRecord) *GormGameRecord {
	g := &GormGameRecord{
		ID:        r.ID,
		Channel:   r.Channel,
		Mode:      r.Mode,
		Winner:    r.Winner,
		Reason:    r.Reason,
		Progress:  JoinProgress(r.Progress),
		Rejects:   r.Rejects,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
	for i, p := range r.Players {
		g.Players = append(g.Players, GormGamePlayer{
			GameID:   r.ID,
			Seat:     i,
			UserID:   p.UserID,
			Name:     p.Name,
			Role:     p.Role,
			Evil:     p.Evil,
			Assassin: p.Assassin,
			Won:      p.Won,
		})
	}
	return g
}

func FromGorm(g *GormGameRecord) GameRecord {
	r := GameRecord{
		ID:        g.ID,
		Channel:   g.Channel,
		Mode:      g.Mode,
		Winner:    g.Winner,
		Reason:    g.Reason,
		Progress:  SplitProgress(g.Progress),
		Rejects:   g.Rejects,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
	}
	for _, p := range g.Players {
		r.Players = append(r.Players, PlayerResult{
			UserID:   p.UserID,
			Name:     p.Name,
			Role:     p.Role,
			Evil:     p.Evil,
			Assassin: p.Assassin,
			Won:      p.Won,
		})
	}
	return r
}
