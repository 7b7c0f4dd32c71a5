// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/avalon/config"
	"github.com/wfunc/avalon/models"
)

// Store 已结束对局的归档存储。进行中的对局不落库。
type Store interface {
	SaveGame(ctx context.Context, record *models.GameRecord) error
	LoadGame(ctx context.Context, id string) (*models.GameRecord, error)
	// RecentGames returns up to limit games, newest first.
	RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error)
	// PlayerStats aggregates every archived game of a user.
	PlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// Open builds the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "gorm":
		return NewGormStore(cfg.Postgres.DSN())
	case "postgres":
		return NewSQLStore(DialectPostgres, cfg.Postgres.DSN())
	case "sqlite":
		return NewSQLStore(DialectSQLite, cfg.SQLite.Path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
