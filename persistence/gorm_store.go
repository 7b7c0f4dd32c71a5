// persistence/gorm_store.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/avalon/models"
)

// GormStore 使用GORM的PostgreSQL归档
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建GORM PostgreSQL数据库连接并迁移表结构
func NewGormStore(dsn string) (*GormStore, error) {
	return OpenGorm(postgres.Open(dsn))
}

// OpenGorm wraps any gorm dialector.
func OpenGorm(dialector gorm.Dialector) (*GormStore, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormGamePlayer{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// SaveGame writes the record and its players in one transaction.
func (s *GormStore) SaveGame(ctx context.Context, record *models.GameRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(models.ToGorm(record)).Error
	})
}

func withPlayers(db *gorm.DB) *gorm.DB {
	return db.Preload("Players", func(db *gorm.DB) *gorm.DB {
		return db.Order("seat")
	})
}

func (s *GormStore) LoadGame(ctx context.Context, id string) (*models.GameRecord, error) {
	var g models.GormGameRecord
	if err := withPlayers(s.db.WithContext(ctx)).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	record := models.FromGorm(&g)
	return &record, nil
}

func (s *GormStore) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	query := withPlayers(s.db.WithContext(ctx)).Order("ended_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	games := make([]models.GameRecord, 0, len(rows))
	for i := range rows {
		games = append(games, models.FromGorm(&rows[i]))
	}
	return games, nil
}

func (s *GormStore) PlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var row struct {
		TotalGames int
		Wins       int
		EvilGames  int
	}
	err := s.db.WithContext(ctx).Model(&models.GormGamePlayer{}).
		Select(`COUNT(*) AS total_games,
			COALESCE(SUM(CASE WHEN won THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN evil THEN 1 ELSE 0 END), 0) AS evil_games`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}

	var latest models.GormGamePlayer
	err = s.db.WithContext(ctx).
		Joins("JOIN game_records ON game_records.id = game_players.game_id").
		Where("game_players.user_id = ?", userID).
		Order("game_records.ended_at desc").
		First(&latest).Error
	if err != nil {
		return nil, err
	}

	return &models.PlayerStats{
		UserID:     userID,
		Name:       latest.Name,
		TotalGames: row.TotalGames,
		Wins:       row.Wins,
		Losses:     row.TotalGames - row.Wins,
		EvilGames:  row.EvilGames,
	}, nil
}

// Close 关闭数据库连接
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
