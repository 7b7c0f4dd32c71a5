// persistence/sql_store.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL 驱动
	_ "modernc.org/sqlite" // SQLite 驱动

	"github.com/wfunc/avalon/models"
)

// Dialect 方言差异：驱动名、占位符、自增主键
type Dialect struct {
	Driver       string
	numbered     bool
	serialColumn string
}

var (
	DialectPostgres = Dialect{Driver: "postgres", numbered: true, serialColumn: "SERIAL PRIMARY KEY"}
	DialectSQLite   = Dialect{Driver: "sqlite", serialColumn: "INTEGER PRIMARY KEY AUTOINCREMENT"}
)

// rebind turns ? placeholders into $n for drivers that need them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore 基于 database/sql 的归档，PostgreSQL(lib/pq) 与 SQLite(modernc) 共用
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore opens and migrates the archive; dsn is a connection string for
// postgres or a file path for sqlite.
func NewSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Driver, err)
	}

	if dialect.Driver == DialectSQLite.Driver {
		// SQLite 只允许一个写连接
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS game_records (
            id VARCHAR(36) PRIMARY KEY,
            channel VARCHAR(255) NOT NULL,
            mode VARCHAR(16) NOT NULL,
            winner VARCHAR(8) NOT NULL,
            reason VARCHAR(32) NOT NULL,
            progress VARCHAR(64) NOT NULL,
            rejects INTEGER NOT NULL DEFAULT 0,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS game_players (
            id ` + s.dialect.serialColumn + `,
            game_id VARCHAR(36) NOT NULL REFERENCES game_records(id) ON DELETE CASCADE,
            seat INTEGER NOT NULL,
            user_id VARCHAR(255) NOT NULL,
            name VARCHAR(255) NOT NULL,
            role VARCHAR(16) NOT NULL,
            evil BOOLEAN NOT NULL,
            assassin BOOLEAN NOT NULL,
            won BOOLEAN NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_game_records_ended_at ON game_records(ended_at)`,
		`CREATE INDEX IF NOT EXISTS idx_game_players_user_id ON game_players(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_players_game_id ON game_players(game_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) SaveGame(ctx context.Context, record *models.GameRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
        INSERT INTO game_records (id, channel, mode, winner, reason, progress, rejects, started_at, ended_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		record.ID, record.Channel, record.Mode, record.Winner, record.Reason,
		models.JoinProgress(record.Progress), record.Rejects, record.StartedAt.UTC(), record.EndedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert game %s: %w", record.ID, err)
	}

	insertPlayer := s.dialect.rebind(`
        INSERT INTO game_players (game_id, seat, user_id, name, role, evil, assassin, won)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, p := range record.Players {
		if _, err := tx.ExecContext(ctx, insertPlayer, record.ID, i, p.UserID, p.Name, p.Role, p.Evil, p.Assassin, p.Won); err != nil {
			return fmt.Errorf("insert player %s: %w", p.UserID, err)
		}
	}
	return tx.Commit()
}

const selectGame = `SELECT id, channel, mode, winner, reason, progress, rejects, started_at, ended_at FROM game_records`

func scanGame(row interface{ Scan(...interface{}) error }) (models.GameRecord, error) {
	var r models.GameRecord
	var progress string
	err := row.Scan(&r.ID, &r.Channel, &r.Mode, &r.Winner, &r.Reason, &progress, &r.Rejects, &r.StartedAt, &r.EndedAt)
	r.Progress = models.SplitProgress(progress)
	return r, err
}

func (s *SQLStore) loadPlayers(ctx context.Context, r *models.GameRecord) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
        SELECT user_id, name, role, evil, assassin, won FROM game_players WHERE game_id = ? ORDER BY seat`), r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PlayerResult
		if err := rows.Scan(&p.UserID, &p.Name, &p.Role, &p.Evil, &p.Assassin, &p.Won); err != nil {
			return err
		}
		r.Players = append(r.Players, p)
	}
	return rows.Err()
}

func (s *SQLStore) LoadGame(ctx context.Context, id string) (*models.GameRecord, error) {
	r, err := scanGame(s.db.QueryRowContext(ctx, s.dialect.rebind(selectGame+` WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if err := s.loadPlayers(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	query := selectGame + ` ORDER BY ended_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	var games []models.GameRecord
	for rows.Next() {
		r, err := scanGame(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		games = append(games, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range games {
		if err := s.loadPlayers(ctx, &games[i]); err != nil {
			return nil, err
		}
	}
	return games, nil
}

func (s *SQLStore) PlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	stats := &models.PlayerStats{UserID: userID}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
        SELECT COUNT(*),
            COALESCE(SUM(CASE WHEN won THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN evil THEN 1 ELSE 0 END), 0)
        FROM game_players WHERE user_id = ?`), userID).
		Scan(&stats.TotalGames, &stats.Wins, &stats.EvilGames)
	if err != nil {
		return nil, err
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	stats.Losses = stats.TotalGames - stats.Wins

	err = s.db.QueryRowContext(ctx, s.dialect.rebind(`
        SELECT p.name FROM game_players p JOIN game_records g ON g.id = p.game_id
        WHERE p.user_id = ? ORDER BY g.ended_at DESC LIMIT 1`), userID).Scan(&stats.Name)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close 关闭数据库连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}
