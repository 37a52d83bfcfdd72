// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/zobbo/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	// 对局归档表
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS matches (
            id SERIAL PRIMARY KEY,
            room_id UUID UNIQUE NOT NULL,
            mode VARCHAR(50) NOT NULL,
            players JSONB NOT NULL,
            winner_id UUID,
            finished_at TIMESTAMPTZ NOT NULL,
            duration_seconds BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 玩家累计战绩表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats (
            id SERIAL PRIMARY KEY,
            player_id UUID UNIQUE NOT NULL,
            name VARCHAR(255) NOT NULL,
            total_games INT NOT NULL DEFAULT 0,
            wins INT NOT NULL DEFAULT 0,
            losses INT NOT NULL DEFAULT 0,
            draws INT NOT NULL DEFAULT 0,
            best_score INT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_matches_finished_at ON matches(finished_at);
        CREATE INDEX IF NOT EXISTS idx_matches_winner_id ON matches(winner_id);
    `)

	return err
}

// SaveMatch 归档一局：插入对局记录并累加双方战绩。
// 同一房间第二次归档直接跳过。
func (p *PostgreSQL) SaveMatch(rec *models.MatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var winner uuid.NullUUID
	if rec.WinnerID != nil {
		winner = uuid.NullUUID{UUID: *rec.WinnerID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO matches (room_id, mode, players, winner_id, finished_at, duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (room_id) DO NOTHING
    `, rec.RoomID, rec.Mode, rec.Players, winner, rec.FinishedAt, rec.DurationSeconds)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	for _, pl := range rec.Players {
		wins, losses, draws := 0, 0, 0
		switch pl.Outcome {
		case models.OutcomeWin:
			wins = 1
		case models.OutcomeLose:
			losses = 1
		default:
			draws = 1
		}

		// 使用 UPSERT 操作 (PostgreSQL 9.5+)
		_, err = tx.ExecContext(ctx, `
            INSERT INTO player_stats (player_id, name, total_games, wins, losses, draws, best_score)
            VALUES ($1, $2, 1, $3, $4, $5, $6)
            ON CONFLICT (player_id)
            DO UPDATE SET
                name = EXCLUDED.name,
                total_games = player_stats.total_games + 1,
                wins = player_stats.wins + EXCLUDED.wins,
                losses = player_stats.losses + EXCLUDED.losses,
                draws = player_stats.draws + EXCLUDED.draws,
                best_score = LEAST(player_stats.best_score, EXCLUDED.best_score),
                updated_at = CURRENT_TIMESTAMP
        `, pl.PlayerID, pl.Name, wins, losses, draws, pl.Score)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MatchHistory 按结束时间倒序返回最近的对局
func (p *PostgreSQL) MatchHistory(limit int) ([]models.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, mode, players, winner_id, finished_at, duration_seconds
        FROM matches
        ORDER BY finished_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.MatchRecord
	for rows.Next() {
		var rec models.MatchRecord
		var winner uuid.NullUUID
		if err := rows.Scan(&rec.RoomID, &rec.Mode, &rec.Players, &winner,
			&rec.FinishedAt, &rec.DurationSeconds); err != nil {
			return nil, err
		}
		if winner.Valid {
			w := winner.UUID
			rec.WinnerID = &w
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PlayerSummary 查询一名玩家的累计战绩
func (p *PostgreSQL) PlayerSummary(pid uuid.UUID) (*models.PlayerSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var s models.PlayerSummary
	err := p.db.QueryRowContext(ctx, `
        SELECT player_id, name, total_games, wins, losses, draws, best_score
        FROM player_stats
        WHERE player_id = $1
    `, pid).Scan(&s.PlayerID, &s.Name, &s.TotalGames, &s.Wins, &s.Losses, &s.Draws, &s.BestScore)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
