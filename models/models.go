// models/models.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 对局结果
const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
	OutcomeDraw = "draw"
)

// MatchRecord 一局结束后的归档记录
type MatchRecord struct {
	RoomID          uuid.UUID    `json:"room_id"`
	Mode            string       `json:"mode"`
	Players         MatchPlayers `json:"players"`
	WinnerID        *uuid.UUID   `json:"winner_id"`
	FinishedAt      time.Time    `json:"finished_at"`
	DurationSeconds int64        `json:"duration_seconds"`
}

// MatchPlayer 归档记录里一名玩家的战绩
type MatchPlayer struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Outcome  string    `json:"outcome"` // win/lose/draw
}

// MatchPlayers 在数据库里以 jsonb 存储
type MatchPlayers []MatchPlayer

func (p MatchPlayers) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *MatchPlayers) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported players column type %T", value)
	}
}

// PlayerSummary 玩家的累计战绩。BestScore 是出现过的最低终局分，
// 分越低越好。
type PlayerSummary struct {
	PlayerID   uuid.UUID `json:"player_id"`
	Name       string    `json:"name"`
	TotalGames int       `json:"total_games"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Draws      int       `json:"draws"`
	BestScore  int       `json:"best_score"`
}
