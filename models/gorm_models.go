// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormMatch 对局归档表
type GormMatch struct {
	gorm.Model
	RoomID          string       `gorm:"uniqueIndex;not null"`
	Mode            string       `gorm:"not null"`
	Players         MatchPlayers `gorm:"type:jsonb;not null"`
	WinnerID        *string      `gorm:"index"`
	FinishedAt      time.Time    `gorm:"index;not null"`
	DurationSeconds int64        `gorm:"default:0"`
}

// GormPlayerStat 玩家累计战绩表
type GormPlayerStat struct {
	gorm.Model
	PlayerID   string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
	Losses     int    `gorm:"default:0"`
	Draws      int    `gorm:"default:0"`
	BestScore  int    `gorm:"default:0"` // 最低终局分
}
