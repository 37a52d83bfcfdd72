// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/zobbo/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormMatch{}, &models.GormPlayerStat{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveMatch 归档一局并累加双方战绩，整体跑在一个事务里
func (p *GormPostgreSQL) SaveMatch(rec *models.MatchRecord) error {
	match := models.GormMatch{
		RoomID:          rec.RoomID.String(),
		Mode:            rec.Mode,
		Players:         rec.Players,
		FinishedAt:      rec.FinishedAt,
		DurationSeconds: rec.DurationSeconds,
	}
	if rec.WinnerID != nil {
		w := rec.WinnerID.String()
		match.WinnerID = &w
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoNothing: true,
		}).Create(&match)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 已归档过，保持幂等
			return nil
		}

		for _, pl := range rec.Players {
			var stat models.GormPlayerStat
			result := tx.Where("player_id = ?", pl.PlayerID.String()).First(&stat)

			if result.Error == gorm.ErrRecordNotFound {
				stat = models.GormPlayerStat{
					PlayerID:  pl.PlayerID.String(),
					BestScore: pl.Score,
				}
			} else if result.Error != nil {
				return result.Error
			}

			stat.Name = pl.Name
			stat.TotalGames++
			switch pl.Outcome {
			case models.OutcomeWin:
				stat.Wins++
			case models.OutcomeLose:
				stat.Losses++
			default:
				stat.Draws++
			}
			if pl.Score < stat.BestScore {
				stat.BestScore = pl.Score
			}

			if err := tx.Save(&stat).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MatchHistory 按结束时间倒序返回最近的对局
func (p *GormPostgreSQL) MatchHistory(limit int) ([]models.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []models.GormMatch
	if err := p.db.Order("finished_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.MatchRecord, 0, len(rows))
	for _, row := range rows {
		roomID, err := uuid.Parse(row.RoomID)
		if err != nil {
			return nil, err
		}
		rec := models.MatchRecord{
			RoomID:          roomID,
			Mode:            row.Mode,
			Players:         row.Players,
			FinishedAt:      row.FinishedAt,
			DurationSeconds: row.DurationSeconds,
		}
		if row.WinnerID != nil {
			w, err := uuid.Parse(*row.WinnerID)
			if err != nil {
				return nil, err
			}
			rec.WinnerID = &w
		}
		records = append(records, rec)
	}
	return records, nil
}

// PlayerSummary 查询一名玩家的累计战绩
func (p *GormPostgreSQL) PlayerSummary(pid uuid.UUID) (*models.PlayerSummary, error) {
	var stat models.GormPlayerStat
	if err := p.db.Where("player_id = ?", pid.String()).First(&stat).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.PlayerSummary{
		PlayerID:   pid,
		Name:       stat.Name,
		TotalGames: stat.TotalGames,
		Wins:       stat.Wins,
		Losses:     stat.Losses,
		Draws:      stat.Draws,
		BestScore:  stat.BestScore,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
