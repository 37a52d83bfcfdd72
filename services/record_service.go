// services/record_service.go
package services

import (
	"github.com/google/uuid"

	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/models"
	"github.com/wfunc/zobbo/persistence"
)

// RecordService 把房间产出的对局记录落库。db 为 nil 时归档
// 变成空操作，服务器可以不带数据库运行。
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// RecordMatch 房间在对局结束后调用。归档失败只记日志，
// 不影响对局本身。
func (s *RecordService) RecordMatch(rec *models.MatchRecord) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveMatch(rec); err != nil {
		logger.Log.Errorf("归档对局 %s 失败: %v", rec.RoomID, err)
	}
}

// History 返回最近完成的对局
func (s *RecordService) History(limit int) ([]models.MatchRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.MatchHistory(limit)
}

// PlayerSummary 返回一名玩家的累计战绩
func (s *RecordService) PlayerSummary(pid uuid.UUID) (*models.PlayerSummary, error) {
	if s.db == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.db.PlayerSummary(pid)
}
