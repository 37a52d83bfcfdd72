// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/models"
)

// Database 对局归档层。SaveMatch 在一个事务里写入对局记录并
// 累加每名玩家的战绩，对同一房间重复调用保持幂等。
type Database interface {
	SaveMatch(rec *models.MatchRecord) error
	MatchHistory(limit int) ([]models.MatchRecord, error)
	PlayerSummary(pid uuid.UUID) (*models.PlayerSummary, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
