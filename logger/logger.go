package logger

import (
	"go.uber.org/zap"
)

// Log 是全局日志器，Init 之前为 no-op，测试中无需初始化
var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries; call before process exit.
func Sync() {
	_ = Log.Sync()
}
