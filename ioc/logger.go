package ioc

import (
	"oneacct/internal/app"
	"oneacct/pkg/logging"

	"go.uber.org/zap"
)

// InitLogger 构建全局 logger。
func InitLogger(cfg app.Config) (*zap.Logger, error) {
	return logging.NewZapLogger(logging.Config{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
		LogType:  cfg.Logging.LogType,
		LogFile:  cfg.Logging.LogFile,
	})
}
