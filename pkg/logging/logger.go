package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv 覆盖配置文件中的日志级别。
const LevelEnv = "ONEACCT_EXPORT_LOG_LEVEL"

// Config 描述日志输出。
type Config struct {
	Level    string
	Encoding string
	// LogType 为 file 时写入 LogFile，否则写标准输出。
	LogType string
	LogFile string
}

// NewZapLogger 按配置构建 logger。
func NewZapLogger(cfg Config) (*zap.Logger, error) {
	levelText := cfg.Level
	if env := strings.TrimSpace(os.Getenv(LevelEnv)); env != "" {
		levelText = env
	}
	level, err := ParseLevel(levelText)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Encoding = "console"
	if strings.EqualFold(cfg.Encoding, "json") {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "json"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if strings.EqualFold(cfg.LogType, "file") {
		if cfg.LogFile == "" {
			return nil, fmt.Errorf("log_type 为 file 时必须指定 log_file")
		}
		zcfg.OutputPaths = []string{cfg.LogFile}
		zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("构建 logger 失败: %w", err)
	}
	return logger, nil
}

// ParseLevel 解析 DEBUG/INFO/WARN/ERROR，空值为 INFO。
func ParseLevel(text string) (zapcore.Level, error) {
	if strings.TrimSpace(text) == "" {
		return zap.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(text)))); err != nil {
		return level, fmt.Errorf("未知日志级别 %q: %w", text, err)
	}
	return level, nil
}
