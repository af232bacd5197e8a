package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ha-Ezer/wecc/config"
)

const defaultService = "wecc-contact"

// NewLogger 根据配置初始化 Zap 日志实例
//
// json 面向日志采集，console 用于本地开发。每条日志都带 service 与 host 字段，
// 同一运维邮箱可能收到多个实例的通知，排查时靠这两个字段定位。
func NewLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// 提交量很小，关闭采样，失败与通知日志一条都不能丢
		zapCfg.Sampling = nil
	default:
		return nil, fmt.Errorf("无效的日志格式 %q（可选 json、console）", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}
	zapCfg.InitialFields = initialFields(cfg)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("初始化日志器失败: %w", err)
	}
	return logger, nil
}

func initialFields(cfg *config.LogConfig) map[string]interface{} {
	service := cfg.Service
	if service == "" {
		service = defaultService
	}
	fields := map[string]interface{}{"service": service}
	if host, err := os.Hostname(); err == nil {
		fields["host"] = host
	}
	return fields
}
