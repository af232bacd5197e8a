package service

import (
	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Intake IntakeService
	Format FormatService
	Notify NotifyService
}

// NewService 创建 Service 聚合；channels 为按优先级排列的通知通道
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	channels []NotificationChannel,
	logger *zap.Logger,
) *Service {
	format := NewFormatService(cfg.Intake, logger)
	notify := NewNotifyService(cfg.Intake, channels, logger)
	return &Service{
		Intake: NewIntakeService(cfg.Intake, repo, format, notify, logger),
		Format: format,
		Notify: notify,
	}
}
