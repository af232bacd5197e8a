package handler

import (
	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Intake *IntakeHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Intake: NewIntakeHandler(svc.Intake, logger),
	}
}
