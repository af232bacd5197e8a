package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ha-Ezer/wecc/internal/model"
)

// NotificationRepository 运维通知 outbox 数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.OperatorNotification) error
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.OperatorNotification) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = model.NotificationPending
	}
	return r.db.WithContext(ctx).Create(n).Error
}
