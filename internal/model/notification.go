package model

import "time"

// 通知状态
const (
	NotificationPending = "pending"
	NotificationSent    = "sent" // 由外部补发任务更新
)

// OperatorNotification 运维通知 outbox 表，对应 operator_notifications
// 邮件通道全部失败时写入，由外部任务补发
type OperatorNotification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey"           json:"notification_id"`
	Recipient      string    `gorm:"type:varchar(200);not null"     json:"recipient"`
	ErrorType      string    `gorm:"type:varchar(50);not null"      json:"error_type"`
	Subject        string    `gorm:"type:varchar(200);not null"     json:"subject"`
	Body           string    `gorm:"type:text;not null"             json:"body"`
	Status         string    `gorm:"type:varchar(20);not null"      json:"status"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (OperatorNotification) TableName() string { return "operator_notifications" }
