package repository

import (
	"gorm.io/gorm"

	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Submission   SubmissionRepository
	Notification NotificationRepository // 数据库未启用时为 nil
}

// NewRepository 创建 Repository 聚合；db 可为 nil
func NewRepository(store spreadsheet.Store, sheetID, sheetName string, db *gorm.DB) *Repository {
	repo := &Repository{
		Submission: NewSubmissionRepo(store, sheetID, sheetName),
	}
	if db != nil {
		repo.Notification = NewNotificationRepo(db)
	}
	return repo
}
