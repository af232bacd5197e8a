package model

import (
	"strings"
	"time"
)

// 日期与时间的存储格式
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// SheetHeader 工作表表头，与 Submission.Row 的列顺序一致
var SheetHeader = []string{"Name", "Phone", "Location", "Date", "Time"}

// 列号（从 1 开始）
const (
	ColName = iota + 1
	ColPhone
	ColLocation
	ColDate
	ColTime
)

// Submission 联系表单提交记录，对应工作表中的一行
type Submission struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// NewSubmission 以服务端时间 now 构造记录，用户字段去除首尾空白
func NewSubmission(name, phone, location string, now time.Time) *Submission {
	return &Submission{
		Name:     strings.TrimSpace(name),
		Phone:    strings.TrimSpace(phone),
		Location: strings.TrimSpace(location),
		Date:     now.Format(DateLayout),
		Time:     now.Format(TimeLayout),
	}
}

// Row 转为工作表行
func (s *Submission) Row() []string {
	return []string{s.Name, s.Phone, s.Location, s.Date, s.Time}
}

// Timestamp 返回 "日期 时间" 形式的时间戳
func (s *Submission) Timestamp() string {
	return s.Date + " " + s.Time
}

// HealthStatus 写入前的表格健康检查结果，不持久化
type HealthStatus struct {
	IsHealthy bool   `json:"isHealthy"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
	RowCount  *int   `json:"rowCount,omitempty"`
}
