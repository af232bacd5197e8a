package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
)

const subjectPrefix = "[WECC Contact Form]"

// Notification 运维通知
type Notification struct {
	Recipient string    `json:"recipient"`
	ErrorType string    `json:"error_type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationChannel 通知投递通道
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// NotifyService 运维通知业务接口
//
// 按顺序尝试各通道，首个成功即停止；全部失败只记录日志，不向调用方返回错误。
type NotifyService interface {
	Notify(ctx context.Context, errType pkgerrors.ErrorType, message string)
}

type notifyService struct {
	cfg      config.IntakeConfig
	channels []NotificationChannel
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewNotifyService 创建 NotifyService 实例；channels 按优先级排列
func NewNotifyService(cfg config.IntakeConfig, channels []NotificationChannel, logger *zap.Logger) NotifyService {
	return &notifyService{
		cfg:      cfg,
		channels: channels,
		logger:   logger,
		loc:      loadLocation(cfg.Timezone, logger),
		now:      time.Now,
	}
}

func (s *notifyService) Notify(ctx context.Context, errType pkgerrors.ErrorType, message string) {
	n := s.compose(errType, message)

	for _, ch := range s.channels {
		err := s.send(ctx, ch, n)
		if err == nil {
			s.logger.Info("运维通知已发送",
				zap.String("channel", ch.Name()),
				zap.String("error_type", n.ErrorType),
			)
			return
		}
		s.logger.Warn("通知通道发送失败，尝试下一个",
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)
	}

	s.logger.Error("所有通知通道均失败，通知已丢弃",
		zap.String("error_type", n.ErrorType),
		zap.String("message", message),
		zap.Int("channels", len(s.channels)),
	)
}

// send 单个通道的 panic 视为发送失败
func (s *notifyService) send(ctx context.Context, ch NotificationChannel, n *Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("通道 panic: %v", r)
		}
	}()
	return ch.Send(ctx, n)
}

func (s *notifyService) compose(errType pkgerrors.ErrorType, message string) *Notification {
	now := s.now().In(s.loc)

	link := s.cfg.SheetURL
	if link == "" {
		link = s.cfg.SheetID
	}

	var b strings.Builder
	b.WriteString("An error occurred in the church contact form service.\n\n")
	fmt.Fprintf(&b, "Error Type: %s\n", errType)
	fmt.Fprintf(&b, "Error Message: %s\n", message)
	fmt.Fprintf(&b, "Timestamp: %s (%s)\n\n", now.Format("2006-01-02 15:04:05"), s.loc.String())
	fmt.Fprintf(&b, "Spreadsheet: %s\n\n", link)
	b.WriteString("Please check the spreadsheet and the service logs.\n")

	return &Notification{
		Recipient: s.cfg.OperatorEmail,
		ErrorType: string(errType),
		Subject:   fmt.Sprintf("%s Error: %s", subjectPrefix, errType),
		Body:      b.String(),
		CreatedAt: now,
	}
}

// loadLocation 加载时区，失败时退回 UTC
func loadLocation(name string, logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("加载时区失败，使用 UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}
