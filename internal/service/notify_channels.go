package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/internal/repository"
	"github.com/ha-Ezer/wecc/pkg/mailer"
)

var ErrChannelDisabled = errors.New("通知通道未启用")

// ── SMTP 通道 ──

// MailSender 邮件发送能力
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type mailChannel struct {
	name   string
	from   string
	sender MailSender
}

// NewMailChannel 创建邮件通知通道
func NewMailChannel(name, from string, sender MailSender) NotificationChannel {
	return &mailChannel{name: name, from: from, sender: sender}
}

func (c *mailChannel) Name() string { return c.name }

func (c *mailChannel) Send(ctx context.Context, n *Notification) error {
	return c.sender.Send(ctx, mailer.Message{
		From:    c.from,
		To:      n.Recipient,
		Subject: n.Subject,
		Body:    n.Body,
	})
}

// ── AMQP 通道 ──

// MessagePublisher 消息队列投递能力
type MessagePublisher interface {
	Publish(ctx context.Context, body []byte) error
}

type queueChannel struct {
	publisher MessagePublisher
}

// NewQueueChannel 创建消息队列通知通道，由外部邮件任务消费
func NewQueueChannel(publisher MessagePublisher) NotificationChannel {
	return &queueChannel{publisher: publisher}
}

func (c *queueChannel) Name() string { return "amqp" }

func (c *queueChannel) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}
	return c.publisher.Publish(ctx, body)
}

// ── Outbox 通道 ──

type outboxChannel struct {
	repo repository.NotificationRepository
}

// NewOutboxChannel 创建数据库 outbox 通知通道
func NewOutboxChannel(repo repository.NotificationRepository) NotificationChannel {
	return &outboxChannel{repo: repo}
}

func (c *outboxChannel) Name() string { return "outbox" }

func (c *outboxChannel) Send(ctx context.Context, n *Notification) error {
	if c.repo == nil {
		return ErrChannelDisabled
	}
	return c.repo.Create(ctx, &model.OperatorNotification{
		Recipient: n.Recipient,
		ErrorType: n.ErrorType,
		Subject:   n.Subject,
		Body:      n.Body,
		Status:    model.NotificationPending,
		CreatedAt: n.CreatedAt,
	})
}
