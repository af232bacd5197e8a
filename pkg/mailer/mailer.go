package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Message 纯文本邮件
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// SMTPSender 通过 SMTP 中继发送邮件
type SMTPSender struct {
	dialer *gomail.Dialer
	host   string
}

// NewSMTPSender 创建 SMTP 发送器；username 为空时不做认证
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		host:   host,
	}
}

// Host 中继地址
func (s *SMTPSender) Host() string { return s.host }

// Send 发送一封邮件（gomail 不支持取消，仅在发送前检查 ctx）
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("SMTP 发送失败 (%s): %w", s.host, err)
	}
	return nil
}
