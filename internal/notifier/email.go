package notifier

import (
	"context"
	"fmt"
	"strings"

	"rescue-ranger/internal/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// EmailChannel SMTP 邮件通道
// target 为联系人邮箱地址
type EmailChannel struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(cfg *config.Config, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
		from:   cfg.SMTP.From,
		logger: logger,
	}
}

func (c *EmailChannel) Name() string {
	return ChannelEmail
}

// Send 发送邮件
// gomail 不支持 context，投递放入 goroutine 以尊重单次尝试超时
func (c *EmailChannel) Send(ctx context.Context, target string, msg Message) error {
	if target == "" || !strings.Contains(target, "@") {
		return NewPermanentError(ChannelEmail, fmt.Errorf("invalid email address: %q", target))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", target)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return NewTransientError(ChannelEmail, ctx.Err())
	case err := <-done:
		if err != nil {
			// SMTP 失败绝大多数为连接/握手类问题，按瞬时处理
			return NewTransientError(ChannelEmail, err)
		}
		return nil
	}
}
