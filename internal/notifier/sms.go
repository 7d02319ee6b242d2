package notifier

import (
	"context"
	"fmt"

	"rescue-ranger/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSChannel 短信通道（Twilio 形式的 REST API）
// target 为联系人手机号
type SMSChannel struct {
	client     *resty.Client
	accountSID string
	from       string
	logger     *zap.Logger
}

// NewSMSChannel 创建短信通道
// 重试由编排器统一负责，这里不开启 resty 自带重试
func NewSMSChannel(cfg *config.Config, logger *zap.Logger) *SMSChannel {
	client := resty.New().
		SetBaseURL(cfg.SMS.BaseURL).
		SetBasicAuth(cfg.SMS.AccountSID, cfg.SMS.AuthToken).
		SetHeader("Accept", "application/json")

	return &SMSChannel{
		client:     client,
		accountSID: cfg.SMS.AccountSID,
		from:       cfg.SMS.From,
		logger:     logger,
	}
}

func (c *SMSChannel) Name() string {
	return ChannelSMS
}

// Send 发送短信
func (c *SMSChannel) Send(ctx context.Context, target string, msg Message) error {
	if target == "" {
		return NewPermanentError(ChannelSMS, fmt.Errorf("empty phone number"))
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   target,
			"From": c.from,
			"Body": msg.Body,
		}).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", c.accountSID))

	if err != nil {
		return NewTransientError(ChannelSMS, err)
	}

	return classifyStatus(ChannelSMS, resp.StatusCode())
}
