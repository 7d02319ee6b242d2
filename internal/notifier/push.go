package notifier

import (
	"context"
	"fmt"

	"rescue-ranger/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PushChannel 推送通道（FCM 形式的 REST API）
// target 为设备持有者的推送 token（当前实现使用 deviceID）
type PushChannel struct {
	client *resty.Client
	logger *zap.Logger
}

// pushRequest FCM 形式的推送请求体
type pushRequest struct {
	To           string           `json:"to"`
	Notification pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewPushChannel 创建推送通道
func NewPushChannel(cfg *config.Config, logger *zap.Logger) *PushChannel {
	client := resty.New().
		SetBaseURL(cfg.Push.BaseURL).
		SetHeader("Authorization", "key="+cfg.Push.ServerKey).
		SetHeader("Content-Type", "application/json")

	return &PushChannel{
		client: client,
		logger: logger,
	}
}

func (c *PushChannel) Name() string {
	return ChannelPush
}

// Send 发送推送
func (c *PushChannel) Send(ctx context.Context, target string, msg Message) error {
	if target == "" {
		return NewPermanentError(ChannelPush, fmt.Errorf("empty push token"))
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(pushRequest{
			To: target,
			Notification: pushNotification{
				Title: msg.Subject,
				Body:  msg.Body,
			},
		}).
		Post("/fcm/send")

	if err != nil {
		return NewTransientError(ChannelPush, err)
	}

	return classifyStatus(ChannelPush, resp.StatusCode())
}
