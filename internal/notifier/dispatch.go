package notifier

import (
	"context"
	"fmt"

	"rescue-ranger/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DispatchChannel 外部救援调度通道
// target 为调度服务端点 URL；请求体携带事件位置与可读描述
type DispatchChannel struct {
	client *resty.Client
	logger *zap.Logger
}

// dispatchRequest 调度请求体
type dispatchRequest struct {
	Location dispatchLocation `json:"location"`
	Details  string           `json:"details"`
}

type dispatchLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewDispatchChannel 创建调度通道
func NewDispatchChannel(cfg *config.Config, logger *zap.Logger) *DispatchChannel {
	client := resty.New().
		SetHeader("Content-Type", "application/json")

	return &DispatchChannel{
		client: client,
		logger: logger,
	}
}

func (c *DispatchChannel) Name() string {
	return ChannelDispatch
}

// Send 向调度服务发起结构化救援请求
func (c *DispatchChannel) Send(ctx context.Context, target string, msg Message) error {
	if target == "" {
		return NewPermanentError(ChannelDispatch, fmt.Errorf("empty dispatch endpoint"))
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(dispatchRequest{
			Location: dispatchLocation{
				Latitude:  msg.Location.Latitude,
				Longitude: msg.Location.Longitude,
			},
			Details: msg.Body,
		}).
		Post(target)

	if err != nil {
		return NewTransientError(ChannelDispatch, err)
	}

	return classifyStatus(ChannelDispatch, resp.StatusCode())
}
