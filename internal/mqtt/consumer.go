package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rescue-ranger/internal/config"
	"rescue-ranger/internal/pipeline"
)

// Ingestor 读数摄入协作方
type Ingestor interface {
	Submit(ctx context.Context, raw *pipeline.RawReading) (*pipeline.IngestResult, error)
}

// Consumer 订阅穿戴设备读数主题并送入摄入管线
// 主题格式：rescue/readings/<deviceID>，消息体与 HTTP 摄入相同
type Consumer struct {
	config   *config.MQTTConfig
	client   *Client
	ingestor Ingestor
	logger   *zap.Logger
}

// NewConsumer 创建读数消费者
func NewConsumer(cfg *config.MQTTConfig, client *Client, ingestor Ingestor, logger *zap.Logger) *Consumer {
	return &Consumer{
		config:   cfg,
		client:   client,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start 订阅主题并开始消费
func (c *Consumer) Start() error {
	topic := c.config.Topic
	if topic == "" {
		return fmt.Errorf("MQTT readings topic not configured")
	}

	if err := c.client.Subscribe(topic, c.config.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
		zap.String("broker", c.config.Broker),
	)
	return nil
}

// Stop 取消订阅
func (c *Consumer) Stop() {
	if c.config.Topic != "" {
		if err := c.client.Unsubscribe(c.config.Topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}
	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 处理一条设备读数消息
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var raw pipeline.RawReading
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	// 消息体缺少 deviceId 时从主题补齐
	if raw.DeviceID == "" {
		raw.DeviceID = deviceIDFromTopic(topic)
	}

	result, err := c.ingestor.Submit(context.Background(), &raw)
	if err != nil {
		return fmt.Errorf("failed to ingest reading from topic %s: %w", topic, err)
	}

	if result.Emergency {
		c.logger.Info("Emergency reading ingested via MQTT",
			zap.String("device_id", raw.DeviceID),
			zap.String("topic", topic))
	}
	return nil
}

// deviceIDFromTopic 取主题最后一段作为设备ID
func deviceIDFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
