package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rescue-ranger/internal/config"
	"rescue-ranger/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器
// 缓存设备最新读数与活跃紧急事件，供看板类消费方轮询；全部为尽力而为，
// 缓存失败不影响入库与通知
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) realtimeKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.RealtimeKeyPrefix,
		deviceID,
		c.config.Cache.RealtimeSuffix,
	)
}

func (c *CacheManager) emergencyKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.RealtimeKeyPrefix,
		deviceID,
		c.config.Cache.EmergencySuffix,
	)
}

// UpdateRealtime 写入设备最新读数（带 TTL）
func (c *CacheManager) UpdateRealtime(ctx context.Context, reading *models.Reading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	ttl := time.Duration(c.config.Cache.RealtimeTTL) * time.Second
	if err := c.redisClient.Set(ctx, c.realtimeKey(reading.DeviceID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// GetRealtime 读取设备最新读数
func (c *CacheManager) GetRealtime(ctx context.Context, deviceID string) (*models.Reading, error) {
	val, err := c.redisClient.Get(ctx, c.realtimeKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("realtime data not found for device: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var reading models.Reading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}

// MarkEmergency 写入活跃紧急事件标记（带 TTL，覆盖同设备旧标记）
func (c *CacheManager) MarkEmergency(ctx context.Context, event *models.EmergencyEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal emergency event: %w", err)
	}

	ttl := time.Duration(c.config.Cache.EmergencyTTL) * time.Second
	if err := c.redisClient.Set(ctx, c.emergencyKey(event.DeviceID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set emergency cache: %w", err)
	}

	return nil
}

// GetActiveEmergency 读取设备的活跃紧急事件；无活跃事件时返回 (nil, nil)
func (c *CacheManager) GetActiveEmergency(ctx context.Context, deviceID string) (*models.EmergencyEvent, error) {
	val, err := c.redisClient.Get(ctx, c.emergencyKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get emergency cache: %w", err)
	}

	var event models.EmergencyEvent
	if err := json.Unmarshal([]byte(val), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal emergency event: %w", err)
	}

	return &event, nil
}
