package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rescue-ranger/internal/dedup"
	"rescue-ranger/internal/evaluator"
	"rescue-ranger/internal/models"
	"rescue-ranger/internal/notifier"
	"rescue-ranger/internal/repository"
)

// RawReading 客户端提交的原始读数
// 指针字段用于区分"缺失"与"零值"
type RawReading struct {
	DeviceID     string       `json:"deviceId"`
	Timestamp    *time.Time   `json:"timestamp,omitempty"`
	HeartRate    *int         `json:"heartRate"`
	SpO2         *int         `json:"spO2"`
	Location     *RawLocation `json:"location"`
	BatteryLevel *int         `json:"batteryLevel,omitempty"`
}

// RawLocation 原始位置
type RawLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// IngestResult 摄入结果
type IngestResult struct {
	Accepted  bool `json:"accepted"`
	Emergency bool `json:"emergency"`
}

// ValidationError 校验错误（映射为 HTTP 400）
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s %s", e.Field, e.Message)
}

// IsValidationError 判断是否校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReadingsStore 读数持久化协作方
type ReadingsStore interface {
	SaveReading(ctx context.Context, reading *models.Reading) error
	UpdateEmergencyStatus(ctx context.Context, id int64, emergency bool) error
}

// UsersStore 用户档案协作方
type UsersStore interface {
	GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error)
}

// Cache 实时缓存协作方（尽力而为，失败不阻断摄入）
type Cache interface {
	UpdateRealtime(ctx context.Context, reading *models.Reading) error
	MarkEmergency(ctx context.Context, event *models.EmergencyEvent) error
}

// Notifier 通知扇出协作方
type Notifier interface {
	Notify(ctx context.Context, event *models.EmergencyEvent, user *models.User) notifier.Summary
}

// Pipeline 摄入管线：校验 -> 入库 -> 评估 -> 去重 -> 异步通知
type Pipeline struct {
	readings  ReadingsStore
	users     UsersStore
	cache     Cache // 可为 nil（未配置 Redis 时）
	evaluator *evaluator.Evaluator
	dedup     *dedup.Deduplicator
	notifier  Notifier
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewPipeline 创建摄入管线
func NewPipeline(
	readings ReadingsStore,
	users UsersStore,
	cache Cache,
	eval *evaluator.Evaluator,
	dedup *dedup.Deduplicator,
	notif Notifier,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		readings:  readings,
		users:     users,
		cache:     cache,
		evaluator: eval,
		dedup:     dedup,
		notifier:  notif,
		logger:    logger,
	}
}

// Submit 处理一条原始读数
// 入库失败是致命错误；后续的状态回写、缓存、通知均不影响已接受的结果
func (p *Pipeline) Submit(ctx context.Context, raw *RawReading) (*IngestResult, error) {
	reading, err := p.validate(raw)
	if err != nil {
		return nil, err
	}

	if err := p.readings.SaveReading(ctx, reading); err != nil {
		p.logger.Error("Failed to save reading",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save reading: %w", err)
	}

	classification := p.evaluator.Classify(*reading)
	emergency := classification == evaluator.Emergency

	if emergency {
		reading.EmergencyStatus = true
		// 回写失败只记录：读数已入库，告警流程继续
		if err := p.readings.UpdateEmergencyStatus(ctx, reading.ID, true); err != nil {
			p.logger.Error("Failed to update emergency status",
				zap.Int64("reading_id", reading.ID),
				zap.String("device_id", reading.DeviceID),
				zap.Error(err))
		}
	}

	if p.cache != nil {
		if err := p.cache.UpdateRealtime(ctx, reading); err != nil {
			p.logger.Warn("Failed to update realtime cache",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err))
		}
	}

	result := &IngestResult{Accepted: true, Emergency: emergency}
	if !emergency {
		return result, nil
	}

	p.handleEmergency(ctx, reading)
	return result, nil
}

// handleEmergency 紧急读数的去重与扇出
func (p *Pipeline) handleEmergency(ctx context.Context, reading *models.Reading) {
	now := time.Now()
	if !p.dedup.ShouldNotify(reading.DeviceID, now) {
		p.logger.Info("Emergency notification suppressed by cooldown",
			zap.String("device_id", reading.DeviceID))
		return
	}

	user, err := p.users.GetUserByDeviceID(ctx, reading.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			p.logger.Warn("No user profile for emergency device, skipping notification",
				zap.String("device_id", reading.DeviceID))
		} else {
			p.logger.Error("Failed to load user profile",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err))
		}
		return
	}

	event := &models.EmergencyEvent{
		EventID:    uuid.New().String(),
		DeviceID:   reading.DeviceID,
		Reading:    *reading,
		DetectedAt: now,
		DedupKey:   reading.DeviceID,
	}

	if p.cache != nil {
		if err := p.cache.MarkEmergency(ctx, event); err != nil {
			p.logger.Warn("Failed to mark active emergency in cache",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err))
		}
	}

	p.logger.Info("Emergency detected, starting notification fan-out",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.Int("heart_rate", reading.HeartRate),
		zap.Int("spo2", reading.SpO2))

	// 扇出不阻塞摄入请求；使用独立上下文避免随请求取消
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.notifier.Notify(context.Background(), event, user)
	}()
}

// Drain 等待所有在途的通知扇出完成（停机与测试用）
func (p *Pipeline) Drain() {
	p.wg.Wait()
}

func (p *Pipeline) validate(raw *RawReading) (*models.Reading, error) {
	if raw == nil {
		return nil, &ValidationError{Field: "body", Message: "is required"}
	}
	if raw.DeviceID == "" {
		return nil, &ValidationError{Field: "deviceId", Message: "is required"}
	}
	if raw.HeartRate == nil {
		return nil, &ValidationError{Field: "heartRate", Message: "is required"}
	}
	if *raw.HeartRate < 0 || *raw.HeartRate > 250 {
		return nil, &ValidationError{Field: "heartRate", Message: "must be between 0 and 250"}
	}
	if raw.SpO2 == nil {
		return nil, &ValidationError{Field: "spO2", Message: "is required"}
	}
	if *raw.SpO2 < 0 || *raw.SpO2 > 100 {
		return nil, &ValidationError{Field: "spO2", Message: "must be between 0 and 100"}
	}
	if raw.Location == nil {
		return nil, &ValidationError{Field: "location", Message: "is required"}
	}
	if raw.Location.Latitude == nil {
		return nil, &ValidationError{Field: "location.latitude", Message: "is required"}
	}
	if raw.Location.Longitude == nil {
		return nil, &ValidationError{Field: "location.longitude", Message: "is required"}
	}
	if *raw.Location.Latitude < -90 || *raw.Location.Latitude > 90 {
		return nil, &ValidationError{Field: "location.latitude", Message: "must be between -90 and 90"}
	}
	if *raw.Location.Longitude < -180 || *raw.Location.Longitude > 180 {
		return nil, &ValidationError{Field: "location.longitude", Message: "must be between -180 and 180"}
	}
	if raw.BatteryLevel != nil && (*raw.BatteryLevel < 0 || *raw.BatteryLevel > 100) {
		return nil, &ValidationError{Field: "batteryLevel", Message: "must be between 0 and 100"}
	}

	timestamp := time.Now()
	if raw.Timestamp != nil {
		timestamp = *raw.Timestamp
	}

	return &models.Reading{
		DeviceID:     raw.DeviceID,
		Timestamp:    timestamp,
		HeartRate:    *raw.HeartRate,
		SpO2:         *raw.SpO2,
		Location:     models.Location{Latitude: *raw.Location.Latitude, Longitude: *raw.Location.Longitude},
		BatteryLevel: raw.BatteryLevel,
	}, nil
}
