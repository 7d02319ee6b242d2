package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rescue-ranger/internal/models"

	"go.uber.org/zap"
)

// ErrReadingNotFound 设备没有任何读数
var ErrReadingNotFound = errors.New("reading not found")

// ReadingsRepository 读数仓库（对应 readings 表）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// SaveReading 插入读数并回填自增 ID
// 写入成功前不得触发任何通知（紧急读数必须先有持久记录）
func (r *ReadingsRepository) SaveReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO readings (
			device_id,
			timestamp,
			heart_rate,
			spo2,
			latitude,
			longitude,
			battery_level,
			emergency_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		reading.DeviceID,
		reading.Timestamp,
		reading.HeartRate,
		reading.SpO2,
		reading.Location.Latitude,
		reading.Location.Longitude,
		reading.BatteryLevel,
		reading.EmergencyStatus,
	).Scan(&reading.ID)

	if err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}

	return nil
}

// UpdateEmergencyStatus 回写紧急标志
// 分类在持久化之后进行，此处为尽力而为的补充更新
func (r *ReadingsRepository) UpdateEmergencyStatus(ctx context.Context, id int64, emergency bool) error {
	query := `
		UPDATE readings
		SET emergency_status = $1
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, emergency, id)
	if err != nil {
		return fmt.Errorf("failed to update emergency status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reading not found: id=%d: %w", id, ErrReadingNotFound)
	}

	return nil
}

// GetLatestReading 获取设备最近的一条读数
func (r *ReadingsRepository) GetLatestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			id,
			device_id,
			timestamp,
			heart_rate,
			spo2,
			latitude,
			longitude,
			battery_level,
			emergency_status
		FROM readings
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var reading models.Reading
	var batteryLevel sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&reading.ID,
		&reading.DeviceID,
		&reading.Timestamp,
		&reading.HeartRate,
		&reading.SpO2,
		&reading.Location.Latitude,
		&reading.Location.Longitude,
		&batteryLevel,
		&reading.EmergencyStatus,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no readings for device %s: %w", deviceID, ErrReadingNotFound)
		}
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	if batteryLevel.Valid {
		level := int(batteryLevel.Int64)
		reading.BatteryLevel = &level
	}

	return &reading, nil
}
