package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rescue-ranger/internal/models"

	"go.uber.org/zap"
)

// ErrUserNotFound 设备没有对应的用户档案
var ErrUserNotFound = errors.New("user not found")

// UsersRepository 用户档案仓库（对应 users 表）
// 档案由用户管理服务维护，管线只读
type UsersRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsersRepository 创建用户档案仓库
func NewUsersRepository(db *sql.DB, logger *zap.Logger) *UsersRepository {
	return &UsersRepository{
		db:     db,
		logger: logger,
	}
}

// GetUserByDeviceID 按设备 ID 查询用户档案（含紧急联系人）
func (r *UsersRepository) GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			device_id,
			name,
			COALESCE(email, ''),
			emergency_contacts,
			medical_info
		FROM users
		WHERE device_id = $1
	`

	var user models.User
	var contacts, medicalInfo []byte

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&user.DeviceID,
		&user.Name,
		&user.Email,
		&contacts,
		&medicalInfo,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no user for device %s: %w", deviceID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// 处理 JSONB 字段
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &user.EmergencyContacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal emergency contacts: %w", err)
		}
	}
	if len(medicalInfo) > 0 {
		user.MedicalInfo = medicalInfo
	} else {
		user.MedicalInfo = json.RawMessage("{}")
	}

	return &user, nil
}
