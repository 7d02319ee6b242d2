package models

import (
	"encoding/json"
)

// User 用户/设备档案（对应 users 表）
// 管线只读；由用户管理服务负责维护
type User struct {
	DeviceID          string             `json:"device_id" db:"device_id"`
	Name              string             `json:"name" db:"name"`
	Email             string             `json:"email" db:"email"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts"`
	MedicalInfo       json.RawMessage    `json:"medical_info,omitempty"` // JSONB，对管线不透明
}

// EmergencyContact 紧急联系人
type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Relationship string `json:"relationship"`
}
