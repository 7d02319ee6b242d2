package models

import (
	"time"
)

// EmergencyEvent 紧急事件（内存态）
// 不单独落库：Reading.EmergencyStatus 即持久痕迹
type EmergencyEvent struct {
	EventID    string    `json:"event_id"`
	DeviceID   string    `json:"device_id"`
	Reading    Reading   `json:"reading"`
	DetectedAt time.Time `json:"detected_at"`
	DedupKey   string    `json:"dedup_key"` // 目前等于 DeviceID
}
