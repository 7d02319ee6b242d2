package models

import (
	"time"
)

// Reading 设备读数（对应 readings 表）
// 一条读数在入库后不可变；EmergencyStatus 由服务端评估后回写
type Reading struct {
	ID              int64     `json:"id" db:"id"`
	DeviceID        string    `json:"device_id" db:"device_id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	HeartRate       int       `json:"heart_rate" db:"heart_rate"` // 0-250
	SpO2            int       `json:"spo2" db:"spo2"`             // 0-100
	Location        Location  `json:"location"`
	BatteryLevel    *int      `json:"battery_level,omitempty" db:"battery_level"` // 0-100，可选
	EmergencyStatus bool      `json:"emergency_status" db:"emergency_status"`     // 服务端计算，客户端不可提交
}

// Location 设备位置（经纬度）
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}
