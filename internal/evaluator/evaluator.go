package evaluator

import (
	"rescue-ranger/internal/models"
)

// Classification 分类结果
type Classification int

const (
	// Normal 生命体征在正常区间
	Normal Classification = iota
	// Emergency 生命体征越界，判定为紧急
	Emergency
)

func (c Classification) String() string {
	if c == Emergency {
		return "emergency"
	}
	return "normal"
}

// Thresholds 生命体征阈值（按部署可覆盖，见 config.Thresholds）
type Thresholds struct {
	HeartRateLow  int // 心率下限，默认 60
	HeartRateHigh int // 心率上限，默认 100
	SpO2Low       int // 血氧下限，默认 95
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRateLow:  60,
		HeartRateHigh: 100,
		SpO2Low:       95,
	}
}

// Evaluator 阈值评估器
// 纯函数、确定性、无副作用；越界输入由入库校验提前拒绝，不在此处理
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator 创建评估器
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Classify 评估单条读数
// 紧急条件：heartRate < HeartRateLow OR heartRate > HeartRateHigh OR spO2 < SpO2Low
func (e *Evaluator) Classify(reading models.Reading) Classification {
	if reading.HeartRate < e.thresholds.HeartRateLow ||
		reading.HeartRate > e.thresholds.HeartRateHigh ||
		reading.SpO2 < e.thresholds.SpO2Low {
		return Emergency
	}
	return Normal
}
