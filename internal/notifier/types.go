package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"rescue-ranger/internal/models"
)

// 通道标识
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelPush     = "push"
	ChannelDispatch = "dispatch"
)

// Message 通知内容（与具体通道无关）
type Message struct {
	Subject  string
	Body     string
	Location models.Location
}

// Channel 通知通道适配器
// Send 将一条消息投递到一个目标；target 的寻址语义由各通道自定义
// 不保证幂等投递：重试可能导致外部重复消息，以送达确定性换取 exactly-once
type Channel interface {
	Name() string
	Send(ctx context.Context, target string, msg Message) error
}

// ChannelError 通道错误
// Transient（超时、限流、5xx）可重试；永久错误（无效地址、4xx）立即终止分支
type ChannelError struct {
	Channel   string
	Transient bool
	Err       error
}

func (e *ChannelError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s channel %s error: %v", e.Channel, kind, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewTransientError 创建瞬时通道错误
func NewTransientError(channel string, err error) *ChannelError {
	return &ChannelError{Channel: channel, Transient: true, Err: err}
}

// NewPermanentError 创建永久通道错误
func NewPermanentError(channel string, err error) *ChannelError {
	return &ChannelError{Channel: channel, Transient: false, Err: err}
}

// IsTransient 判断错误是否可重试
// 未分类的错误（网络抖动、上下文超时等）一律按瞬时处理
func IsTransient(err error) bool {
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return true
}

// classifyStatus 按 HTTP 状态码归类：429/5xx 为瞬时，其余 4xx 为永久
func classifyStatus(channel string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return NewTransientError(channel, fmt.Errorf("endpoint returned status %d", code))
	default:
		return NewPermanentError(channel, fmt.Errorf("endpoint returned status %d", code))
	}
}

// BranchStatus 通知分支的终态
type BranchStatus string

const (
	StatusSucceeded       BranchStatus = "succeeded"
	StatusFailedTransient BranchStatus = "failed-transient" // 重试次数耗尽
	StatusFailedPermanent BranchStatus = "failed-permanent" // 永久错误，未重试
)

// BranchResult 单个通知分支的最终结果
type BranchResult struct {
	Channel  string
	Target   string
	Status   BranchStatus
	Attempts int
	Err      error
}

// Summary 一次扇出的聚合结果
// 部分失败不视为错误；全部失败由调用方作为告警投递故障记录
type Summary struct {
	EventID   string
	Succeeded []BranchResult
	Failed    []BranchResult
}

// AllFailed 是否所有分支均失败
func (s *Summary) AllFailed() bool {
	return len(s.Succeeded) == 0 && len(s.Failed) > 0
}

// BuildMessage 根据事件与用户档案生成告警内容
func BuildMessage(user *models.User, event *models.EmergencyEvent) Message {
	body := fmt.Sprintf(
		"Emergency for user %s\nHeart Rate: %d\nSpO2: %d\nLocation: %f, %f",
		user.Name,
		event.Reading.HeartRate,
		event.Reading.SpO2,
		event.Reading.Location.Latitude,
		event.Reading.Location.Longitude,
	)
	return Message{
		Subject:  "Emergency Alert",
		Body:     body,
		Location: event.Reading.Location,
	}
}
