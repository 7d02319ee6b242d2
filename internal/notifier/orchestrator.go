package notifier

import (
	"context"
	"sync"
	"time"

	"rescue-ranger/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config 编排器配置
type Config struct {
	MaxAttempts    int           // 每个分支最大尝试次数，默认 3
	BaseDelay      time.Duration // 重试退避基础延迟，默认 500ms（逐次翻倍）
	MaxDelay       time.Duration // 退避延迟上限，默认 5s
	AttemptTimeout time.Duration // 单次尝试超时，默认 10s
	Workers        int           // 扇出并发 worker 数，默认 4
	RatePerSec     int           // 每秒发送上限（0 = 不限速）
}

// DefaultConfig 默认编排配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		AttemptTimeout: 10 * time.Second,
		Workers:        4,
	}
}

// Channels 四类通道适配器
type Channels struct {
	Email    Channel
	SMS      Channel
	Push     Channel
	Dispatch Channel
}

// branch 一个待执行的通知分支
type branch struct {
	channel Channel
	target  string
}

// Orchestrator 通知编排器
// 把一次紧急事件扇出到所有适用通道：有界并发、独立重试、结果聚合
// 任何分支的失败都不会阻塞或取消其他分支
type Orchestrator struct {
	cfg         Config
	channels    Channels
	dispatchURL string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(cfg Config, channels Channels, dispatchURL string, logger *zap.Logger) *Orchestrator {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	return &Orchestrator{
		cfg:         cfg,
		channels:    channels,
		dispatchURL: dispatchURL,
		limiter:     limiter,
		logger:      logger,
	}
}

// Notify 执行一次完整扇出，所有分支到达终态后返回
// 没有整体超时：提前放弃联系人通知是安全性回退，不是可接受的优化
func (o *Orchestrator) Notify(ctx context.Context, event *models.EmergencyEvent, user *models.User) Summary {
	msg := BuildMessage(user, event)
	branches := o.buildBranches(event, user)

	o.logger.Info("Notification fan-out started",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.Int("branches", len(branches)),
	)

	start := time.Now()
	results := make([]BranchResult, len(branches))

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(branches) {
		workers = len(branches)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.runBranch(ctx, branches[i], msg)
			}
		}()
	}
	for i := range branches {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	summary := Summary{EventID: event.EventID}
	for _, r := range results {
		if r.Status == StatusSucceeded {
			summary.Succeeded = append(summary.Succeeded, r)
		} else {
			summary.Failed = append(summary.Failed, r)
		}
	}

	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.Int("succeeded", len(summary.Succeeded)),
		zap.Int("failed", len(summary.Failed)),
		zap.Duration("duration", time.Since(start)),
	}
	if summary.AllFailed() {
		// 告警投递整体失败，区别于医疗紧急事件本身
		o.logger.Error("All notification branches failed", fields...)
	} else if len(summary.Failed) > 0 {
		o.logger.Warn("Notification fan-out finished with failures", fields...)
	} else {
		o.logger.Info("Notification fan-out finished", fields...)
	}

	return summary
}

// buildBranches 构建全部通知分支
// 每个联系人：有邮箱则一个 Email 分支，有手机号则一个 SMS 分支；
// 另加恰好一个 Push 分支（设备持有者）与一个 Dispatch 分支（救援调度，总是存在）
func (o *Orchestrator) buildBranches(event *models.EmergencyEvent, user *models.User) []branch {
	var branches []branch

	for _, contact := range user.EmergencyContacts {
		if contact.Email != "" {
			branches = append(branches, branch{channel: o.channels.Email, target: contact.Email})
		}
		if contact.Phone != "" {
			branches = append(branches, branch{channel: o.channels.SMS, target: contact.Phone})
		}
	}

	branches = append(branches, branch{channel: o.channels.Push, target: event.DeviceID})
	branches = append(branches, branch{channel: o.channels.Dispatch, target: o.dispatchURL})

	return branches
}

// runBranch 执行单个分支：逐次尝试直至成功、永久失败或重试耗尽
func (o *Orchestrator) runBranch(ctx context.Context, b branch, msg Message) BranchResult {
	result := BranchResult{
		Channel: b.channel.Name(),
		Target:  b.target,
	}

	delay := o.cfg.BaseDelay
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				result.Status = StatusFailedTransient
				result.Err = err
				return result
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		err := b.channel.Send(attemptCtx, b.target, msg)
		cancel()

		if err == nil {
			result.Status = StatusSucceeded
			return result
		}
		result.Err = err

		if !IsTransient(err) {
			result.Status = StatusFailedPermanent
			o.logger.Warn("Notification branch failed permanently",
				zap.String("channel", result.Channel),
				zap.String("target", result.Target),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return result
		}

		if attempt == o.cfg.MaxAttempts {
			break
		}

		o.logger.Debug("Notification retry scheduled",
			zap.String("channel", result.Channel),
			zap.String("target", result.Target),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			result.Status = StatusFailedTransient
			result.Err = ctx.Err()
			return result
		case <-timer.C:
		}

		delay *= 2
		if delay > o.cfg.MaxDelay {
			delay = o.cfg.MaxDelay
		}
	}

	// 重试耗尽
	result.Status = StatusFailedTransient
	o.logger.Warn("Notification branch exhausted retries",
		zap.String("channel", result.Channel),
		zap.String("target", result.Target),
		zap.Int("attempts", result.Attempts),
		zap.Error(result.Err),
	)
	return result
}
