package dedup

import (
	"sync"
	"time"
)

// Deduplicator 通知去重器
// 同一设备在冷却窗口内最多触发一次通知扇出
// check-and-record 为单次原子操作，避免同设备并发读数同时胜出
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	lastSent map[string]time.Time
}

// NewDeduplicator 创建去重器
// window <= 0 表示不做冷却（每次都允许通知）
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window:   window,
		lastSent: make(map[string]time.Time),
	}
}

// ShouldNotify 判断该设备当前是否应触发通知
// 返回 true 时同时把 now 记录为该设备的最后通知时间
// 无历史记录时无条件返回 true
func (d *Deduplicator) ShouldNotify(deviceID string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSent[deviceID]; ok && d.window > 0 && now.Sub(last) < d.window {
		return false
	}

	d.lastSent[deviceID] = now
	return true
}

// Sweep 清理冷却窗口已过期的记录，返回清理数量
// 长期运行时避免 map 随历史设备无界增长
func (d *Deduplicator) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for deviceID, last := range d.lastSent {
		if now.Sub(last) >= d.window {
			delete(d.lastSent, deviceID)
			removed++
		}
	}
	return removed
}

// Len 当前追踪的设备数
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSent)
}
