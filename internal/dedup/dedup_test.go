package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldNotify_FirstTimeAlwaysTrue(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)

	assert.True(t, d.ShouldNotify("device-1", time.Now()))
}

func TestShouldNotify_WithinCooldownSuppressed(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Now()

	assert.True(t, d.ShouldNotify("device-1", now))
	assert.False(t, d.ShouldNotify("device-1", now.Add(10*time.Second)))
	assert.False(t, d.ShouldNotify("device-1", now.Add(4*time.Minute)))
}

func TestShouldNotify_AfterCooldownExpires(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Now()

	assert.True(t, d.ShouldNotify("device-1", now))
	assert.False(t, d.ShouldNotify("device-1", now.Add(time.Minute)))
	// 冷却窗口过期后允许第二次通知
	assert.True(t, d.ShouldNotify("device-1", now.Add(5*time.Minute)))
	// 第二次通知重新开启冷却
	assert.False(t, d.ShouldNotify("device-1", now.Add(6*time.Minute)))
}

func TestShouldNotify_DevicesIndependent(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Now()

	assert.True(t, d.ShouldNotify("device-1", now))
	assert.True(t, d.ShouldNotify("device-2", now))
	assert.False(t, d.ShouldNotify("device-1", now.Add(time.Second)))
}

func TestShouldNotify_ZeroWindowNeverSuppresses(t *testing.T) {
	d := NewDeduplicator(0)
	now := time.Now()

	assert.True(t, d.ShouldNotify("device-1", now))
	assert.True(t, d.ShouldNotify("device-1", now))
}

// 同设备并发读数只允许一个胜出
func TestShouldNotify_ConcurrentSameDevice(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Now()

	const goroutines = 32
	var wg sync.WaitGroup
	results := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- d.ShouldNotify("device-1", now)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Now()

	d.ShouldNotify("device-old", now.Add(-10*time.Minute))
	d.ShouldNotify("device-new", now.Add(-time.Minute))
	assert.Equal(t, 2, d.Len())

	removed := d.Sweep(now)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, d.Len())

	// 清理后视同无历史记录
	assert.True(t, d.ShouldNotify("device-old", now))
}
