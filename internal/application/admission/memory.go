package admission

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter 进程内固定窗口计数器
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// MemoryOption 计数器选项
type MemoryOption func(*MemoryCounter)

// WithClock 替换时间源
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCounter) {
		m.now = now
	}
}

// NewMemoryCounter 创建进程内计数器，sweepEvery > 0 时定期清理过期窗口
func NewMemoryCounter(sweepEvery time.Duration, opts ...MemoryOption) *MemoryCounter {
	m := &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if sweepEvery > 0 {
		go m.sweepLoop(sweepEvery)
	}
	return m
}

// Incr 实现 Counter
func (m *MemoryCounter) Incr(_ context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(win)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.expiresAt.Sub(now), nil
}

// Len 当前窗口数量
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Sweep 清理已过期的窗口
func (m *MemoryCounter) Sweep() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, w := range m.windows {
		if !now.Before(w.expiresAt) {
			delete(m.windows, k)
		}
	}
}

func (m *MemoryCounter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

// Close 停止后台清理
func (m *MemoryCounter) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
