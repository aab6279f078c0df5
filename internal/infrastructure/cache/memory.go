// Package cache 提供进程内阶段结果缓存
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

const memoryBackend = "memory"

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 带 TTL 的进程内缓存
// 访问时惰性过期，另有后台定期清理
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time

	stop chan struct{}
	once sync.Once
}

// Option 缓存选项
type Option func(*MemoryStore)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore 创建进程内缓存，checkPeriod > 0 时启动后台清理
func NewMemoryStore(checkPeriod time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]entry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if checkPeriod > 0 {
		go s.janitor(checkPeriod)
	}
	return s
}

// Get 获取缓存值，过期视为未命中
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(memoryBackend, "get", "miss").Inc()
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		s.mu.Lock()
		// 期间可能已被重新写入
		if cur, ok := s.items[key]; ok && !now.Before(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		metrics.CacheOperationsTotal.WithLabelValues(memoryBackend, "get", "miss").Inc()
		return nil, false
	}

	metrics.CacheOperationsTotal.WithLabelValues(memoryBackend, "get", "hit").Inc()
	return clone(e.value), true
}

// Set 写入缓存，覆盖旧值并重置过期时间
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e := entry{value: clone(value), expiresAt: s.now().Add(ttl)}

	s.mu.Lock()
	s.items[key] = e
	n := len(s.items)
	s.mu.Unlock()

	metrics.CacheOperationsTotal.WithLabelValues(memoryBackend, "set", "ok").Inc()
	metrics.CacheEntries.WithLabelValues(memoryBackend).Set(float64(n))
}

// Len 当前条目数（含尚未清理的过期条目）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// DeleteExpired 清理过期条目
func (s *MemoryStore) DeleteExpired() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			removed++
		}
	}
	n := len(s.items)
	s.mu.Unlock()

	metrics.CacheEntries.WithLabelValues(memoryBackend).Set(float64(n))
	return removed
}

func (s *MemoryStore) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.DeleteExpired()
		case <-s.stop:
			return
		}
	}
}

// Close 停止后台清理
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// NopStore 关闭缓存时使用，总是未命中
type NopStore struct{}

// Get 总是未命中
func (NopStore) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set 空操作
func (NopStore) Set(context.Context, string, []byte, time.Duration) {}
