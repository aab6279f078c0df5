// Package admission 提供按客户端身份的固定窗口准入控制
package admission

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

// Counter 固定窗口计数器
type Counter interface {
	// Incr 对 key 在当前窗口内计数加一，返回加一后的计数与窗口剩余时间
	// 窗口从该 key 的第一次计数开始，到期后重新计数
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Config 准入配置
type Config struct {
	// Name 限流器名称，用于键前缀与指标
	Name        string
	Enabled     bool
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
}

// Decision 准入结果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds 向上取整的等待秒数，拒绝时至少为 1
func (d Decision) RetryAfterSeconds() int {
	return retrySeconds(d.RetryAfter)
}

// Controller 固定窗口准入控制器
type Controller struct {
	cfg     Config
	counter Counter
}

// NewController 创建准入控制器；counter 为 nil 或未启用时总是放行
func NewController(cfg Config, counter Counter) *Controller {
	if cfg.Name == "" {
		cfg.Name = "general"
	}
	return &Controller{cfg: cfg, counter: counter}
}

// StrictLimit 生成类接口使用约一半的配额，至少为 1
func StrictLimit(maxRequests int) int {
	return max(maxRequests/2, 1)
}

// Name 控制器名称
func (c *Controller) Name() string {
	return c.cfg.Name
}

// Enabled 是否启用
func (c *Controller) Enabled() bool {
	return c.cfg.Enabled && c.counter != nil
}

// Limit 每个窗口的最大请求数
func (c *Controller) Limit() int {
	return c.cfg.MaxRequests
}

// Admit 判断 identity 在当前窗口内是否可被接纳
func (c *Controller) Admit(ctx context.Context, identity string) Decision {
	if !c.Enabled() {
		return Decision{Allowed: true, Limit: c.cfg.MaxRequests, Remaining: c.cfg.MaxRequests}
	}
	if identity == "" {
		identity = "anonymous"
	}

	key := c.cfg.KeyPrefix + c.cfg.Name + ":" + identity
	count, ttl, err := c.counter.Incr(ctx, key, c.cfg.Window)
	if err != nil {
		// 计数器故障时放行，避免影响业务
		logger.Warn(ctx, "admission counter unavailable, failing open",
			"limiter", c.cfg.Name,
			"error", err.Error(),
		)
		metrics.AdmissionDecisionsTotal.WithLabelValues(c.cfg.Name, "fail_open").Inc()
		return Decision{Allowed: true, Limit: c.cfg.MaxRequests, Remaining: c.cfg.MaxRequests}
	}
	if ttl <= 0 {
		ttl = c.cfg.Window
	}

	limit := int64(c.cfg.MaxRequests)
	if count > limit {
		metrics.AdmissionDecisionsTotal.WithLabelValues(c.cfg.Name, "rejected").Inc()
		logger.Warn(ctx, "admission rejected",
			"limiter", c.cfg.Name,
			"identity", identity,
			"count", count,
			"retry_after", ttl.String(),
		)
		return Decision{Allowed: false, Limit: c.cfg.MaxRequests, Remaining: 0, RetryAfter: ttl}
	}

	metrics.AdmissionDecisionsTotal.WithLabelValues(c.cfg.Name, "allowed").Inc()
	return Decision{
		Allowed:    true,
		Limit:      c.cfg.MaxRequests,
		Remaining:  int(limit - count),
		RetryAfter: 0,
	}
}

// RejectedError 准入被拒绝
type RejectedError struct {
	Limiter    string
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("admission rejected by %s limiter, retry after %ds", e.Limiter, e.RetryAfterSeconds())
}

// RetryAfterSeconds 向上取整的等待秒数
func (e *RejectedError) RetryAfterSeconds() int {
	return retrySeconds(e.RetryAfter)
}

// Err 将拒绝结果转为错误，放行时返回 nil
func (c *Controller) Err(d Decision) error {
	if d.Allowed {
		return nil
	}
	return &RejectedError{Limiter: c.cfg.Name, RetryAfter: d.RetryAfter}
}

func retrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return max(int(math.Ceil(d.Seconds())), 1)
}
