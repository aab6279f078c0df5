// Package redis 提供 Redis 固定窗口计数器实现
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// fixedWindowScript 原子地计数并在首次计数时设置窗口过期
// 返回 {count, pttl_ms}
var fixedWindowScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// WindowCounter 基于 Redis 的固定窗口计数器，多实例共享配额
type WindowCounter struct {
	client *Client
}

// NewWindowCounter 创建计数器
func NewWindowCounter(client *Client) *WindowCounter {
	return &WindowCounter{client: client}
}

// Incr 计数加一并返回窗口剩余时间
func (w *WindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Incr")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	vals, err := fixedWindowScript.Run(ctx, w.client.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return 0, 0, err
	}
	if len(vals) != 2 {
		err = fmt.Errorf("unexpected fixed window reply: %v", vals)
		span.RecordError(err)
		return 0, 0, err
	}

	span.SetAttributes(attribute.Int64("ratelimit.current_count", vals[0]))
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}
