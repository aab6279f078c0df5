// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

const cacheBackend = "redis"

// CacheStore 阶段结果缓存，多实例共享
// 存储故障一律降级为未命中/空操作，不向调用方返回错误
type CacheStore struct {
	client *Client
	prefix string
}

// NewCacheStore 创建缓存
func NewCacheStore(client *Client, prefix string) *CacheStore {
	return &CacheStore{client: client, prefix: prefix}
}

// Get 获取缓存值
func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			metrics.CacheOperationsTotal.WithLabelValues(cacheBackend, "get", "miss").Inc()
			return nil, false
		}
		span.RecordError(err)
		metrics.CacheOperationsTotal.WithLabelValues(cacheBackend, "get", "error").Inc()
		logger.Warn(ctx, "cache get failed, treating as miss", "key", key, "error", err.Error())
		return nil, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	metrics.CacheOperationsTotal.WithLabelValues(cacheBackend, "get", "hit").Inc()
	return val, true
}

// Set 设置缓存值，覆盖旧值并重置过期时间
func (c *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	if err := c.client.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		// 缓存写入失败不影响返回结果
		span.RecordError(err)
		metrics.CacheOperationsTotal.WithLabelValues(cacheBackend, "set", "error").Inc()
		logger.Warn(ctx, "cache set failed, skipping", "key", key, "error", err.Error())
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(cacheBackend, "set", "ok").Inc()
}
