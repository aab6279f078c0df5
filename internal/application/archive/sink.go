package archive

import (
	"context"
	"sync"
	"time"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/domain/entity"
	"github.com/MfFischer/makersai-studio/internal/domain/repository"
	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

const defaultWriteTimeout = 10 * time.Second

// Publisher 归档消息发布方
type Publisher interface {
	PublishDesign(ctx context.Context, design *entity.Design) (string, error)
	PublishUsage(ctx context.Context, event *entity.UsageEvent) (string, error)
}

// asyncWriter 后台执行写入，不阻塞生成请求，失败只记日志
type asyncWriter struct {
	backend string
	timeout time.Duration
	wg      sync.WaitGroup
}

func (w *asyncWriter) spawn(ctx context.Context, kind string, fn func(ctx context.Context) error) {
	// 请求结束后写入仍需完成，保留日志上下文但脱离取消
	ctx = context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Warn(ctx, "archive write failed", "backend", w.backend, "kind", kind, "error", err.Error())
			metrics.SinkRecordsTotal.WithLabelValues(w.backend, "failed").Inc()
			return
		}
		metrics.SinkRecordsTotal.WithLabelValues(w.backend, "success").Inc()
	}()
}

// Wait 等待在途写入完成，用于优雅退出与测试
func (w *asyncWriter) Wait() {
	w.wg.Wait()
}

// RepositorySink 直接写入数据库
type RepositorySink struct {
	asyncWriter
	designs repository.DesignRepository
	usage   repository.UsageRepository
}

// NewRepositorySink 创建直接写库的归档通道
func NewRepositorySink(designs repository.DesignRepository, usage repository.UsageRepository) *RepositorySink {
	return &RepositorySink{
		asyncWriter: asyncWriter{backend: "postgres", timeout: defaultWriteTimeout},
		designs:     designs,
		usage:       usage,
	}
}

// RecordDesign 异步写入生成结果
func (s *RepositorySink) RecordDesign(ctx context.Context, rec *generation.DesignRecord) {
	design := DesignEntity(rec)
	s.spawn(ctx, "design", func(ctx context.Context) error {
		return s.designs.Create(ctx, design)
	})
}

// RecordUsage 异步写入用量事件
func (s *RepositorySink) RecordUsage(ctx context.Context, ev *generation.UsageEvent) {
	event := UsageEntity(ev)
	s.spawn(ctx, "usage", func(ctx context.Context) error {
		return s.usage.Create(ctx, event)
	})
}

// StreamSink 发布到 Redis Stream，由 design-worker 落库
type StreamSink struct {
	asyncWriter
	publisher Publisher
}

// NewStreamSink 创建经消息队列的归档通道
func NewStreamSink(publisher Publisher) *StreamSink {
	return &StreamSink{
		asyncWriter: asyncWriter{backend: "redis_stream", timeout: defaultWriteTimeout},
		publisher:   publisher,
	}
}

// RecordDesign 异步发布生成结果
func (s *StreamSink) RecordDesign(ctx context.Context, rec *generation.DesignRecord) {
	design := DesignEntity(rec)
	s.spawn(ctx, "design", func(ctx context.Context) error {
		_, err := s.publisher.PublishDesign(ctx, design)
		return err
	})
}

// RecordUsage 异步发布用量事件
func (s *StreamSink) RecordUsage(ctx context.Context, ev *generation.UsageEvent) {
	event := UsageEntity(ev)
	s.spawn(ctx, "usage", func(ctx context.Context) error {
		_, err := s.publisher.PublishUsage(ctx, event)
		return err
	})
}
