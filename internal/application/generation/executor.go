package generation

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
	"github.com/MfFischer/makersai-studio/pkg/tracer"
)

// ExecutorConfig 阶段执行配置
type ExecutorConfig struct {
	// TTL 成功结果的缓存时长
	TTL time.Duration
	// Timeout 单次上游调用的超时
	Timeout time.Duration
}

// StageExecutor 缓存优先的单阶段执行器
// 未命中时只调用一次上游，失败不重试也不缓存
type StageExecutor struct {
	provider Provider
	cache    CacheStore
	cfg      ExecutorConfig
	group    singleflight.Group
}

// NewStageExecutor 创建执行器
func NewStageExecutor(provider Provider, cache CacheStore, cfg ExecutorConfig) *StageExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &StageExecutor{provider: provider, cache: cache, cfg: cfg}
}

// Execute 执行一个阶段
func (e *StageExecutor) Execute(ctx context.Context, spec *StageSpec) (StructuredResult, error) {
	key := CacheKey(spec)

	ctx, span := tracer.Start(ctx, "stage.Execute")
	span.SetAttributes(
		attribute.String("stage.kind", string(spec.Kind)),
		attribute.String("stage.cache_key", key),
	)

	if cached, ok := e.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("stage.cache_hit", true))
		span.End()
		metrics.StageExecutionsTotal.WithLabelValues(string(spec.Kind), "cache_hit").Inc()
		logger.Debug(ctx, "stage served from cache", "stage", spec.Kind, "key", key)
		return StructuredResult(cached), nil
	}
	span.SetAttributes(attribute.Bool("stage.cache_hit", false))

	// 预算由各调用方自行检查，合并后的上游调用只受阶段超时约束
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.StageExecutionsTotal.WithLabelValues(string(spec.Kind), "failed").Inc()
		err := newStageError(spec.Kind, ErrBudgetExceeded)
		tracer.End(span, err)
		return nil, err
	}

	// 同一键的并发未命中合并为一次上游调用
	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.invoke(ctx, spec, key)
	})
	span.SetAttributes(attribute.Bool("stage.shared", shared))
	if err != nil {
		tracer.End(span, err)
		return nil, err
	}
	span.End()

	// 共享结果需要复制，避免调用方互相影响
	res := v.(StructuredResult)
	out := make(StructuredResult, len(res))
	copy(out, res)
	return out, nil
}

func (e *StageExecutor) invoke(ctx context.Context, spec *StageSpec, key string) (StructuredResult, error) {
	// 上游调用与发起方的取消和截止时间解耦，合并等待的调用方不受其影响
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.provider.Infer(callCtx, spec)
	metrics.StageDuration.WithLabelValues(string(spec.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageExecutionsTotal.WithLabelValues(string(spec.Kind), "failed").Inc()
		logger.Error(ctx, "stage upstream call failed", err, "stage", spec.Kind)
		return nil, newStageError(spec.Kind, err)
	}

	if err := checkRequired(raw, spec.Contract); err != nil {
		metrics.StageExecutionsTotal.WithLabelValues(string(spec.Kind), "failed").Inc()
		logger.Error(ctx, "stage response rejected", err, "stage", spec.Kind)
		return nil, newStageError(spec.Kind, err)
	}

	e.cache.Set(ctx, key, raw, e.cfg.TTL)
	metrics.StageExecutionsTotal.WithLabelValues(string(spec.Kind), "success").Inc()
	logger.Debug(ctx, "stage completed", "stage", spec.Kind, "duration_ms", time.Since(start).Milliseconds())
	return raw, nil
}
