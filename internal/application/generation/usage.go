package generation

import (
	"context"
	"time"

	"github.com/MfFischer/makersai-studio/internal/domain/service"
)

// UsageRecorder 把模型调用的 token 用量转为用量事件交给 Sink
type UsageRecorder struct {
	sink Sink
	now  func() time.Time
}

// NewUsageRecorder 创建用量记录器
func NewUsageRecorder(sink Sink) *UsageRecorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &UsageRecorder{sink: sink, now: time.Now}
}

// Record 实现 service.LLMUsageRecorder
func (r *UsageRecorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	r.sink.RecordUsage(ctx, &UsageEvent{
		Action:   "llm_call",
		ClientID: in.ClientID,
		Metadata: map[string]any{
			"runId":            in.RunID,
			"stage":            in.Stage,
			"provider":         in.Provider,
			"model":            in.Model,
			"promptTokens":     in.PromptTokens,
			"completionTokens": in.CompletionTokens,
			"durationMs":       in.DurationMs,
		},
		CreatedAt: r.now(),
	})
	return nil
}
