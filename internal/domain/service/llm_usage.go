package service

import "context"

// LLMUsageInput 一次上游模型调用的用量数据
// 位于 domain/service，基础设施层的回调只依赖该契约
type LLMUsageInput struct {
	ClientID string
	RunID    string

	Stage    string
	Provider string
	Model    string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int
}

// LLMUsageRecorder 记录模型用量，实现应为 best-effort，不阻塞生成流程
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}
