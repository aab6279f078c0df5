package generation

import (
	"context"
	"time"
)

// Provider 上游推理服务，按阶段类型多态
type Provider interface {
	Infer(ctx context.Context, spec *StageSpec) (StructuredResult, error)
}

// CacheStore 阶段结果缓存；存储故障由实现降级为未命中/空操作
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// RenderedImage 渲染阶段产出的预览图
type RenderedImage struct {
	Base64   string
	MIMEType string
}

// PreviewStore 保存预览图并返回可访问的引用
type PreviewStore interface {
	Put(ctx context.Context, img RenderedImage) (string, error)
}

// DesignRecord 一次完成的生成结果及请求元数据
type DesignRecord struct {
	ID         string
	RunID      string
	ClientID   string
	Mode       Mode
	Prompt     string
	Dimensions *Dimensions
	Palette    []string
	Result     GenerationResult
	CreatedAt  time.Time
}

// UsageEvent 使用量统计事件
type UsageEvent struct {
	Action    string
	ClientID  string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Sink 设计结果与用量的写后落库通道，调用方不等待结果
type Sink interface {
	RecordDesign(ctx context.Context, rec *DesignRecord)
	RecordUsage(ctx context.Context, ev *UsageEvent)
}

// NopSink 不落库
type NopSink struct{}

// RecordDesign 空操作
func (NopSink) RecordDesign(context.Context, *DesignRecord) {}

// RecordUsage 空操作
func (NopSink) RecordUsage(context.Context, *UsageEvent) {}

// InlinePreviews 以 data URL 形式内联预览图
type InlinePreviews struct{}

// Put 返回 data URL
func (InlinePreviews) Put(_ context.Context, img RenderedImage) (string, error) {
	return InlineRef(img), nil
}

// InlineRef 构造 data URL
func InlineRef(img RenderedImage) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + img.Base64
}

// GenerationResult 一个部件或整个物体的产出
type GenerationResult struct {
	ModelCode       string  `json:"scadCode"`
	PreviewImageRef string  `json:"imageUrl"`
	VectorProfile   *string `json:"svgCode"`
	PartName        string  `json:"partName,omitempty"`
	Color           string  `json:"color,omitempty"`
}
