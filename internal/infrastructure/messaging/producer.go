package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishDesign 发布生成结果归档消息
func (p *Producer) PublishDesign(ctx context.Context, design *entity.Design) (string, error) {
	msg, err := NewMessage(design.ID, TypeDesignGenerated, design.ClientID, design.RunID, design)
	if err != nil {
		return "", err
	}
	stampRequestMetadata(ctx, msg)
	if design.PartName != "" {
		msg.SetMetadata("part_name", design.PartName)
	}
	return p.Publish(ctx, StreamDesignArchive, msg)
}

// PublishUsage 发布用量事件
func (p *Producer) PublishUsage(ctx context.Context, event *entity.UsageEvent) (string, error) {
	runID, _ := event.Metadata["runId"].(string)
	msg, err := NewMessage(event.ID, TypeUsageEvent, event.ClientID, runID, event)
	if err != nil {
		return "", err
	}
	stampRequestMetadata(ctx, msg)
	msg.SetMetadata("action", event.Action)
	return p.Publish(ctx, StreamDesignArchive, msg)
}

// stampRequestMetadata 透传请求标识，消费端据此恢复日志上下文
func stampRequestMetadata(ctx context.Context, msg *Message) {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}
}
