package postgres

import (
	"context"
	"fmt"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

// UsageRepository 用量事件仓储实现
type UsageRepository struct {
	client *Client
}

// NewUsageRepository 创建用量事件仓储
func NewUsageRepository(client *Client) *UsageRepository {
	return &UsageRepository{client: client}
}

// Create 写入用量事件
func (r *UsageRepository) Create(ctx context.Context, event *entity.UsageEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.UsageRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create usage event: %w", err)
	}
	return nil
}
