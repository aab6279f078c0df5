package repository

import (
	"context"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

// DesignRepository 生成结果仓储
type DesignRepository interface {
	Create(ctx context.Context, design *entity.Design) error
	GetByID(ctx context.Context, id string) (*entity.Design, error)
}

// UsageRepository 用量事件仓储
type UsageRepository interface {
	Create(ctx context.Context, event *entity.UsageEvent) error
}
