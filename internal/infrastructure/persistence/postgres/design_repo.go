package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

// DesignRepository 生成结果仓储实现
type DesignRepository struct {
	client *Client
}

// NewDesignRepository 创建生成结果仓储
func NewDesignRepository(client *Client) *DesignRepository {
	return &DesignRepository{client: client}
}

// Create 写入生成结果；相同 ID 重复写入视为成功，消费端重投时保持幂等
func (r *DesignRepository) Create(ctx context.Context, design *entity.Design) error {
	ctx, span := tracer.Start(ctx, "postgres.DesignRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(design).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create design: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取生成结果，不存在时返回 nil
func (r *DesignRepository) GetByID(ctx context.Context, id string) (*entity.Design, error) {
	ctx, span := tracer.Start(ctx, "postgres.DesignRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var design entity.Design
	if err := db.First(&design, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get design: %w", err)
	}
	return &design, nil
}
