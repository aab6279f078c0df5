package archive

import (
	"context"
	"fmt"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
	"github.com/MfFischer/makersai-studio/internal/domain/repository"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/messaging"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// Handler 消费归档消息并写库
type Handler struct {
	tx      repository.Transactor
	designs repository.DesignRepository
	usage   repository.UsageRepository
}

// NewHandler 创建归档消息处理器
func NewHandler(tx repository.Transactor, designs repository.DesignRepository, usage repository.UsageRepository) *Handler {
	return &Handler{tx: tx, designs: designs, usage: usage}
}

// Register 注册到消费者
func (h *Handler) Register(c *messaging.Consumer) {
	c.RegisterHandler(messaging.TypeDesignGenerated, h.HandleDesign)
	c.RegisterHandler(messaging.TypeUsageEvent, h.HandleUsage)
}

// HandleDesign 写入生成结果；消息重投时已存在的记录直接跳过
func (h *Handler) HandleDesign(ctx context.Context, msg *messaging.Message) error {
	var design entity.Design
	if err := msg.UnmarshalPayload(&design); err != nil {
		return fmt.Errorf("decode design payload: %w", err)
	}
	if design.ID == "" || design.ScadCode == "" {
		return fmt.Errorf("design payload missing id or scad_code")
	}
	return h.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := h.designs.GetByID(ctx, design.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Debug(ctx, "design already archived", "design_id", design.ID)
			return nil
		}
		return h.designs.Create(ctx, &design)
	})
}

// HandleUsage 写入用量事件
func (h *Handler) HandleUsage(ctx context.Context, msg *messaging.Message) error {
	var event entity.UsageEvent
	if err := msg.UnmarshalPayload(&event); err != nil {
		return fmt.Errorf("decode usage payload: %w", err)
	}
	if event.ID == "" || event.Action == "" {
		return fmt.Errorf("usage payload missing id or action")
	}
	return h.usage.Create(ctx, &event)
}
