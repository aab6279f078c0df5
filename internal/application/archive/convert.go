// Package archive 将生成结果与用量事件写入持久化存储（直接写库或经消息队列）
package archive

import (
	"time"

	"github.com/google/uuid"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

// DesignEntity 将生成记录转换为实体
func DesignEntity(rec *generation.DesignRecord) *entity.Design {
	d := &entity.Design{
		ID:        rec.ID,
		RunID:     rec.RunID,
		ClientID:  rec.ClientID,
		Mode:      string(rec.Mode),
		Prompt:    rec.Prompt,
		Palette:   append([]string(nil), rec.Palette...),
		ScadCode:  rec.Result.ModelCode,
		ImageURL:  rec.Result.PreviewImageRef,
		PartName:  rec.Result.PartName,
		Color:     rec.Result.Color,
		CreatedAt: rec.CreatedAt,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if rec.Dimensions != nil {
		w, h := rec.Dimensions.Width, rec.Dimensions.Height
		d.Width, d.Height = &w, &h
	}
	if rec.Result.VectorProfile != nil {
		svg := *rec.Result.VectorProfile
		d.SvgCode = &svg
	}
	return d
}

// UsageEntity 将用量事件转换为实体
func UsageEntity(ev *generation.UsageEvent) *entity.UsageEvent {
	u := &entity.UsageEvent{
		ID:        uuid.NewString(),
		Action:    ev.Action,
		ClientID:  ev.ClientID,
		Metadata:  ev.Metadata,
		CreatedAt: ev.CreatedAt,
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return u
}
