// Package entity 定义领域实体
package entity

import "time"

// Design 一次完成的生成结果（整体或单个部件）
type Design struct {
	ID       string `json:"id" gorm:"type:uuid;primaryKey"`
	RunID    string `json:"run_id" gorm:"type:varchar(64);index"`
	ClientID string `json:"client_id" gorm:"type:varchar(128);index"`
	Mode     string `json:"mode" gorm:"type:varchar(16);not null"`
	Prompt   string `json:"prompt" gorm:"type:text;not null"`

	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	// Palette 调色板，以 JSON 数组存储
	Palette []string `json:"palette,omitempty" gorm:"serializer:json;type:jsonb"`

	ScadCode string  `json:"scad_code" gorm:"type:text;not null"`
	ImageURL string  `json:"image_url" gorm:"type:text"`
	SvgCode  *string `json:"svg_code,omitempty" gorm:"type:text"`

	PartName string `json:"part_name,omitempty" gorm:"type:varchar(255)"`
	Color    string `json:"color,omitempty" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Design) TableName() string {
	return "designs"
}
