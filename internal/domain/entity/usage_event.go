package entity

import "time"

// UsageEvent 用量统计事件：生成请求与模型调用
type UsageEvent struct {
	ID       string         `json:"id" gorm:"type:uuid;primaryKey"`
	Action   string         `json:"action" gorm:"type:varchar(64);index;not null"`
	ClientID string         `json:"client_id" gorm:"type:varchar(128);index"`
	Metadata map[string]any `json:"metadata,omitempty" gorm:"serializer:json;type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}
