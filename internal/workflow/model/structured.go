package model

// Attachment 随用户消息发送的图片
type Attachment struct {
	Data     []byte
	MIMEType string
}

// StructuredInput 一次结构化输出调用的输入
type StructuredInput struct {
	// Stage 用于日志、指标与 callbacks
	Stage    string
	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int

	// Template 提示词模板 ID 与变量
	Template string
	Vars     map[string]any
	Image    *Attachment

	// SchemaName/Schema 用于 response_format=json_schema，Schema 为空时仅靠提示词约束
	SchemaName string
	Schema     map[string]any
}
