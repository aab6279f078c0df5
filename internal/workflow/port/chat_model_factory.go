package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 定义工作流层对 LLM ChatModel 的最小依赖（port）。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// GeneratedImage 图像模型的输出
type GeneratedImage struct {
	Base64   string
	MIMEType string
}

// ImageGenerator 文生图模型的最小依赖
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*GeneratedImage, error)
}
