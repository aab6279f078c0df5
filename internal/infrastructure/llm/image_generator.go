package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/MfFischer/makersai-studio/internal/config"
	llmctx "github.com/MfFischer/makersai-studio/internal/domain/service"
	wfnode "github.com/MfFischer/makersai-studio/internal/workflow/node"
	workflowport "github.com/MfFischer/makersai-studio/internal/workflow/port"
	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

// maxImagePromptRunes DALL·E 3 提示词长度上限
const maxImagePromptRunes = 4000

// ErrNoImage 图像模型没有返回图片
var ErrNoImage = errors.New("no image was generated")

// OpenAIImageGenerator 基于 OpenAI Images API 的预览图渲染
type OpenAIImageGenerator struct {
	client   *goopenai.Client
	provider string
	model    string
	size     string
	suffix   string
}

// NewOpenAIImageGenerator 按 llm.stages.render 配置创建图像生成器
func NewOpenAIImageGenerator(cfg *config.Config) (*OpenAIImageGenerator, error) {
	renderCfg := cfg.LLM.Stages.Render
	name, providerCfg, err := resolveProvider(&cfg.LLM, renderCfg.Provider)
	if err != nil {
		return nil, err
	}

	clientCfg := goopenai.DefaultConfig(providerCfg.APIKey)
	if providerCfg.BaseURL != "" {
		clientCfg.BaseURL = providerCfg.BaseURL
	}

	return &OpenAIImageGenerator{
		client:   goopenai.NewClientWithConfig(clientCfg),
		provider: name,
		model:    renderCfg.Model,
		size:     renderCfg.Size,
		suffix:   renderCfg.Suffix,
	}, nil
}

// Generate 渲染一张预览图，返回 base64 编码的 PNG
func (g *OpenAIImageGenerator) Generate(ctx context.Context, prompt string) (*workflowport.GeneratedImage, error) {
	stage := llmctx.StageFromContext(ctx)
	start := time.Now()

	resp, err := g.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         wfnode.BuildImagePrompt(prompt, g.suffix, maxImagePromptRunes),
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	metrics.LLMCallDuration.WithLabelValues(stage, g.provider, g.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(stage, g.provider, g.model, "error").Inc()
		return nil, fmt.Errorf("create image: %w", err)
	}
	metrics.LLMCallTotal.WithLabelValues(stage, g.provider, g.model, "success").Inc()

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrNoImage
	}
	logger.Debug(ctx, "preview image generated", "model", g.model, "size", g.size)
	return &workflowport.GeneratedImage{Base64: resp.Data[0].B64JSON, MIMEType: "image/png"}, nil
}
