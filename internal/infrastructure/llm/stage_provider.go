package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	llmctx "github.com/MfFischer/makersai-studio/internal/domain/service"
	wfmodel "github.com/MfFischer/makersai-studio/internal/workflow/model"
	wfnode "github.com/MfFischer/makersai-studio/internal/workflow/node"
	workflowport "github.com/MfFischer/makersai-studio/internal/workflow/port"
	workflowprompt "github.com/MfFischer/makersai-studio/internal/workflow/prompt"
)

// defaultVisionPrompt 以图生成且用户未填写描述时使用
const defaultVisionPrompt = "Create a 3D printable model of the main object in this image."

// StructuredInvoker 结构化输出调用
type StructuredInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.StructuredInput) (string, error)
}

// StageProvider 按阶段类型把调用分派到对话模型或图像模型
type StageProvider struct {
	chat   StructuredInvoker
	images workflowport.ImageGenerator
	stages config.StagesConfig
}

// NewStageProvider 创建阶段提供者
func NewStageProvider(chat StructuredInvoker, images workflowport.ImageGenerator, cfg *config.Config) *StageProvider {
	return &StageProvider{chat: chat, images: images, stages: cfg.LLM.Stages}
}

// Infer 执行一次上游调用并返回 JSON 对象
func (p *StageProvider) Infer(ctx context.Context, spec *generation.StageSpec) (generation.StructuredResult, error) {
	switch spec.Kind {
	case generation.StageDecompose:
		return p.structured(ctx, spec, p.stages.Decompose, workflowprompt.PromptDecomposeV1, map[string]any{
			"prompt": spec.Prompt,
			"colors": wfnode.BuildColorList(spec.Palette),
		})
	case generation.StageSynthesize:
		return p.structured(ctx, spec, p.stages.Synthesize, workflowprompt.PromptSynthesizeV1, map[string]any{
			"prompt":            spec.Prompt,
			"constraints_block": constraintsBlock(spec),
		})
	case generation.StageVision:
		prompt := spec.Prompt
		if prompt == "" {
			prompt = defaultVisionPrompt
		}
		return p.structured(ctx, spec, p.stages.Vision, workflowprompt.PromptVisionV1, map[string]any{
			"prompt":            prompt,
			"constraints_block": constraintsBlock(spec),
		})
	case generation.StageRender:
		return p.render(ctx, spec)
	default:
		return nil, fmt.Errorf("unsupported stage %q", spec.Kind)
	}
}

func (p *StageProvider) structured(ctx context.Context, spec *generation.StageSpec, stageCfg config.StageModelConfig, id workflowprompt.PromptID, vars map[string]any) (generation.StructuredResult, error) {
	in := &wfmodel.StructuredInput{
		Stage:      string(spec.Kind),
		Provider:   stageCfg.Provider,
		Model:      stageCfg.Model,
		Template:   string(id),
		Vars:       vars,
		SchemaName: spec.Contract.Name,
		Schema:     spec.Contract.Schema,
	}
	if stageCfg.Temperature > 0 {
		t := float32(stageCfg.Temperature)
		in.Temperature = &t
	}
	if stageCfg.MaxTokens > 0 {
		n := stageCfg.MaxTokens
		in.MaxTokens = &n
	}
	if spec.Image != nil {
		in.Image = &wfmodel.Attachment{Data: spec.Image.Data, MIMEType: spec.Image.MIMEType}
	}

	out, err := p.chat.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	return generation.StructuredResult(out), nil
}

func (p *StageProvider) render(ctx context.Context, spec *generation.StageSpec) (generation.StructuredResult, error) {
	if p.images == nil {
		return nil, fmt.Errorf("image generator not configured")
	}
	ctx = llmctx.WithStageProvider(ctx, string(spec.Kind), p.stages.Render.Provider)
	img, err := p.images.Generate(ctx, spec.Prompt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"imageBase64": img.Base64,
		"mimeType":    img.MIMEType,
	})
}

func constraintsBlock(spec *generation.StageSpec) string {
	if spec.Dimensions == nil {
		return wfnode.BuildConstraintsBlock(0, 0, false, spec.Palette)
	}
	return wfnode.BuildConstraintsBlock(spec.Dimensions.Width, spec.Dimensions.Height, true, spec.Palette)
}
