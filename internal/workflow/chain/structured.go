package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "github.com/MfFischer/makersai-studio/internal/domain/service"
	wfmodel "github.com/MfFischer/makersai-studio/internal/workflow/model"
	wfnode "github.com/MfFischer/makersai-studio/internal/workflow/node"
	workflowport "github.com/MfFischer/makersai-studio/internal/workflow/port"
	workflowprompt "github.com/MfFischer/makersai-studio/internal/workflow/prompt"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// StructuredChain 模板 -> 模型 -> JSON 截取，输出为单个 JSON 对象文本
type StructuredChain struct {
	factory workflowport.ChatModelFactory
	prompts *workflowprompt.Registry

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.StructuredInput, string]
	chainErr  error
}

func NewStructuredChain(factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry) *StructuredChain {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &StructuredChain{factory: factory, prompts: prompts}
}

func (c *StructuredChain) Invoke(ctx context.Context, in *wfmodel.StructuredInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, in)
}

type structuredChainState struct {
	In       *wfmodel.StructuredInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *StructuredChain) getChain() (compose.Runnable[*wfmodel.StructuredInput, string], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StructuredChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.StructuredInput, string], error) {
	chain := compose.NewChain[*wfmodel.StructuredInput, string]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.StructuredInput) (*structuredChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return &structuredChainState{In: in}, nil
		}),
		compose.WithNodeName("structured.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structuredChainState) (*structuredChainState, error) {
			msgs, err := c.formatMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("structured.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structuredChainState) (*structuredChainState, error) {
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithStageProvider(ctx, st.In.Stage, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildModelOptions(st.In, true)...)
			if err != nil && st.In.Schema != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"stage", st.In.Stage,
					"provider", provider,
					"model", st.In.Model,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("structured.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *structuredChainState) (string, error) {
			if st == nil || st.OutMsg == nil {
				return "", fmt.Errorf("state is nil")
			}
			out := wfnode.ExtractJSONObject(st.OutMsg.Content)
			if out == "" {
				return "", fmt.Errorf("empty llm response")
			}
			return out, nil
		}),
		compose.WithNodeName("structured.extract"),
	)

	return chain.Compile(ctx)
}

func (c *StructuredChain) formatMessages(ctx context.Context, in *wfmodel.StructuredInput) ([]*schema.Message, error) {
	tpl, err := c.prompts.ChatTemplate(workflowprompt.PromptID(in.Template))
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, in.Vars)
	if err != nil {
		return nil, err
	}
	if in.Image != nil && len(msgs) > 0 {
		attachImage(msgs[len(msgs)-1], in.Image)
	}
	return msgs, nil
}

// attachImage 把图片以 data URL 形式附加到用户消息
func attachImage(msg *schema.Message, img *wfmodel.Attachment) {
	dataURL := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	msg.MultiContent = []schema.ChatMessagePart{
		{Type: schema.ChatMessagePartTypeText, Text: msg.Content},
		{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:    dataURL,
				Detail: schema.ImageURLDetailAuto,
			},
		},
	}
	msg.Content = ""
}

func buildModelOptions(in *wfmodel.StructuredInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	if enableSchema && in.Schema != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   in.SchemaName,
					"strict": false,
					"schema": in.Schema,
				},
			},
		}))
	}
	return opts
}
