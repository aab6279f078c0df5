//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/MfFischer/makersai-studio/internal/application/feasibility"
	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/llm"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/handler"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/router"
	"github.com/MfFischer/makersai-studio/internal/workflow/chain"
	workflowport "github.com/MfFischer/makersai-studio/internal/workflow/port"
	workflowprompt "github.com/MfFischer/makersai-studio/internal/workflow/prompt"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		InfraSet,
		LLMSet,
		PipelineSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 design-worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvideRequiredRedisClient,
		ProvideRequiredPostgresClient,
		ProvideArchiveHandler,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InfraSet 外部依赖提供者集合，按配置决定是否建立连接
var InfraSet = wire.NewSet(
	ProvideRedisClient,
	ProvidePostgresClient,
	ProvideStageCache,
	ProvidePreviewStore,
	ProvideSink,
)

// LLMSet 上游模型提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	workflowprompt.NewRegistry,
	chain.NewStructuredChain,
	llm.NewOpenAIImageGenerator,
	llm.NewStageProvider,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(workflowport.ImageGenerator), new(*llm.OpenAIImageGenerator)),
	wire.Bind(new(llm.StructuredInvoker), new(*chain.StructuredChain)),
)

// PipelineSet 生成流水线提供者集合
var PipelineSet = wire.NewSet(
	ProvideGates,
	ProvideStageExecutor,
	feasibility.NewRegistry,
	ProvideOrchestrator,
	generation.NewUsageRecorder,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerateHandler,
	handler.NewPrinterHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
