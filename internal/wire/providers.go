// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/application/archive"
	"github.com/MfFischer/makersai-studio/internal/application/feasibility"
	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/cache"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/llm"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/messaging"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/objectstore"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/persistence/postgres"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/persistence/redis"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/handler"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/router"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// App API 网关依赖容器
type App struct {
	Router *router.Router
	// Usage 供 Eino 全局回调记录模型用量
	Usage *generation.UsageRecorder
}

// Worker design-worker 依赖容器
type Worker struct {
	Redis   *redis.Client
	Archive *archive.Handler
}

// Gates 通用与严格两级准入控制器
type Gates struct {
	General *admission.Controller
	Strict  *admission.Controller
}

// needsRedis 任一组件配置为 Redis 后端时才建立连接
func needsRedis(cfg *config.Config) bool {
	if cfg.Cache.Enabled && cfg.Cache.Backend == "redis" {
		return true
	}
	if cfg.Security.RateLimit.Enabled && cfg.Security.RateLimit.Backend == "redis" {
		return true
	}
	p := cfg.Features.Persistence
	return p.Enabled && p.Mode == "stream"
}

// ProvideRedisClient 提供 Redis 客户端；未使用 Redis 时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !needsRedis(cfg) {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "redis connected", "host", cfg.Cache.Redis.Host, "port", cfg.Cache.Redis.Port)
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRequiredRedisClient worker 必须连接 Redis
func ProvideRequiredRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvidePostgresClient 提供 PostgreSQL 客户端；仅 direct 落库模式需要
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	p := cfg.Features.Persistence
	if !p.Enabled || p.Mode != "direct" {
		return nil, func() {}, nil
	}
	return ProvideRequiredPostgresClient(ctx, cfg)
}

// ProvideRequiredPostgresClient 连接 PostgreSQL 并按需迁移表结构
func ProvideRequiredPostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideStageCache 按配置选择阶段结果缓存后端
func ProvideStageCache(cfg *config.Config, rc *redis.Client) (generation.CacheStore, func(), error) {
	if !cfg.Cache.Enabled {
		return cache.NopStore{}, func() {}, nil
	}

	var (
		store   cache.Store
		cleanup = func() {}
	)
	switch cfg.Cache.Backend {
	case "redis":
		store = redis.NewCacheStore(rc, cfg.Cache.KeyPrefix)
	default:
		mem := cache.NewMemoryStore(cfg.Cache.CheckPeriod)
		store = mem
		cleanup = func() { _ = mem.Close() }
	}

	if !cfg.Cache.Compression.Enabled {
		return store, cleanup, nil
	}
	compressed, err := cache.NewCompressedStore(store, cfg.Cache.Compression.Level)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return compressed, func() {
		_ = compressed.Close()
		cleanup()
	}, nil
}

// ProvideGates 创建通用与严格准入控制器，共享计数后端，键按控制器名称区分
func ProvideGates(cfg *config.Config, rc *redis.Client) (Gates, func()) {
	rl := cfg.Security.RateLimit

	var (
		counter admission.Counter
		cleanup = func() {}
	)
	switch rl.Backend {
	case "redis":
		counter = redis.NewWindowCounter(rc)
	default:
		mem := admission.NewMemoryCounter(rl.Window)
		counter = mem
		cleanup = func() { _ = mem.Close() }
	}

	general := admission.NewController(admission.Config{
		Name:        "general",
		Enabled:     rl.Enabled,
		Window:      rl.Window,
		MaxRequests: rl.MaxRequests,
		KeyPrefix:   rl.KeyPrefix,
	}, counter)
	strict := admission.NewController(admission.Config{
		Name:        "strict",
		Enabled:     rl.Enabled,
		Window:      rl.Window,
		MaxRequests: admission.StrictLimit(rl.MaxRequests),
		KeyPrefix:   rl.KeyPrefix,
	}, counter)

	return Gates{General: general, Strict: strict}, cleanup
}

// ProvideStageExecutor 创建缓存优先的阶段执行器
func ProvideStageExecutor(cfg *config.Config, provider *llm.StageProvider, store generation.CacheStore) *generation.StageExecutor {
	return generation.NewStageExecutor(provider, store, generation.ExecutorConfig{
		TTL:     cfg.Cache.TTL,
		Timeout: cfg.Pipeline.StageTimeout,
	})
}

// ProvidePreviewStore 按配置选择预览图存放方式，MinIO 不可用时退回内联
func ProvidePreviewStore(ctx context.Context, cfg *config.Config) generation.PreviewStore {
	if cfg.Storage.Previews != "minio" {
		return generation.InlinePreviews{}
	}
	store, err := objectstore.NewPreviewStore(ctx, cfg.Storage.MinIO)
	if err != nil {
		logger.Warn(ctx, "minio not available, previews will be inlined", "error", err.Error())
		return generation.InlinePreviews{}
	}
	return store
}

// ProvideSink 按配置选择生成结果的归档通道
func ProvideSink(cfg *config.Config, rc *redis.Client, pg *postgres.Client) (generation.Sink, func()) {
	p := cfg.Features.Persistence
	if !p.Enabled {
		return generation.NopSink{}, func() {}
	}
	if p.Mode == "direct" {
		sink := archive.NewRepositorySink(postgres.NewDesignRepository(pg), postgres.NewUsageRepository(pg))
		return sink, sink.Wait
	}
	producer := messaging.NewProducer(rc.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	sink := archive.NewStreamSink(producer)
	return sink, sink.Wait
}

// ProvideOrchestrator 创建生成编排器
func ProvideOrchestrator(
	cfg *config.Config,
	executor *generation.StageExecutor,
	gates Gates,
	profiles *feasibility.Registry,
	previews generation.PreviewStore,
	sink generation.Sink,
) *generation.Orchestrator {
	p := cfg.Pipeline
	return generation.NewOrchestrator(executor, gates.Strict, profiles, previews, sink, generation.Config{
		Limits: generation.Limits{
			MinPromptLength: p.MinPromptLength,
			MaxPromptLength: p.MaxPromptLength,
			MaxDimension:    p.MaxDimension,
			MaxPaletteSize:  p.MaxPaletteSize,
			MaxImageBytes:   p.MaxImageBytes,
		},
		ConstructionBudget: p.ConstructionBudget,
		PartConcurrency:    p.PartConcurrency,
	})
}

// ProvideHealthHandler 只登记实际建立的依赖，避免把 nil 指针包装成非 nil 接口
func ProvideHealthHandler(cfg *config.Config, rc *redis.Client, pg *postgres.Client, previews generation.PreviewStore) *handler.HealthHandler {
	var deps []handler.Dependency
	if rc != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: rc, Required: true})
	}
	if pg != nil {
		deps = append(deps, handler.Dependency{Name: "postgres", Checker: pg})
	}
	if store, ok := previews.(*objectstore.PreviewStore); ok {
		deps = append(deps, handler.Dependency{Name: "minio", Checker: store})
	}
	return handler.NewHealthHandler(cfg.App.Env, cfg.App.Version, deps...)
}

// ProvideRouter 创建 HTTP 路由器，通用准入挂在中间件上
func ProvideRouter(cfg *config.Config, gates Gates, handlers router.Handlers) *router.Router {
	return router.New(cfg, gates.General, handlers)
}

// ProvideArchiveHandler worker 侧直接写库
func ProvideArchiveHandler(pg *postgres.Client) *archive.Handler {
	return archive.NewHandler(postgres.NewTxManager(pg), postgres.NewDesignRepository(pg), postgres.NewUsageRepository(pg))
}
