// Package router 提供 HTTP 路由配置
package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/handler"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/middleware"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health   *handler.HealthHandler
	Generate *handler.GenerateHandler
	Printers *handler.PrinterHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	gate     *admission.Controller
	handlers Handlers
}

// New 创建新的路由器；gate 为通用准入控制器，可为 nil
func New(cfg *config.Config, gate *admission.Controller, handlers Handlers) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		gate:     gate,
		handlers: handlers,
	}

	// 客户端地址是准入身份，只信任显式配置的代理转发头
	if err := r.engine.SetTrustedProxies(cfg.Server.HTTP.TrustedProxies); err != nil {
		logger.Warn(context.Background(), "invalid trusted proxies, forwarding headers ignored", "error", err.Error())
		_ = r.engine.SetTrustedProxies(nil)
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/health", "/ready", "/live", r.cfg.Observability.Metrics.Path))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.cfg.Observability.Metrics.Path))
	}

	r.engine.Use(middleware.BodyLimit(r.cfg.Server.HTTP.MaxBodyBytes))
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	if h := r.handlers.Health; h != nil {
		r.engine.GET("/health", h.Health)
		r.engine.GET("/ready", h.Ready)
		r.engine.GET("/live", h.Live)
	}

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.engine.Group("/api", middleware.ClientIdentity(), middleware.Admission(r.gate))

	// 生成接口，另有严格准入在编排器内执行
	if h := r.handlers.Generate; h != nil {
		generate := api.Group("/generate")
		{
			generate.POST("/model", h.GenerateModel)
			generate.POST("/construction-plan", h.GenerateConstructionPlan)
			generate.POST("/construction-parts", h.GenerateConstructionParts)
			generate.POST("/construction", h.GenerateConstruction)
			generate.POST("/from-image", h.GenerateFromImage)
		}
	}

	if h := r.handlers.Printers; h != nil {
		printers := api.Group("/printers")
		{
			printers.GET("/profiles", h.ListProfiles)
			printers.GET("/profiles/:profileId", h.GetProfile)
			printers.POST("/validate/dimensions", h.ValidateDimensions)
			printers.POST("/validate/laser", h.ValidateLaser)
		}
	}
}
