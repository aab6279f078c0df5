package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/application/feasibility"
	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/metrics"
)

// Executor 执行单个阶段
type Executor interface {
	Execute(ctx context.Context, spec *StageSpec) (StructuredResult, error)
}

// Config 编排配置
type Config struct {
	Limits Limits
	// ConstructionBudget 拼装流水线的总时间预算，<=0 表示不限制
	ConstructionBudget time.Duration
	// PartConcurrency 部件并发数，1 为严格顺序
	PartConcurrency int
}

// Orchestrator 把阶段调用编排成直接生成、拆件拼装和以图生成三条流水线
type Orchestrator struct {
	executor Executor
	gate     *admission.Controller
	profiles *feasibility.Registry
	previews PreviewStore
	sink     Sink
	cfg      Config
	now      func() time.Time
}

// NewOrchestrator 创建编排器；gate 为生成类接口专用的严格准入控制器
func NewOrchestrator(
	executor Executor,
	gate *admission.Controller,
	profiles *feasibility.Registry,
	previews PreviewStore,
	sink Sink,
	cfg Config,
) *Orchestrator {
	if previews == nil {
		previews = InlinePreviews{}
	}
	if sink == nil {
		sink = NopSink{}
	}
	if cfg.PartConcurrency < 1 {
		cfg.PartConcurrency = 1
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	return &Orchestrator{
		executor: executor,
		gate:     gate,
		profiles: profiles,
		previews: previews,
		sink:     sink,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Limits 当前校验上限
func (o *Orchestrator) Limits() Limits {
	return o.cfg.Limits
}

// Admit 严格准入检查，拒绝时返回 *admission.RejectedError
func (o *Orchestrator) Admit(ctx context.Context, identity string) error {
	if o.gate == nil {
		return nil
	}
	return o.gate.Err(o.gate.Admit(ctx, identity))
}

// GenerateDirect 阶段 A 生成代码与图像描述，阶段 B 以该描述渲染预览图
func (o *Orchestrator) GenerateDirect(ctx context.Context, req DesignRequest) (*GenerationResult, error) {
	req.Mode = ModeDirect
	req = req.normalized()
	if err := req.Validate(o.cfg.Limits); err != nil {
		return nil, err
	}
	o.recordUsage(ctx, clientIDFrom(ctx), "generate_"+string(req.Mode), requestUsage(req))
	res, err := o.synthesizeAndRender(ctx, SynthesizeSpec(req.Prompt, req.Dimensions, req.Palette), nil, -1, "")
	if err != nil {
		return nil, err
	}
	o.recordDesign(ctx, req, res)
	return res, nil
}

// GenerateFromImage 以参考图生成代码与图像描述，预览图渲染同直接生成
func (o *Orchestrator) GenerateFromImage(ctx context.Context, req DesignRequest) (*GenerationResult, error) {
	req.Mode = ModeImage
	req = req.normalized()
	if err := req.Validate(o.cfg.Limits); err != nil {
		return nil, err
	}
	o.recordUsage(ctx, clientIDFrom(ctx), "generate_"+string(req.Mode), requestUsage(req))
	res, err := o.synthesizeAndRender(ctx, VisionSpec(req.Prompt, req.SourceImage, req.Dimensions, req.Palette), nil, -1, "")
	if err != nil {
		return nil, err
	}
	o.recordDesign(ctx, req, res)
	return res, nil
}

// GenerateConstructionPlan 把整体描述拆成有序的部件列表
// 零部件或结构不合法视为整个方案失败，不返回部分方案
func (o *Orchestrator) GenerateConstructionPlan(ctx context.Context, req DesignRequest) ([]ConstructionPart, error) {
	req.Mode = ModeConstruction
	req = req.normalized()
	if err := req.Validate(o.cfg.Limits); err != nil {
		return nil, err
	}
	parts, err := o.plan(ctx, req)
	if err != nil {
		return nil, err
	}
	meta := requestUsage(req)
	meta["partCount"] = len(parts)
	o.recordUsage(ctx, clientIDFrom(ctx), "generate_construction_plan", meta)
	return parts, nil
}

// GenerateConstructionParts 按方案顺序逐个生成部件
// 第 i 个部件失败时中止其余部件，已完成的 0..i-1 照常返回，错误为 *StageError
func (o *Orchestrator) GenerateConstructionParts(ctx context.Context, plan []ConstructionPart, dims *Dimensions, observer Observer) ([]GenerationResult, error) {
	if err := o.validatePlan(plan, dims); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)
	tr := newTracker(ctx, runID, observer)
	tr.run(StateAdmitted, nil)

	meta := map[string]any{"partCount": len(plan)}
	if dims != nil {
		meta["dimensions"] = dims
	}
	o.recordUsage(ctx, clientIDFrom(ctx), "generate_construction_parts", meta)

	ctx, cancel := o.withBudget(ctx)
	defer cancel()

	req := DesignRequest{Mode: ModeConstruction, Dimensions: dims}
	results, err := o.buildParts(ctx, tr, req, clonePlan(plan))
	if err != nil {
		tr.run(StateFailed, err)
		return results, err
	}
	tr.run(StateCompleted, nil)
	return results, nil
}

// RunResult 一次完整运行的结果；失败时 Results 仍包含已完成的部分
type RunResult struct {
	RunID       string              `json:"runId"`
	Mode        Mode                `json:"mode"`
	Plan        []ConstructionPart  `json:"plan,omitempty"`
	Results     []GenerationResult  `json:"results"`
	Feasibility *feasibility.Report `json:"feasibility,omitempty"`
}

// Run 执行完整流水线：严格准入、校验、可行性报告、按模式分派
func (o *Orchestrator) Run(ctx context.Context, identity string, req DesignRequest, observer Observer) (*RunResult, error) {
	runID := uuid.New().String()
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)
	tr := newTracker(ctx, runID, observer)
	start := o.now()
	out := &RunResult{RunID: runID, Mode: req.Mode, Results: []GenerationResult{}}

	finish := func(state RunState, err error) (*RunResult, error) {
		metrics.PipelineRunsTotal.WithLabelValues(string(req.Mode), string(state)).Inc()
		if state != StateRejected {
			metrics.PipelineDuration.WithLabelValues(string(req.Mode)).Observe(o.now().Sub(start).Seconds())
		}
		if state == StateCompleted {
			logger.Info(ctx, "generation run completed", "mode", req.Mode, "results", len(out.Results))
		}
		return out, err
	}

	if err := o.Admit(ctx, identity); err != nil {
		tr.run(StateRejected, err)
		return finish(StateRejected, err)
	}
	tr.run(StateAdmitted, nil)

	req = req.normalized()
	if err := req.Validate(o.cfg.Limits); err != nil {
		tr.run(StateFailed, err)
		return finish(StateFailed, err)
	}
	out.Feasibility = o.feasibility(req)
	o.recordUsage(ctx, identity, "generate_"+string(req.Mode), requestUsage(req))

	var err error
	switch req.Mode {
	case ModeDirect:
		err = o.runSingle(ctx, tr, req, out, SynthesizeSpec(req.Prompt, req.Dimensions, req.Palette))
	case ModeImage:
		err = o.runSingle(ctx, tr, req, out, VisionSpec(req.Prompt, req.SourceImage, req.Dimensions, req.Palette))
	case ModeConstruction:
		err = o.runConstruction(ctx, tr, req, out)
	}
	if err != nil {
		tr.run(StateFailed, err)
		return finish(StateFailed, err)
	}
	tr.run(StateCompleted, nil)
	return finish(StateCompleted, nil)
}

func (o *Orchestrator) runSingle(ctx context.Context, tr *tracker, req DesignRequest, out *RunResult, spec *StageSpec) error {
	res, err := o.synthesizeAndRender(ctx, spec, tr, -1, "")
	if err != nil {
		return err
	}
	out.Results = append(out.Results, *res)
	tr.result(0, res)
	o.recordDesign(ctx, req, res)
	return nil
}

func (o *Orchestrator) runConstruction(ctx context.Context, tr *tracker, req DesignRequest, out *RunResult) error {
	ctx, cancel := o.withBudget(ctx)
	defer cancel()

	tr.run(StateDecomposing, nil)
	plan, err := o.plan(ctx, req)
	if err != nil {
		return err
	}
	out.Plan = plan
	tr.plan(plan)

	results, err := o.buildParts(ctx, tr, req, plan)
	out.Results = append(out.Results, results...)
	return err
}

func (o *Orchestrator) plan(ctx context.Context, req DesignRequest) ([]ConstructionPart, error) {
	raw, err := o.executor.Execute(ctx, DecomposeSpec(req.Prompt, req.Palette))
	if err != nil {
		return nil, err
	}
	var p planPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, newStageError(StageDecompose, fmt.Errorf("%w: %v", ErrContractViolation, err))
	}
	// 缓存中的结果也要满足结构要求
	if err := checkPlan(raw); err != nil {
		return nil, newStageError(StageDecompose, fmt.Errorf("%w: %v", ErrContractViolation, err))
	}
	metrics.ConstructionParts.Observe(float64(len(p.Parts)))
	logger.Info(ctx, "construction plan generated", "parts", len(p.Parts))
	return p.Parts, nil
}

// synthesizeAndRender 依次执行阶段 A（synthesize / vision）与阶段 B（render）
// part < 0 表示非拼装模式
func (o *Orchestrator) synthesizeAndRender(ctx context.Context, spec *StageSpec, tr *tracker, part int, partName string) (*GenerationResult, error) {
	idx := max(part, 0)
	if tr != nil {
		tr.part(idx, partName, StateSynthesizing, nil)
	}
	fail := func(err error) (*GenerationResult, error) {
		err = withPart(err, part, partName)
		if tr != nil {
			tr.part(idx, partName, StateFailed, err)
		}
		return nil, err
	}

	if err := o.checkBudget(ctx, spec.Kind); err != nil {
		return fail(err)
	}
	raw, err := o.executor.Execute(ctx, spec)
	if err != nil {
		return fail(err)
	}
	var out synthesisPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return fail(newStageError(spec.Kind, fmt.Errorf("%w: %v", ErrContractViolation, err)))
	}
	if spec.Kind == StageVision && out.Analysis != "" {
		logger.Info(ctx, "image analysis", "analysis", out.Analysis)
	}

	if tr != nil {
		tr.part(idx, partName, StateRendering, nil)
	}
	if err := o.checkBudget(ctx, StageRender); err != nil {
		return fail(err)
	}
	ref, err := o.render(ctx, out.ImagePrompt)
	if err != nil {
		return fail(err)
	}

	res := &GenerationResult{
		ModelCode:       out.ScadCode,
		PreviewImageRef: ref,
	}
	if strings.TrimSpace(out.SvgCode) != "" {
		svg := out.SvgCode
		res.VectorProfile = &svg
	}
	if tr != nil {
		tr.part(idx, partName, StateCompleted, nil)
	}
	return res, nil
}

func (o *Orchestrator) render(ctx context.Context, imageDescription string) (string, error) {
	raw, err := o.executor.Execute(ctx, RenderSpec(imageDescription))
	if err != nil {
		return "", err
	}
	var img renderPayload
	if err := json.Unmarshal(raw, &img); err != nil {
		return "", newStageError(StageRender, fmt.Errorf("%w: %v", ErrContractViolation, err))
	}

	rendered := RenderedImage{Base64: img.ImageBase64, MIMEType: img.MimeType}
	ref, err := o.previews.Put(ctx, rendered)
	if err != nil {
		// 对象存储不可用时退回内联
		logger.Warn(ctx, "preview store failed, falling back to inline image", "error", err.Error())
		return InlineRef(rendered), nil
	}
	return ref, nil
}

func (o *Orchestrator) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.ConstructionBudget <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.cfg.ConstructionBudget)
}

// checkBudget 在发起每个阶段前检查预算与调用方是否已放弃
func (o *Orchestrator) checkBudget(ctx context.Context, kind StageKind) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return newStageError(kind, ErrBudgetExceeded)
	default:
		return newStageError(kind, err)
	}
}

func (o *Orchestrator) validatePlan(plan []ConstructionPart, dims *Dimensions) error {
	var fields []FieldError
	if len(plan) == 0 {
		fields = append(fields, FieldError{Field: "plan", Message: "plan must contain at least one part"})
	}
	for i, p := range plan {
		if strings.TrimSpace(p.PartName) == "" || strings.TrimSpace(p.SubPrompt) == "" || strings.TrimSpace(p.AssignedColor) == "" {
			fields = append(fields, FieldError{Field: fmt.Sprintf("plan[%d]", i), Message: "partName, prompt and color are required"})
		}
	}
	if len(fields) == 0 && dims != nil {
		probe := DesignRequest{Mode: ModeConstruction, Prompt: plan[0].SubPrompt, Dimensions: dims}
		var ve *ValidationError
		if err := probe.Validate(o.cfg.Limits); errors.As(err, &ve) {
			for _, f := range ve.Fields {
				if strings.HasPrefix(f.Field, "dimensions") {
					fields = append(fields, f)
				}
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (o *Orchestrator) feasibility(req DesignRequest) *feasibility.Report {
	if o.profiles == nil || req.ProfileID == "" || req.Dimensions == nil {
		return nil
	}
	rep := o.profiles.CheckLaser(req.ProfileID, req.Dimensions.Width, req.Dimensions.Height)
	status := "valid"
	if !rep.Valid {
		status = "violation"
	}
	metrics.FeasibilityChecksTotal.WithLabelValues("laser", status).Inc()
	return &rep
}

func (o *Orchestrator) recordDesign(ctx context.Context, req DesignRequest, res *GenerationResult) {
	o.sink.RecordDesign(ctx, &DesignRecord{
		ID:         uuid.New().String(),
		RunID:      runIDFrom(ctx),
		ClientID:   clientIDFrom(ctx),
		Mode:       req.Mode,
		Prompt:     req.Prompt,
		Dimensions: req.Dimensions,
		Palette:    req.Palette,
		Result:     *res,
		CreatedAt:  o.now(),
	})
}

func (o *Orchestrator) recordUsage(ctx context.Context, identity, action string, meta map[string]any) {
	o.sink.RecordUsage(ctx, &UsageEvent{
		Action:    action,
		ClientID:  identity,
		Metadata:  meta,
		CreatedAt: o.now(),
	})
}

// requestUsage 用量记录中与请求相关的元数据
func requestUsage(req DesignRequest) map[string]any {
	meta := map[string]any{
		"promptLength": len([]rune(req.Prompt)),
		"colors":       len(req.Palette),
	}
	if req.Dimensions != nil {
		meta["dimensions"] = req.Dimensions
	}
	if req.ProfileID != "" {
		meta["profileId"] = req.ProfileID
	}
	return meta
}

// withPart 为部件失败补充部件信息，不修改可能被共享的原错误
func withPart(err error, part int, name string) error {
	if part < 0 {
		return err
	}
	var se *StageError
	if errors.As(err, &se) {
		cp := *se
		cp.PartIndex = part
		cp.PartName = name
		return &cp
	}
	return &StageError{Stage: StageSynthesize, PartIndex: part, PartName: name, Err: err}
}

func clonePlan(plan []ConstructionPart) []ConstructionPart {
	out := make([]ConstructionPart, len(plan))
	copy(out, plan)
	for i := range out {
		out[i].PartName = strings.TrimSpace(out[i].PartName)
		out[i].SubPrompt = strings.TrimSpace(out[i].SubPrompt)
		out[i].AssignedColor = strings.TrimSpace(out[i].AssignedColor)
	}
	return out
}

func runIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(logger.RunIDKey).(string); ok {
		return v
	}
	return ""
}

func clientIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(logger.ClientIDKey).(string); ok {
		return v
	}
	return ""
}
