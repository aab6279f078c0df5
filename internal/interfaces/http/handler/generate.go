package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/dto"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/middleware"
	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// GenerateHandler 生成类接口处理器
type GenerateHandler struct {
	orch *generation.Orchestrator
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(orch *generation.Orchestrator) *GenerateHandler {
	return &GenerateHandler{orch: orch}
}

func identity(c *gin.Context) string {
	return c.GetString(middleware.ClientIDKey)
}

// GenerateModel 直接生成
// @Summary 直接生成 OpenSCAD 模型与预览
// @Tags Generate
// @Accept json
// @Produce json
// @Router /api/generate/model [post]
func (h *GenerateHandler) GenerateModel(c *gin.Context) {
	var req dto.GenerateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	out, err := h.orch.Run(c.Request.Context(), identity(c), req.ToDomain(generation.ModeDirect), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, singleResponse(out))
}

// GenerateConstructionPlan 生成拼装方案
// @Summary 把物体拆成带颜色的部件列表
// @Tags Generate
// @Accept json
// @Produce json
// @Router /api/generate/construction-plan [post]
func (h *GenerateHandler) GenerateConstructionPlan(c *gin.Context) {
	var req dto.ConstructionPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.orch.Admit(ctx, identity(c)); err != nil {
		respondError(c, err)
		return
	}
	plan, err := h.orch.GenerateConstructionPlan(ctx, req.ToDomain())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, plan)
}

// GenerateConstructionParts 按既定方案生成部件
// @Summary 按方案顺序生成部件，支持 SSE 逐个推送
// @Tags Generate
// @Accept json
// @Produce json,text/event-stream
// @Router /api/generate/construction-parts [post]
func (h *GenerateHandler) GenerateConstructionParts(c *gin.Context) {
	var req dto.ConstructionPartsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.orch.Admit(ctx, identity(c)); err != nil {
		respondError(c, err)
		return
	}

	if wantsEventStream(c) {
		// 方案校验失败时尚无事件，仍以普通 JSON 返回
		var stream *eventStream
		observer := func(ev generation.Event) {
			if stream == nil {
				stream = newEventStream(c)
			}
			stream.observe(ev)
		}
		results, err := h.orch.GenerateConstructionParts(ctx, req.Plan, req.Dimensions.ToDomain(), observer)
		switch {
		case stream == nil && err != nil:
			respondError(c, err)
		case err != nil:
			stream.fail(err)
		default:
			stream.done(dto.ConstructionResponse{Results: results})
		}
		return
	}

	results, err := h.orch.GenerateConstructionParts(ctx, req.Plan, req.Dimensions.ToDomain(), nil)
	if err != nil && !hasPartFailure(err) {
		respondError(c, err)
		return
	}
	h.respondConstruction(c, &generation.RunResult{Results: results}, err)
}

// GenerateConstruction 一次调用完成拆件与全部部件生成
// @Summary 拆件并生成所有部件
// @Tags Generate
// @Accept json
// @Produce json,text/event-stream
// @Router /api/generate/construction [post]
func (h *GenerateHandler) GenerateConstruction(c *gin.Context) {
	var req dto.GenerateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	ctx := c.Request.Context()
	if wantsEventStream(c) {
		// 进入拆件阶段后才切换为 SSE，准入与校验失败仍以普通 JSON 返回
		var stream *eventStream
		observer := func(ev generation.Event) {
			if stream == nil {
				if ev.Kind != generation.EventState || ev.PartIndex >= 0 || ev.State != generation.StateDecomposing {
					return
				}
				stream = newEventStream(c)
			}
			stream.observe(ev)
		}
		out, err := h.orch.Run(ctx, identity(c), req.ToDomain(generation.ModeConstruction), observer)
		switch {
		case stream == nil && err != nil:
			respondError(c, err)
		case stream == nil:
			dto.Success(c, constructionResponse(out, nil))
		case err != nil:
			stream.fail(err)
		default:
			stream.done(constructionResponse(out, nil))
		}
		return
	}

	out, err := h.orch.Run(ctx, identity(c), req.ToDomain(generation.ModeConstruction), nil)
	if err != nil && !hasPartFailure(err) && len(out.Plan) == 0 {
		respondError(c, err)
		return
	}
	h.respondConstruction(c, out, err)
}

// GenerateFromImage 以参考图生成
// @Summary 上传参考图生成模型
// @Tags Generate
// @Accept multipart/form-data
// @Produce json
// @Router /api/generate/from-image [post]
func (h *GenerateHandler) GenerateFromImage(c *gin.Context) {
	req, err := h.imageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.orch.Run(c.Request.Context(), identity(c), req, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, singleResponse(out))
}

// respondConstruction 拼装结果：部件失败时以 500 返回已完成前缀与失败信息
func (h *GenerateHandler) respondConstruction(c *gin.Context, out *generation.RunResult, err error) {
	resp := constructionResponse(out, err)
	if err == nil {
		dto.Success(c, resp)
		return
	}
	logger.Error(c.Request.Context(), "construction run failed", err, "completed_parts", len(resp.Results))
	appErr := toAppError(err)
	c.JSON(appErr.HTTPStatus, dto.Response[dto.ConstructionResponse]{
		Code:    appErr.HTTPStatus,
		Message: appErr.Message,
		Data:    resp,
		TraceID: c.GetString("trace_id"),
	})
}

func singleResponse(out *generation.RunResult) dto.GenerationResponse {
	resp := dto.GenerationResponse{RunID: out.RunID}
	if len(out.Results) > 0 {
		resp.GenerationResult = out.Results[0]
	}
	if out.Feasibility != nil {
		resp.Feasibility = out.Feasibility
	}
	return resp
}

func constructionResponse(out *generation.RunResult, err error) dto.ConstructionResponse {
	resp := dto.ConstructionResponse{
		RunID:   out.RunID,
		Plan:    out.Plan,
		Results: out.Results,
		Failure: partFailure(err),
	}
	if resp.Results == nil {
		resp.Results = []generation.GenerationResult{}
	}
	if out.Feasibility != nil {
		resp.Feasibility = out.Feasibility
	}
	return resp
}

func hasPartFailure(err error) bool {
	return partFailure(err) != nil
}

func partFailure(err error) *dto.PartFailure {
	var stage *generation.StageError
	if !stderrors.As(err, &stage) || stage.PartIndex < 0 {
		return nil
	}
	return &dto.PartFailure{
		PartIndex: stage.PartIndex,
		PartName:  stage.PartName,
		Message:   stage.PublicMessage(),
	}
}

// imageRequest 解析 multipart 表单；字段格式错误按校验失败处理
func (h *GenerateHandler) imageRequest(c *gin.Context) (generation.DesignRequest, error) {
	req := generation.DesignRequest{
		Mode:      generation.ModeImage,
		Prompt:    c.PostForm("prompt"),
		ProfileID: c.PostForm("profileId"),
	}
	var fields []generation.FieldError

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		img, readErr := readImage(fh, h.orch.Limits().MaxImageBytes)
		if readErr != nil {
			fields = append(fields, generation.FieldError{Field: "image", Message: "Unable to read image"})
		} else {
			req.SourceImage = img
		}
	case stderrors.Is(err, http.ErrMissingFile):
		// 交给领域校验报告缺图
	default:
		fields = append(fields, generation.FieldError{Field: "image", Message: "Invalid multipart form"})
	}

	width, wErr := formFloat(c, "width")
	height, hErr := formFloat(c, "height")
	if wErr != nil {
		fields = append(fields, generation.FieldError{Field: "dimensions.width", Message: wErr.Error()})
	}
	if hErr != nil {
		fields = append(fields, generation.FieldError{Field: "dimensions.height", Message: hErr.Error()})
	}
	if width != nil || height != nil {
		d := &generation.Dimensions{}
		if width != nil {
			d.Width = *width
		}
		if height != nil {
			d.Height = *height
		}
		req.Dimensions = d
	}

	colors, cErr := formColors(c.PostForm("colors"))
	if cErr != nil {
		fields = append(fields, generation.FieldError{Field: "colors", Message: cErr.Error()})
	}
	req.Palette = colors

	if len(fields) > 0 {
		return req, &generation.ValidationError{Fields: fields}
	}
	return req, nil
}

// readImage 读取上传文件，超出上限时报错
func readImage(fh *multipart.FileHeader, maxBytes int64) (*generation.SourceImage, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	// 超限由领域校验报告，这里不截断
	return &generation.SourceImage{Data: data, MIMEType: mime}, nil
}

func formFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("must be a number")
	}
	return &v, nil
}

// formColors 接受 JSON 数组或逗号分隔列表
func formColors(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("colors must be a JSON array of strings")
		}
		return out, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
