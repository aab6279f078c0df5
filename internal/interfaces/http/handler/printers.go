package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/feasibility"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/dto"
	"github.com/MfFischer/makersai-studio/pkg/errors"
)

// PrinterHandler 设备档案与尺寸校验
type PrinterHandler struct {
	registry *feasibility.Registry
}

// NewPrinterHandler 创建设备档案处理器
func NewPrinterHandler(registry *feasibility.Registry) *PrinterHandler {
	return &PrinterHandler{registry: registry}
}

// ListProfiles 列出所有设备档案
// @Summary 列出设备档案
// @Tags Printers
// @Produce json
// @Router /api/printers/profiles [get]
func (h *PrinterHandler) ListProfiles(c *gin.Context) {
	dto.Success(c, h.registry.List())
}

// GetProfile 获取单个设备档案
// @Summary 获取设备档案
// @Tags Printers
// @Produce json
// @Param profileId path string true "档案 ID"
// @Router /api/printers/profiles/{profileId} [get]
func (h *PrinterHandler) GetProfile(c *gin.Context) {
	profile, ok := h.registry.Lookup(c.Param("profileId"))
	if !ok {
		dto.NotFound(c, errors.ErrProfileNotFound.Message)
		return
	}
	dto.Success(c, profile)
}

// ValidateDimensions 校验打印体积，合法时附带优化建议
// @Summary 校验打印尺寸
// @Tags Printers
// @Accept json
// @Produce json
// @Router /api/printers/validate/dimensions [post]
func (h *PrinterHandler) ValidateDimensions(c *gin.Context) {
	var req dto.ValidateDimensionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	profile, _ := h.registry.Lookup(req.ProfileID)
	res := feasibility.ValidateBuildVolume(req.Width, req.Depth, req.Height, profile)
	suggestions := []string{}
	if res.Valid {
		suggestions = feasibility.Suggest(feasibility.Dimensions3D{
			Width:  req.Width,
			Depth:  req.Depth,
			Height: req.Height,
		}, profile)
	}
	dto.Success(c, dto.DimensionsValidationResponse{
		Valid:       res.Valid,
		Errors:      res.Errors,
		Suggestions: suggestions,
	})
}

// ValidateLaser 校验激光雕刻区域
// @Summary 校验激光尺寸
// @Tags Printers
// @Accept json
// @Produce json
// @Router /api/printers/validate/laser [post]
func (h *PrinterHandler) ValidateLaser(c *gin.Context) {
	var req dto.ValidateLaserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	profile, _ := h.registry.Lookup(req.ProfileID)
	dto.Success(c, feasibility.ValidateLaserArea(req.Width, req.Height, profile))
}
