package dto

import (
	"github.com/MfFischer/makersai-studio/internal/application/generation"
)

// DimensionsRequest 尺寸（mm）
type DimensionsRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToDomain 转换为领域尺寸
func (d *DimensionsRequest) ToDomain() *generation.Dimensions {
	if d == nil {
		return nil
	}
	return &generation.Dimensions{Width: d.Width, Height: d.Height}
}

// GenerateModelRequest 直接生成 / 拼装生成请求
type GenerateModelRequest struct {
	Prompt     string             `json:"prompt"`
	Dimensions *DimensionsRequest `json:"dimensions,omitempty"`
	Colors     []string           `json:"colors,omitempty"`
	ProfileID  string             `json:"profileId,omitempty"`
}

// ToDomain 转换为设计请求
func (r *GenerateModelRequest) ToDomain(mode generation.Mode) generation.DesignRequest {
	return generation.DesignRequest{
		Prompt:     r.Prompt,
		Dimensions: r.Dimensions.ToDomain(),
		Palette:    r.Colors,
		Mode:       mode,
		ProfileID:  r.ProfileID,
	}
}

// ConstructionPlanRequest 拼装方案请求
type ConstructionPlanRequest struct {
	Prompt          string   `json:"prompt"`
	AvailableColors []string `json:"availableColors,omitempty"`
}

// ToDomain 转换为设计请求
func (r *ConstructionPlanRequest) ToDomain() generation.DesignRequest {
	return generation.DesignRequest{
		Prompt:  r.Prompt,
		Palette: r.AvailableColors,
		Mode:    generation.ModeConstruction,
	}
}

// ConstructionPartsRequest 按既定方案生成部件
type ConstructionPartsRequest struct {
	Plan       []generation.ConstructionPart `json:"plan"`
	Dimensions *DimensionsRequest            `json:"dimensions,omitempty"`
}

// GenerationResponse 单个结果响应
type GenerationResponse struct {
	generation.GenerationResult
	RunID       string `json:"runId,omitempty"`
	Feasibility any    `json:"feasibility,omitempty"`
}

// PartFailure 拼装中失败的部件
type PartFailure struct {
	PartIndex int    `json:"partIndex"`
	PartName  string `json:"partName"`
	Message   string `json:"message"`
}

// ConstructionResponse 拼装结果；失败时包含已完成部件与失败信息
type ConstructionResponse struct {
	RunID       string                        `json:"runId,omitempty"`
	Plan        []generation.ConstructionPart `json:"plan,omitempty"`
	Results     []generation.GenerationResult `json:"results"`
	Feasibility any                           `json:"feasibility,omitempty"`
	Failure     *PartFailure                  `json:"failure,omitempty"`
}
