// Package feasibility 校验设计尺寸是否落在设备能力范围内
package feasibility

import (
	"fmt"
	"strconv"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

const (
	// MsgInvalidProfile 设备档案不存在
	MsgInvalidProfile = "Invalid printer profile"
	// MsgNoLaser 设备不支持激光雕刻
	MsgNoLaser = "Printer does not support laser engraving"

	SuggestNearLimits   = "Design is close to printer limits. Consider adding supports or splitting into parts."
	SuggestTallNarrow   = "Tall narrow design detected. Consider adding a wider base for stability."
	SuggestAutoLeveling = "Auto-leveling enabled. First layer adhesion should be optimal."

	nearLimitRatio  = 0.9
	tallNarrowRatio = 3.0
)

// Result 校验结果
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Dimensions3D 三维尺寸（mm）
type Dimensions3D struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

// ValidateBuildVolume 检查尺寸是否超出打印体积，所有超限轴都会报告
func ValidateBuildVolume(width, depth, height float64, profile *entity.DeviceProfile) Result {
	if profile == nil {
		return invalid(MsgInvalidProfile)
	}

	errs := make([]string, 0, 3)
	bv := profile.BuildVolume
	if width > bv.Width {
		errs = append(errs, exceeds("Width", width, "printer build volume", bv.Width))
	}
	if depth > bv.Depth {
		errs = append(errs, exceeds("Depth", depth, "printer build volume", bv.Depth))
	}
	if height > bv.Height {
		errs = append(errs, exceeds("Height", height, "printer build volume", bv.Height))
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateLaserArea 检查尺寸是否超出激光区域；设备无激光能力时直接判定无效
func ValidateLaserArea(width, height float64, profile *entity.DeviceProfile) Result {
	if profile == nil {
		return invalid(MsgInvalidProfile)
	}
	if profile.LaserArea == nil {
		return invalid(MsgNoLaser)
	}

	errs := make([]string, 0, 2)
	la := profile.LaserArea
	if width > la.Width {
		errs = append(errs, exceeds("Width", width, "laser area", la.Width))
	}
	if height > la.Height {
		errs = append(errs, exceeds("Height", height, "laser area", la.Height))
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Suggest 给出非阻断的优化建议，不影响校验结果
func Suggest(dims Dimensions3D, profile *entity.DeviceProfile) []string {
	suggestions := make([]string, 0, 3)
	if profile == nil {
		return suggestions
	}

	bv := profile.BuildVolume
	if usage(dims.Width, bv.Width) > nearLimitRatio ||
		usage(dims.Depth, bv.Depth) > nearLimitRatio ||
		usage(dims.Height, bv.Height) > nearLimitRatio {
		suggestions = append(suggestions, SuggestNearLimits)
	}

	maxDim := max(dims.Width, dims.Height, dims.Depth)
	minDim := min(dims.Width, dims.Height, dims.Depth)
	if maxDim > minDim*tallNarrowRatio {
		suggestions = append(suggestions, SuggestTallNarrow)
	}

	if profile.Features.AutoLeveling {
		suggestions = append(suggestions, SuggestAutoLeveling)
	}
	return suggestions
}

func usage(v, bound float64) float64 {
	if bound <= 0 {
		return 0
	}
	return v / bound
}

func invalid(msg string) Result {
	return Result{Valid: false, Errors: []string{msg}}
}

func exceeds(axis string, v float64, area string, bound float64) string {
	return fmt.Sprintf("%s %smm exceeds %s (%smm)", axis, formatMM(v), area, formatMM(bound))
}

// formatMM 输出最短的十进制表示，250 -> "250"，12.5 -> "12.5"
func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
