// Package generation 编排阶段化的模型生成流水线：直接生成、拆件拼装与以图生成
package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Mode 生成模式
type Mode string

const (
	ModeDirect       Mode = "direct"
	ModeConstruction Mode = "construction"
	ModeImage        Mode = "image"
)

// Dimensions 打印/激光尺寸（mm）
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SourceImage 以图生成的输入图片
type SourceImage struct {
	Data     []byte
	MIMEType string
}

// Digest 图片内容的 SHA-256 摘要
func (s *SourceImage) Digest() string {
	sum := sha256.Sum256(s.Data)
	return hex.EncodeToString(sum[:])
}

// DesignRequest 设计请求，被编排器接受后不再修改
type DesignRequest struct {
	Prompt      string
	Dimensions  *Dimensions
	Palette     []string
	SourceImage *SourceImage
	Mode        Mode
	// ProfileID 可选的设备档案，仅用于可行性报告
	ProfileID string
}

// Limits 请求校验上限
type Limits struct {
	MinPromptLength int
	MaxPromptLength int
	MaxDimension    float64
	MaxPaletteSize  int
	MaxImageBytes   int64
}

// DefaultLimits 默认上限
func DefaultLimits() Limits {
	return Limits{
		MinPromptLength: 3,
		MaxPromptLength: 1000,
		MaxDimension:    1000,
		MaxPaletteSize:  10,
		MaxImageBytes:   10 << 20,
	}
}

// normalized 返回去除首尾空白并深拷贝的副本
func (r DesignRequest) normalized() DesignRequest {
	out := r
	out.Prompt = strings.TrimSpace(r.Prompt)
	out.ProfileID = strings.TrimSpace(r.ProfileID)
	if r.Dimensions != nil {
		d := *r.Dimensions
		out.Dimensions = &d
	}
	if r.Palette != nil {
		out.Palette = make([]string, 0, len(r.Palette))
		for _, c := range r.Palette {
			out.Palette = append(out.Palette, strings.TrimSpace(c))
		}
	}
	if r.SourceImage != nil {
		out.SourceImage = &SourceImage{Data: slices.Clone(r.SourceImage.Data), MIMEType: r.SourceImage.MIMEType}
	}
	return out
}

// Validate 校验请求形状
func (r DesignRequest) Validate(l Limits) error {
	var fields []FieldError
	add := func(field, format string, args ...any) {
		fields = append(fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch r.Mode {
	case ModeDirect, ModeConstruction, ModeImage:
	default:
		add("mode", "unsupported mode %q", r.Mode)
	}

	n := utf8.RuneCountInString(r.Prompt)
	if r.Mode == ModeImage {
		if n > l.MaxPromptLength {
			add("prompt", "Prompt must be less than %d characters", l.MaxPromptLength)
		}
	} else {
		switch {
		case n == 0:
			add("prompt", "Prompt is required")
		case n < l.MinPromptLength:
			add("prompt", "Prompt must be at least %d characters", l.MinPromptLength)
		case n > l.MaxPromptLength:
			add("prompt", "Prompt must be less than %d characters", l.MaxPromptLength)
		}
	}

	if d := r.Dimensions; d != nil {
		checkAxis := func(field string, v float64) {
			switch {
			case v <= 0:
				add(field, "must be a positive number")
			case v > l.MaxDimension:
				add(field, "must not exceed %smm", trimFloat(l.MaxDimension))
			}
		}
		checkAxis("dimensions.width", d.Width)
		checkAxis("dimensions.height", d.Height)
	}

	if len(r.Palette) > l.MaxPaletteSize {
		add("colors", "at most %d colors are allowed", l.MaxPaletteSize)
	}
	for i, c := range r.Palette {
		if c == "" {
			add(fmt.Sprintf("colors[%d]", i), "color must not be empty")
		}
	}

	if r.Mode == ModeImage {
		img := r.SourceImage
		switch {
		case img == nil || len(img.Data) == 0:
			add("image", "Image file is required")
		case !strings.HasPrefix(img.MIMEType, "image/"):
			add("image", "Only image files are allowed")
		case int64(len(img.Data)) > l.MaxImageBytes:
			add("image", "Image must be at most %d bytes", l.MaxImageBytes)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
