package node

import (
	"strconv"
	"strings"
)

// BuildConstraintsBlock 把尺寸与调色板约束拼接到系统提示词末尾，没有约束时返回空串
func BuildConstraintsBlock(width, height float64, hasDimensions bool, colors []string) string {
	var b strings.Builder
	if hasDimensions {
		b.WriteString("\n\nThe laser cutting area is ")
		b.WriteString(formatMM(width))
		b.WriteString("mm x ")
		b.WriteString(formatMM(height))
		b.WriteString("mm. Ensure the design fits within these bounds.")
	}
	if len(colors) > 0 {
		b.WriteString("\n\nUse these colors in the OpenSCAD code: ")
		b.WriteString(strings.Join(colors, ", "))
		b.WriteString(". Apply them using the color() module.")
	}
	return b.String()
}

// BuildColorList 拆件提示词中的可用颜色
func BuildColorList(colors []string) string {
	if len(colors) == 0 {
		return "any colors that suit the object"
	}
	return strings.Join(colors, ", ")
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
