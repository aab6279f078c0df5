package node

import "strings"

// BuildImagePrompt 拼接预览图提示词：描述在前，固定风格后缀在后
// 超出 maxRunes 时只截断描述部分，后缀始终完整保留
func BuildImagePrompt(description, suffix string, maxRunes int) string {
	description = strings.TrimSpace(description)
	budget := maxRunes - len([]rune(suffix))
	if maxRunes <= 0 || budget <= 0 {
		return description + suffix
	}
	if r := []rune(description); len(r) > budget {
		description = strings.TrimSpace(string(r[:budget]))
	}
	return description + suffix
}
