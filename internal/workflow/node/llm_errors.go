package node

import "strings"

// responseFormatMarkers 供应商拒绝 json_schema 结构化输出时的错误特征
var responseFormatMarkers = []string{
	"response_format",
	"json_schema",
	"response_schema",
	"failed to parse",
}

// IsResponseFormatUnsupportedError 判断错误是否来自不支持结构化输出的模型，
// 命中时调用方退回纯提示词约束再试一次
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range responseFormatMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	// 部分 OpenAI 兼容网关只报 unknown/invalid parameter
	return strings.Contains(msg, "response") &&
		(strings.Contains(msg, "unknown parameter") || strings.Contains(msg, "invalid"))
}
