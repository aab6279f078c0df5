package node

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型输出中截取第一个完整的 JSON 对象。
// 模型可能在 JSON 外包裹 markdown 代码块或夹杂说明文字；无法截取时原样返回（去除首尾空白）。
func ExtractJSONObject(s string) string {
	raw := stripCodeFence(strings.TrimSpace(s))
	if raw == "" || json.Valid([]byte(raw)) {
		return raw
	}

	start := strings.Index(raw, "{")
	if start < 0 {
		return raw
	}
	// 逐个值解码，跳过对象之前的文字与之后的尾巴
	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		end := strings.LastIndex(raw, "}")
		if end > start {
			return raw[start : end+1]
		}
		return raw
	}
	return string(obj)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// 去掉语言标记所在的首行
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
