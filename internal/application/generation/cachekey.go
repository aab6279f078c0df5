package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyPayload 参与缓存键计算的语义字段，字段顺序固定
type keyPayload struct {
	Prompt      string      `json:"prompt"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
	Palette     []string    `json:"palette,omitempty"`
	ImageDigest string      `json:"imageDigest,omitempty"`
}

// CacheKey 计算阶段缓存键：<stage>:<sha256(canonical json)>
// 仅由阶段类型、提示词、尺寸、调色板和图片摘要决定
func CacheKey(spec *StageSpec) string {
	p := keyPayload{
		Prompt:     spec.Prompt,
		Dimensions: spec.Dimensions,
		Palette:    spec.Palette,
	}
	if spec.Image != nil {
		p.ImageDigest = spec.Image.Digest()
	}

	// 仅含字符串、浮点与切片，序列化不会失败
	b, _ := json.Marshal(p)
	sum := sha256.Sum256(b)
	return string(spec.Kind) + ":" + hex.EncodeToString(sum[:])
}
