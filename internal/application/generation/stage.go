package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StageKind 阶段类型
type StageKind string

const (
	// StageDecompose 把整体描述拆成可独立打印的部件
	StageDecompose StageKind = "decompose"
	// StageSynthesize 生成 OpenSCAD 代码、图像描述与 SVG 轮廓
	StageSynthesize StageKind = "synthesize"
	// StageRender 根据图像描述渲染预览图
	StageRender StageKind = "render"
	// StageVision 以参考图为条件生成 OpenSCAD 代码
	StageVision StageKind = "vision"
)

// StructuredResult 上游返回的 JSON 对象（原始字节）
type StructuredResult []byte

// ResponseContract 阶段响应契约
type ResponseContract struct {
	Name     string
	Schema   map[string]any
	Required []string
	// Check 额外的结构校验，通过后结果才会被缓存
	Check func(raw []byte) error
}

// StageSpec 一次上游调用的完整描述，由请求确定性地派生
type StageSpec struct {
	Kind       StageKind
	Prompt     string
	Dimensions *Dimensions
	Palette    []string
	Image      *SourceImage
	Contract   ResponseContract
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var (
	decomposeContract = ResponseContract{
		Name: "construction_plan",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parts": map[string]any{
					"type":        "array",
					"description": "An array of all the individual parts needed to build the object.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"partName": stringProp("A short, descriptive name for this specific part (e.g., 'Chair Leg', 'Tabletop')."),
							"prompt":   stringProp("A detailed and specific prompt for another AI to generate just this one part as an OpenSCAD 3D model. Include precise dimensions if possible."),
							"color":    stringProp("The color to assign to this part from the available colors."),
						},
						"required":             []string{"partName", "prompt", "color"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"parts"},
			"additionalProperties": false,
		},
		Required: []string{"parts"},
		Check:    checkPlan,
	}

	synthesizeContract = ResponseContract{
		Name: "model_outputs",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scadCode":    stringProp("The complete and valid OpenSCAD code for the 3D model."),
				"imagePrompt": stringProp("A detailed text prompt for an image generation model to create a photorealistic 3D render of the object."),
				"svgCode":     stringProp("The complete and valid SVG code for a 2D laser cutting profile, projected onto the XY plane. Empty string when a 2D representation does not make sense."),
			},
			"required":             []string{"scadCode", "imagePrompt", "svgCode"},
			"additionalProperties": false,
		},
		Required: []string{"scadCode", "imagePrompt", "svgCode"},
		Check:    checkSynthesis,
	}

	visionContract = ResponseContract{
		Name: "image_model_outputs",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scadCode":    stringProp("The complete and valid OpenSCAD code reproducing the object shown in the image."),
				"imagePrompt": stringProp("A detailed text prompt for an image generation model to create a photorealistic 3D render of the object."),
				"svgCode":     stringProp("SVG code for a 2D laser cutting profile, or an empty string."),
				"analysis":    stringProp("A short note describing what was recognized in the image."),
			},
			"required":             []string{"scadCode", "imagePrompt", "svgCode", "analysis"},
			"additionalProperties": false,
		},
		Required: []string{"scadCode", "imagePrompt", "svgCode", "analysis"},
		Check:    checkSynthesis,
	}

	renderContract = ResponseContract{
		Name:     "preview_image",
		Required: []string{"imageBase64", "mimeType"},
		Check:    checkRender,
	}
)

// DecomposeSpec 拆件阶段
func DecomposeSpec(prompt string, palette []string) *StageSpec {
	return &StageSpec{Kind: StageDecompose, Prompt: prompt, Palette: palette, Contract: decomposeContract}
}

// SynthesizeSpec 代码与描述生成阶段
func SynthesizeSpec(prompt string, dims *Dimensions, palette []string) *StageSpec {
	return &StageSpec{Kind: StageSynthesize, Prompt: prompt, Dimensions: dims, Palette: palette, Contract: synthesizeContract}
}

// VisionSpec 以图生成阶段
func VisionSpec(prompt string, img *SourceImage, dims *Dimensions, palette []string) *StageSpec {
	return &StageSpec{Kind: StageVision, Prompt: prompt, Image: img, Dimensions: dims, Palette: palette, Contract: visionContract}
}

// RenderSpec 预览图渲染阶段，输入只有图像描述
func RenderSpec(imageDescription string) *StageSpec {
	return &StageSpec{Kind: StageRender, Prompt: imageDescription, Contract: renderContract}
}

// checkRequired 校验结果是 JSON 对象且包含全部必填字段（不可为 null）
func checkRequired(raw []byte, c ResponseContract) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: not a JSON object: %v", ErrContractViolation, err)
	}
	var missing []string
	for _, field := range c.Required {
		v, ok := obj[field]
		if !ok || string(v) == "null" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %s", ErrContractViolation, strings.Join(missing, ", "))
	}
	if c.Check != nil {
		if err := c.Check(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrContractViolation, err)
		}
	}
	return nil
}

// ConstructionPart 拼装方案中的一个部件
type ConstructionPart struct {
	PartName      string `json:"partName"`
	SubPrompt     string `json:"prompt"`
	AssignedColor string `json:"color"`
}

type planPayload struct {
	Parts []ConstructionPart `json:"parts"`
}

type synthesisPayload struct {
	ScadCode    string `json:"scadCode"`
	ImagePrompt string `json:"imagePrompt"`
	SvgCode     string `json:"svgCode"`
	Analysis    string `json:"analysis,omitempty"`
}

type renderPayload struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

func checkPlan(raw []byte) error {
	var p planPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if len(p.Parts) == 0 {
		return fmt.Errorf("plan has no parts")
	}
	for i, part := range p.Parts {
		if strings.TrimSpace(part.PartName) == "" || strings.TrimSpace(part.SubPrompt) == "" || strings.TrimSpace(part.AssignedColor) == "" {
			return fmt.Errorf("part %d is missing partName, prompt or color", i+1)
		}
	}
	return nil
}

func checkSynthesis(raw []byte) error {
	var p synthesisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.ScadCode) == "" {
		return fmt.Errorf("scadCode is empty")
	}
	if strings.TrimSpace(p.ImagePrompt) == "" {
		return fmt.Errorf("imagePrompt is empty")
	}
	return nil
}

func checkRender(raw []byte) error {
	var p renderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if p.ImageBase64 == "" {
		return fmt.Errorf("no image was generated")
	}
	return nil
}
