package generation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContractViolation 上游返回的结构不满足阶段契约
	ErrContractViolation = errors.New("response violates stage contract")
	// ErrBudgetExceeded 拼装流水线超出时间预算
	ErrBudgetExceeded = errors.New("construction budget exceeded")
)

// 对调用方公开的阶段失败信息，不暴露上游细节
const (
	msgDecomposeFailed  = "Failed to generate the construction plan. The model may have returned an invalid response."
	msgSynthesizeFailed = "Failed to generate OpenSCAD code and outputs."
	msgRenderFailed     = "Failed to generate the model's image visualization."
	msgVisionFailed     = "Failed to generate a model from the provided image."
)

// StageError 某个阶段失败（传输错误或契约不符），不会自动重试
type StageError struct {
	Stage StageKind
	// PartIndex 拼装模式下失败部件的下标（从 0 开始），其他模式为 -1
	PartIndex int
	PartName  string
	Err       error
}

func newStageError(kind StageKind, err error) *StageError {
	return &StageError{Stage: kind, PartIndex: -1, Err: err}
}

func (e *StageError) Error() string {
	if e.PartIndex >= 0 {
		return fmt.Sprintf("part %d (%s): %s stage failed: %v", e.PartIndex+1, e.PartName, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PublicMessage 面向调用方的失败信息
func (e *StageError) PublicMessage() string {
	var msg string
	switch e.Stage {
	case StageDecompose:
		msg = msgDecomposeFailed
	case StageSynthesize:
		msg = msgSynthesizeFailed
	case StageRender:
		msg = msgRenderFailed
	case StageVision:
		msg = msgVisionFailed
	default:
		msg = "Generation failed."
	}
	if e.PartIndex >= 0 {
		return fmt.Sprintf("Part %d (%s): %s", e.PartIndex+1, e.PartName, msg)
	}
	return msg
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 请求形状不合法，在任何上游调用之前返回
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
