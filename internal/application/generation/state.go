package generation

import (
	"context"
	"sync"

	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// RunState 流水线运行状态
type RunState string

const (
	StateAdmitted     RunState = "admitted"
	StateRejected     RunState = "rejected"
	StateDecomposing  RunState = "decomposing"
	StateSynthesizing RunState = "synthesizing"
	StateRendering    RunState = "rendering"
	StateCompleted    RunState = "completed"
	StateFailed       RunState = "failed"
)

// Terminal 终止状态不可再迁移
func (s RunState) Terminal() bool {
	return s == StateRejected || s == StateFailed
}

// runTransitions 整体运行的合法迁移
var runTransitions = map[RunState][]RunState{
	"":               {StateAdmitted, StateRejected},
	StateAdmitted:    {StateDecomposing, StateCompleted, StateFailed},
	StateDecomposing: {StateCompleted, StateFailed},
}

// partTransitions 单个部件的合法迁移
var partTransitions = map[RunState][]RunState{
	"":                {StateSynthesizing},
	StateSynthesizing: {StateRendering, StateFailed},
	StateRendering:    {StateCompleted, StateFailed},
}

func canTransition(table map[RunState][]RunState, from, to RunState) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventKind 进度事件类型
type EventKind string

const (
	// EventState 状态迁移
	EventState EventKind = "state"
	// EventPlan 拼装方案已生成
	EventPlan EventKind = "plan"
	// EventResult 部件或整体结果已完成
	EventResult EventKind = "result"
)

// Event 流水线进度事件
type Event struct {
	Kind  EventKind
	RunID string
	State RunState
	// PartIndex 部件下标，-1 表示整体运行
	PartIndex int
	PartName  string
	Total     int
	Plan      []ConstructionPart
	Result    *GenerationResult
	Err       error
}

// Observer 接收进度事件，调用是串行的
type Observer func(Event)

// tracker 记录整体与各部件状态，拒绝非法迁移并串行通知观察者
type tracker struct {
	mu    sync.Mutex
	ctx   context.Context
	runID string
	state RunState
	parts map[int]RunState
	// failedPart 最早失败的部件下标，其后部件的事件不再通知
	failedPart int
	observer   Observer
}

func newTracker(ctx context.Context, runID string, observer Observer) *tracker {
	return &tracker{ctx: ctx, runID: runID, parts: make(map[int]RunState), failedPart: -1, observer: observer}
}

// run 迁移整体状态
func (t *tracker) run(to RunState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !canTransition(runTransitions, t.state, to) {
		logger.Warn(t.ctx, "ignored invalid run transition", "from", t.state, "to", to)
		return false
	}
	t.state = to
	t.emit(Event{Kind: EventState, State: to, PartIndex: -1, Err: err})
	return true
}

// part 迁移部件状态
func (t *tracker) part(i int, name string, to RunState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() || (t.failedPart >= 0 && i > t.failedPart) {
		return false
	}
	from := t.parts[i]
	if !canTransition(partTransitions, from, to) {
		logger.Warn(t.ctx, "ignored invalid part transition", "part", i, "from", from, "to", to)
		return false
	}
	t.parts[i] = to
	if to == StateFailed && (t.failedPart < 0 || i < t.failedPart) {
		t.failedPart = i
	}
	t.emit(Event{Kind: EventState, State: to, PartIndex: i, PartName: name, Err: err})
	return true
}

// plan 通知拼装方案
func (t *tracker) plan(parts []ConstructionPart) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Event{Kind: EventPlan, State: t.state, PartIndex: -1, Total: len(parts), Plan: parts})
}

// result 通知已完成的结果
func (t *tracker) result(i int, res *GenerationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Event{Kind: EventResult, State: StateCompleted, PartIndex: i, PartName: res.PartName, Result: res})
}

func (t *tracker) emit(ev Event) {
	if t.observer == nil {
		return
	}
	ev.RunID = t.runID
	t.observer(ev)
}
