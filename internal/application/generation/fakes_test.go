package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider 按阶段返回确定性结果并记录调用
type fakeProvider struct {
	mu    sync.Mutex
	calls []*StageSpec
	// failOn 对 prompt 等于该值的阶段返回错误
	failOn map[string]bool
	// override 覆盖某个阶段的原始返回
	override map[StageKind]string
	// block 对 prompt 等于该值的阶段在通道关闭前阻塞
	block map[string]chan struct{}
	parts []ConstructionPart
	svg   string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failOn:   map[string]bool{},
		override: map[StageKind]string{},
		block:    map[string]chan struct{}{},
		parts: []ConstructionPart{
			{PartName: "Base", SubPrompt: "a flat base", AssignedColor: "red"},
			{PartName: "Tower", SubPrompt: "a thin tower", AssignedColor: "blue"},
			{PartName: "Roof", SubPrompt: "a pointed roof", AssignedColor: "green"},
		},
	}
}

func (p *fakeProvider) Infer(ctx context.Context, spec *StageSpec) (StructuredResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, spec)
	p.mu.Unlock()

	if ch, ok := p.block[spec.Prompt]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.failOn[spec.Prompt] {
		return nil, errUpstream
	}
	if raw, ok := p.override[spec.Kind]; ok {
		return StructuredResult(raw), nil
	}

	var v any
	switch spec.Kind {
	case StageDecompose:
		v = planPayload{Parts: p.parts}
	case StageSynthesize:
		v = synthesisPayload{ScadCode: "cube(10); // " + spec.Prompt, ImagePrompt: "render of " + spec.Prompt, SvgCode: p.svg}
	case StageVision:
		v = synthesisPayload{ScadCode: "sphere(5);", ImagePrompt: "render of photo", SvgCode: p.svg, Analysis: "a ball"}
	case StageRender:
		v = renderPayload{ImageBase64: "aW1n", MimeType: "image/png"}
	}
	raw, err := json.Marshal(v)
	return raw, err
}

func (p *fakeProvider) kinds() []StageKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StageKind, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c.Kind)
	}
	return out
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) calledWith(prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if strings.Contains(c.Prompt, prompt) {
			return true
		}
	}
	return false
}

// mapCache 简单的进程内缓存
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	c.sets++
}

type recordingSink struct {
	mu      sync.Mutex
	designs []*DesignRecord
	usage   []*UsageEvent
}

func (s *recordingSink) RecordDesign(_ context.Context, rec *DesignRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designs = append(s.designs, rec)
}

func (s *recordingSink) RecordUsage(_ context.Context, ev *UsageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, ev)
}

func (s *recordingSink) designCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.designs)
}

func (s *recordingSink) usageActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.usage))
	for _, ev := range s.usage {
		out = append(out, ev.Action)
	}
	return out
}

type failingPreviews struct{}

func (failingPreviews) Put(context.Context, RenderedImage) (string, error) {
	return "", errors.New("bucket unavailable")
}
