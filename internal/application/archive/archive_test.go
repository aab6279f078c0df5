package archive

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/domain/entity"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/messaging"
)

type memDesigns struct {
	mu    sync.Mutex
	items []*entity.Design
	err   error
}

func (m *memDesigns) Create(_ context.Context, d *entity.Design) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, d)
	return nil
}

func (m *memDesigns) GetByID(_ context.Context, id string) (*entity.Design, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

// inlineTx 直接在当前 ctx 上执行
type inlineTx struct{ calls int }

func (t *inlineTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type memUsage struct {
	mu    sync.Mutex
	items []*entity.UsageEvent
}

func (m *memUsage) Create(_ context.Context, e *entity.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, e)
	return nil
}

type memPublisher struct {
	mu      sync.Mutex
	designs []*entity.Design
	usage   []*entity.UsageEvent
}

func (p *memPublisher) PublishDesign(_ context.Context, d *entity.Design) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.designs = append(p.designs, d)
	return "1-0", nil
}

func (p *memPublisher) PublishUsage(_ context.Context, e *entity.UsageEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = append(p.usage, e)
	return "2-0", nil
}

func sampleRecord() *generation.DesignRecord {
	svg := "<svg/>"
	return &generation.DesignRecord{
		ID:         "0b7c2d1e-0000-4000-8000-000000000001",
		RunID:      "run-1",
		ClientID:   "203.0.113.7",
		Mode:       generation.ModeConstruction,
		Prompt:     "a thin tower",
		Dimensions: &generation.Dimensions{Width: 120, Height: 80},
		Palette:    []string{"blue"},
		Result: generation.GenerationResult{
			ModelCode:       "cube(10);",
			PreviewImageRef: "data:image/png;base64,aW1n",
			VectorProfile:   &svg,
			PartName:        "Tower",
			Color:           "blue",
		},
	}
}

func TestDesignEntity(t *testing.T) {
	rec := sampleRecord()
	d := DesignEntity(rec)

	if d.ID != rec.ID || d.RunID != "run-1" || d.Mode != "construction" {
		t.Errorf("identity fields = %+v", d)
	}
	if d.Width == nil || *d.Width != 120 || d.Height == nil || *d.Height != 80 {
		t.Errorf("dimensions = %v/%v", d.Width, d.Height)
	}
	if d.SvgCode == nil || *d.SvgCode != "<svg/>" {
		t.Errorf("svg = %v", d.SvgCode)
	}
	if d.PartName != "Tower" || d.Color != "blue" || d.ScadCode != "cube(10);" {
		t.Errorf("result fields = %+v", d)
	}
	if d.CreatedAt.IsZero() {
		t.Error("created_at not defaulted")
	}

	// 实体不与原记录共享切片
	rec.Palette[0] = "red"
	if d.Palette[0] != "blue" {
		t.Error("palette aliased with record")
	}
}

func TestDesignEntityDefaultsID(t *testing.T) {
	rec := sampleRecord()
	rec.ID = ""
	rec.Dimensions = nil
	rec.Result.VectorProfile = nil

	d := DesignEntity(rec)
	if d.ID == "" {
		t.Error("expected generated id")
	}
	if d.Width != nil || d.SvgCode != nil {
		t.Errorf("unexpected optional fields: %+v", d)
	}
}

func TestRepositorySinkWritesInBackground(t *testing.T) {
	designs, usage := &memDesigns{}, &memUsage{}
	sink := NewRepositorySink(designs, usage)

	ctx, cancel := context.WithCancel(context.Background())
	sink.RecordDesign(ctx, sampleRecord())
	sink.RecordUsage(ctx, &generation.UsageEvent{Action: "generate_direct", ClientID: "c"})
	// 请求结束不影响写入
	cancel()
	sink.Wait()

	if len(designs.items) != 1 || len(usage.items) != 1 {
		t.Fatalf("writes = %d designs, %d usage", len(designs.items), len(usage.items))
	}
	if usage.items[0].ID == "" || usage.items[0].Action != "generate_direct" {
		t.Errorf("usage = %+v", usage.items[0])
	}
}

func TestRepositorySinkSwallowsErrors(t *testing.T) {
	designs := &memDesigns{err: errors.New("db down")}
	sink := NewRepositorySink(designs, &memUsage{})

	sink.RecordDesign(context.Background(), sampleRecord())
	sink.Wait()

	if len(designs.items) != 0 {
		t.Errorf("unexpected writes: %d", len(designs.items))
	}
}

func TestStreamSinkPublishes(t *testing.T) {
	pub := &memPublisher{}
	sink := NewStreamSink(pub)

	sink.RecordDesign(context.Background(), sampleRecord())
	sink.RecordUsage(context.Background(), &generation.UsageEvent{Action: "llm_call"})
	sink.Wait()

	if len(pub.designs) != 1 || pub.designs[0].PartName != "Tower" {
		t.Errorf("designs = %+v", pub.designs)
	}
	if len(pub.usage) != 1 || pub.usage[0].Action != "llm_call" {
		t.Errorf("usage = %+v", pub.usage)
	}
}

func TestHandlerWritesPayloads(t *testing.T) {
	designs, usage := &memDesigns{}, &memUsage{}
	tx := &inlineTx{}
	h := NewHandler(tx, designs, usage)
	ctx := context.Background()

	d := DesignEntity(sampleRecord())
	msg, err := messaging.NewMessage(d.ID, messaging.TypeDesignGenerated, d.ClientID, d.RunID, d)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := h.HandleDesign(ctx, msg); err != nil {
		t.Fatalf("HandleDesign: %v", err)
	}
	if len(designs.items) != 1 || designs.items[0].Prompt != "a thin tower" {
		t.Errorf("designs = %+v", designs.items)
	}
	if tx.calls != 1 {
		t.Errorf("transactions = %d, want 1", tx.calls)
	}

	// 重投同一条消息不重复写入
	if err := h.HandleDesign(ctx, msg); err != nil {
		t.Fatalf("HandleDesign redelivery: %v", err)
	}
	if len(designs.items) != 1 {
		t.Errorf("redelivery wrote %d designs, want 1", len(designs.items))
	}

	u := UsageEntity(&generation.UsageEvent{Action: "generate_image", ClientID: "c"})
	msg, err = messaging.NewMessage(u.ID, messaging.TypeUsageEvent, u.ClientID, "", u)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := h.HandleUsage(ctx, msg); err != nil {
		t.Fatalf("HandleUsage: %v", err)
	}
	if len(usage.items) != 1 || usage.items[0].Action != "generate_image" {
		t.Errorf("usage = %+v", usage.items)
	}
}

func TestHandlerRejectsIncompletePayload(t *testing.T) {
	h := NewHandler(&inlineTx{}, &memDesigns{}, &memUsage{})

	msg, _ := messaging.NewMessage("x", messaging.TypeDesignGenerated, "", "", map[string]string{"id": "x"})
	if err := h.HandleDesign(context.Background(), msg); err == nil {
		t.Error("expected error for design without scad_code")
	}

	msg, _ = messaging.NewMessage("y", messaging.TypeUsageEvent, "", "", map[string]string{"id": "y"})
	if err := h.HandleUsage(context.Background(), msg); err == nil {
		t.Error("expected error for usage without action")
	}

	bad := &messaging.Message{Type: messaging.TypeUsageEvent, Payload: []byte("[")}
	if err := h.HandleUsage(context.Background(), bad); err == nil {
		t.Error("expected decode error")
	}
}
