package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	wfmodel "github.com/MfFischer/makersai-studio/internal/workflow/model"
	workflowport "github.com/MfFischer/makersai-studio/internal/workflow/port"
)

type recordingInvoker struct {
	last *wfmodel.StructuredInput
	out  string
	err  error
}

func (r *recordingInvoker) Invoke(_ context.Context, in *wfmodel.StructuredInput) (string, error) {
	r.last = in
	return r.out, r.err
}

type fakeImages struct {
	prompt string
	err    error
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (*workflowport.GeneratedImage, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &workflowport.GeneratedImage{Base64: "aW1n", MIMEType: "image/png"}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Stages.Synthesize = config.StageModelConfig{Provider: "openai", Model: "gpt-4o", Temperature: 0.2, MaxTokens: 4096}
	cfg.LLM.Stages.Render = config.ImageModelConfig{Provider: "openai", Model: "dall-e-3"}
	return cfg
}

func TestStageProviderSynthesize(t *testing.T) {
	chat := &recordingInvoker{out: `{"scadCode":"cube(1);"}`}
	p := NewStageProvider(chat, &fakeImages{}, testConfig())

	spec := generation.SynthesizeSpec("a gear", &generation.Dimensions{Width: 50, Height: 40}, []string{"red"})
	out, err := p.Infer(context.Background(), spec)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if string(out) != chat.out {
		t.Errorf("out = %s", out)
	}

	in := chat.last
	if in.Template != "synthesize_v1" || in.Model != "gpt-4o" || in.SchemaName != "model_outputs" {
		t.Errorf("input = %+v", in)
	}
	if in.Temperature == nil || *in.Temperature != float32(0.2) {
		t.Errorf("temperature = %v", in.Temperature)
	}
	block, _ := in.Vars["constraints_block"].(string)
	if !strings.Contains(block, "50mm x 40mm") || !strings.Contains(block, "red") {
		t.Errorf("constraints block = %q", block)
	}
}

func TestStageProviderVisionDefaultsPrompt(t *testing.T) {
	chat := &recordingInvoker{out: `{}`}
	p := NewStageProvider(chat, nil, testConfig())

	img := &generation.SourceImage{Data: []byte("png"), MIMEType: "image/png"}
	if _, err := p.Infer(context.Background(), generation.VisionSpec("", img, nil, nil)); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if chat.last.Vars["prompt"] != defaultVisionPrompt {
		t.Errorf("prompt = %v", chat.last.Vars["prompt"])
	}
	if chat.last.Image == nil || string(chat.last.Image.Data) != "png" {
		t.Errorf("image = %+v", chat.last.Image)
	}
}

func TestStageProviderRender(t *testing.T) {
	images := &fakeImages{}
	p := NewStageProvider(&recordingInvoker{}, images, testConfig())

	out, err := p.Infer(context.Background(), generation.RenderSpec("a shiny gear"))
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["imageBase64"] != "aW1n" || payload["mimeType"] != "image/png" {
		t.Errorf("payload = %v", payload)
	}
	if images.prompt != "a shiny gear" {
		t.Errorf("image prompt = %q", images.prompt)
	}
}

func TestStageProviderRenderError(t *testing.T) {
	images := &fakeImages{err: ErrNoImage}
	p := NewStageProvider(&recordingInvoker{}, images, testConfig())

	if _, err := p.Infer(context.Background(), generation.RenderSpec("x")); !errors.Is(err, ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
}
