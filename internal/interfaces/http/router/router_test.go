package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/admission"
	"github.com/MfFischer/makersai-studio/internal/application/feasibility"
	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/cache"
	"github.com/MfFischer/makersai-studio/internal/interfaces/http/handler"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// stubProvider 返回固定结构，prompt 命中 fail 时报错
type stubProvider struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (p *stubProvider) Infer(_ context.Context, spec *generation.StageSpec) (generation.StructuredResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fail[spec.Prompt] {
		return nil, errors.New("upstream unavailable")
	}

	switch spec.Kind {
	case generation.StageDecompose:
		return generation.StructuredResult(`{"parts":[` +
			`{"partName":"Base","prompt":"a flat base","color":"red"},` +
			`{"partName":"Tower","prompt":"a thin tower","color":"blue"},` +
			`{"partName":"Roof","prompt":"a pointed roof","color":"green"}]}`), nil
	case generation.StageSynthesize, generation.StageVision:
		return generation.StructuredResult(`{"scadCode":"cube(10);","imagePrompt":"render of ` + spec.Prompt + `","svgCode":""}`), nil
	default:
		return generation.StructuredResult(`{"imageBase64":"aW1n","mimeType":"image/png"}`), nil
	}
}

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

type testServer struct {
	engine   *gin.Engine
	provider *stubProvider
}

func newTestServer(t *testing.T, strictMax int) *testServer {
	t.Helper()

	registry, err := feasibility.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	counter := admission.NewMemoryCounter(time.Minute)
	t.Cleanup(func() { _ = counter.Close() })

	var gate *admission.Controller
	if strictMax > 0 {
		gate = admission.NewController(admission.Config{
			Name:        "strict",
			Enabled:     true,
			Window:      time.Hour,
			MaxRequests: strictMax,
		}, counter)
	}

	provider := &stubProvider{fail: map[string]bool{}}
	exec := generation.NewStageExecutor(provider, cache.NopStore{}, generation.ExecutorConfig{Timeout: time.Second})
	orch := generation.NewOrchestrator(exec, gate, registry, nil, nil, generation.Config{
		Limits:             generation.DefaultLimits(),
		ConstructionBudget: time.Minute,
		PartConcurrency:    1,
	})

	cfg := &config.Config{}
	cfg.App.Env = "test"
	r := New(cfg, nil, Handlers{
		Health: handler.NewHealthHandler("test", "v0.0.1",
			handler.Dependency{Name: "redis", Checker: checker{}, Required: true},
			handler.Dependency{Name: "minio", Checker: checker{err: errors.New("unreachable")}},
		),
		Generate: handler.NewGenerateHandler(orch),
		Printers: handler.NewPrinterHandler(registry),
	})
	return &testServer{engine: r.Engine(), provider: provider}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path string, body any, header ...string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return s.do(req)
}

type envelope struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	RetryAfter int             `json:"retry_after"`
	Error      *struct {
		ErrorCode string          `json:"error_code"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return env
}

func TestGenerateModel(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/model", map[string]any{
		"prompt":     "a small vase",
		"dimensions": map[string]float64{"width": 80, "height": 120},
		"colors":     []string{"white"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res struct {
		ScadCode string  `json:"scadCode"`
		ImageURL string  `json:"imageUrl"`
		SvgCode  *string `json:"svgCode"`
		RunID    string  `json:"runId"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if res.ScadCode != "cube(10);" {
		t.Errorf("scadCode = %q", res.ScadCode)
	}
	if !strings.HasPrefix(res.ImageURL, "data:image/png;base64,") {
		t.Errorf("imageUrl = %q", res.ImageURL)
	}
	if res.SvgCode != nil {
		t.Errorf("svgCode = %q, want null", *res.SvgCode)
	}
	if res.RunID == "" {
		t.Error("runId missing")
	}
}

func TestGenerateModelValidation(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/model", map[string]any{"prompt": "ab"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || !strings.Contains(string(env.Error.Details), `"prompt"`) {
		t.Errorf("details = %s", w.Body.String())
	}
	if s.provider.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", s.provider.calls)
	}
}

func TestGenerateModelMalformedBody(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/generate/model", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Invalid input" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestStrictAdmissionRejects(t *testing.T) {
	s := newTestServer(t, 1)

	body := map[string]any{"prompt": "a small vase"}
	if w := s.postJSON("/api/generate/model", body); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	w := s.postJSON("/api/generate/model", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if env := decodeEnvelope(t, w); env.RetryAfter <= 0 {
		t.Errorf("retry_after = %d", env.RetryAfter)
	}
}

func TestStrictAdmissionIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	s := newTestServer(t, 1)

	codes := make([]int, 0, 3)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		w := s.postJSON("/api/generate/model", map[string]any{"prompt": "a small vase"}, "X-Forwarded-For", xff)
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", codes, want)
		}
	}
}

func TestConstructionPlan(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/construction-plan", map[string]any{
		"prompt":          "a small castle",
		"availableColors": []string{"red", "blue", "green"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var plan []generation.ConstructionPart
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan) != 3 || plan[1].PartName != "Tower" || plan[1].AssignedColor != "blue" {
		t.Errorf("plan = %+v", plan)
	}
}

var castlePlan = []map[string]string{
	{"partName": "Base", "prompt": "a flat base", "color": "red"},
	{"partName": "Tower", "prompt": "a thin tower", "color": "blue"},
	{"partName": "Roof", "prompt": "a pointed roof", "color": "green"},
}

func TestConstructionPartsPartialFailure(t *testing.T) {
	s := newTestServer(t, 0)
	s.provider.fail["a thin tower"] = true

	w := s.postJSON("/api/generate/construction-parts", map[string]any{"plan": castlePlan})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var data struct {
		Results []generation.GenerationResult `json:"results"`
		Failure *struct {
			PartIndex int    `json:"partIndex"`
			PartName  string `json:"partName"`
			Message   string `json:"message"`
		} `json:"failure"`
	}
	env := decodeEnvelope(t, w)
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Results) != 1 || data.Results[0].PartName != "Base" {
		t.Errorf("results = %+v", data.Results)
	}
	if data.Failure == nil || data.Failure.PartIndex != 1 || data.Failure.PartName != "Tower" {
		t.Fatalf("failure = %+v", data.Failure)
	}
	if !strings.HasPrefix(env.Message, "Part 2 (Tower): ") {
		t.Errorf("message = %q", env.Message)
	}
	if strings.Contains(w.Body.String(), "upstream unavailable") {
		t.Error("upstream detail leaked to client")
	}
}

func TestConstructionPartsEmptyPlan(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/construction-parts", map[string]any{"plan": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestConstructionPartsEventStream(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/construction-parts", map[string]any{"plan": castlePlan}, "Accept", "text/event-stream")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content-type = %q", ct)
	}
	body := w.Body.String()
	if n := strings.Count(body, "event:result"); n != 3 {
		t.Errorf("result events = %d, want 3\n%s", n, body)
	}
	if !strings.Contains(body, "event:done") {
		t.Errorf("missing done event\n%s", body)
	}
	// 结果按方案顺序推送
	if strings.Index(body, `"color":"red"`) > strings.Index(body, `"color":"green"`) {
		t.Error("results out of plan order")
	}
}

func TestConstructionRun(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/construction", map[string]any{"prompt": "a small castle", "profileId": "anycubic-kobra-3-combo"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var data struct {
		Plan    []generation.ConstructionPart `json:"plan"`
		Results []generation.GenerationResult `json:"results"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Plan) != 3 || len(data.Results) != 3 {
		t.Errorf("plan=%d results=%d", len(data.Plan), len(data.Results))
	}
	if data.Results[2].Color != "green" {
		t.Errorf("roof color = %q", data.Results[2].Color)
	}
}

func TestConstructionStreamValidationStaysJSON(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.postJSON("/api/generate/construction", map[string]any{"prompt": ""}, "Accept", "text/event-stream")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "event:") {
		t.Error("validation failure should not open an event stream")
	}
}

func imageForm(t *testing.T, mime string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if mime != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="ref.png"`)
		h.Set("Content-Type", mime)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = part.Write([]byte("\x89PNG fake image"))
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/generate/from-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGenerateFromImage(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(imageForm(t, "image/png", map[string]string{"colors": `["red"]`, "width": "50", "height": "40"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "cube(10);") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateFromImageValidation(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name   string
		mime   string
		fields map[string]string
		field  string
	}{
		{"missing image", "", nil, `"image"`},
		{"non image upload", "application/pdf", nil, `"image"`},
		{"bad width", "image/png", map[string]string{"width": "wide"}, `"dimensions.width"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(imageForm(t, tt.mime, tt.fields))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.field) {
				t.Errorf("body = %s, want field %s", w.Body.String(), tt.field)
			}
		})
	}
	if s.provider.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", s.provider.calls)
	}
}

func TestPrinterRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/printers/profiles", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "anycubic-kobra-2") {
		t.Errorf("list: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/printers/profiles/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("get unknown: status = %d", w.Code)
	}

	w = s.postJSON("/api/printers/validate/dimensions", map[string]any{
		"width": 100, "depth": 100, "height": 100, "profileId": "anycubic-kobra-2",
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"valid":true`) {
		t.Errorf("dimensions: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.postJSON("/api/printers/validate/laser", map[string]any{
		"width": 100, "height": 100, "profileId": "anycubic-kobra-2",
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Printer does not support laser engraving") {
		t.Errorf("laser: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.postJSON("/api/printers/validate/laser", map[string]any{"width": -1, "profileId": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("laser invalid input: status = %d", w.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"environment":"test"`) {
		t.Errorf("health: status = %d, body = %s", w.Code, w.Body.String())
	}

	// 可选依赖失败只标记降级
	w = s.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("ready: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestReadyFailsOnRequiredDependency(t *testing.T) {
	h := handler.NewHealthHandler("test", "",
		handler.Dependency{Name: "postgres", Checker: checker{err: errors.New("down")}, Required: true},
	)
	engine := gin.New()
	engine.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}
