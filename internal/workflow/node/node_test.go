package node

import (
	"errors"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading text", `Here you go: {"a":"x}"} thanks`, `{"a":"x}"}`},
		{"nested", `note {"a":{"b":[1,2]}} end`, `{"a":{"b":[1,2]}}`},
		{"no json", "sorry", "sorry"},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONObject(tt.in); got != tt.want {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildConstraintsBlock(t *testing.T) {
	if got := BuildConstraintsBlock(0, 0, false, nil); got != "" {
		t.Errorf("no constraints = %q, want empty", got)
	}
	got := BuildConstraintsBlock(120.5, 80, true, []string{"red", "white"})
	want := "\n\nThe laser cutting area is 120.5mm x 80mm. Ensure the design fits within these bounds." +
		"\n\nUse these colors in the OpenSCAD code: red, white. Apply them using the color() module."
	if got != want {
		t.Errorf("constraints =\n%q\nwant\n%q", got, want)
	}
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	if IsResponseFormatUnsupportedError(nil) {
		t.Error("nil error reported as unsupported")
	}
	if !IsResponseFormatUnsupportedError(errors.New("400: Invalid parameter: response_format json_schema")) {
		t.Error("response_format error not detected")
	}
	if IsResponseFormatUnsupportedError(errors.New("connection reset by peer")) {
		t.Error("transport error reported as unsupported")
	}
}

func TestBuildImagePrompt(t *testing.T) {
	suffix := " Studio lighting."
	if got := BuildImagePrompt("  a red cube ", suffix, 100); got != "a red cube Studio lighting." {
		t.Errorf("BuildImagePrompt = %q", got)
	}

	got := BuildImagePrompt("héllo wörld", suffix, len([]rune(suffix))+5)
	if got != "héllo"+suffix {
		t.Errorf("BuildImagePrompt clipped = %q", got)
	}

	if got := BuildImagePrompt("abc", "", 0); got != "abc" {
		t.Errorf("BuildImagePrompt without limit = %q", got)
	}
}
