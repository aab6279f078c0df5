package generation

import "testing"

func TestCacheKey(t *testing.T) {
	dims := &Dimensions{Width: 50, Height: 30}
	base := CacheKey(SynthesizeSpec("a gear", dims, []string{"red", "blue"}))

	if got := CacheKey(SynthesizeSpec("a gear", &Dimensions{Width: 50, Height: 30}, []string{"red", "blue"})); got != base {
		t.Errorf("equal inputs produced different keys: %s vs %s", got, base)
	}

	different := []struct {
		name string
		spec *StageSpec
	}{
		{"prompt", SynthesizeSpec("a cog", dims, []string{"red", "blue"})},
		{"dimensions", SynthesizeSpec("a gear", &Dimensions{Width: 50, Height: 31}, []string{"red", "blue"})},
		{"no dimensions", SynthesizeSpec("a gear", nil, []string{"red", "blue"})},
		{"palette order", SynthesizeSpec("a gear", dims, []string{"blue", "red"})},
		{"stage kind", DecomposeSpec("a gear", []string{"red", "blue"})},
	}
	for _, tt := range different {
		t.Run(tt.name, func(t *testing.T) {
			if CacheKey(tt.spec) == base {
				t.Errorf("key did not change with %s", tt.name)
			}
		})
	}
}

func TestCacheKeyUsesImageContent(t *testing.T) {
	a := VisionSpec("", &SourceImage{Data: []byte("png-a"), MIMEType: "image/png"}, nil, nil)
	b := VisionSpec("", &SourceImage{Data: []byte("png-a"), MIMEType: "image/jpeg"}, nil, nil)
	c := VisionSpec("", &SourceImage{Data: []byte("png-b"), MIMEType: "image/png"}, nil, nil)

	if CacheKey(a) != CacheKey(b) {
		t.Error("identical image bytes should share a key")
	}
	if CacheKey(a) == CacheKey(c) {
		t.Error("different image bytes should not share a key")
	}
}
