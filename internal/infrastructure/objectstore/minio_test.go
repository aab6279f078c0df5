package objectstore

import (
	"strings"
	"testing"

	"github.com/MfFischer/makersai-studio/internal/config"
)

func TestValidateConfig(t *testing.T) {
	valid := config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "previews"}
	if err := ValidateConfig(valid); err != nil {
		t.Fatalf("ValidateConfig() err=%v", err)
	}

	withScheme := valid
	withScheme.Endpoint = "http://localhost:9000"
	if err := ValidateConfig(withScheme); err == nil {
		t.Error("expected error for scheme in endpoint")
	}

	noBucket := valid
	noBucket.Bucket = ""
	if err := ValidateConfig(noBucket); err == nil {
		t.Error("expected error for missing bucket")
	}
}

func TestObjectKeyIsContentAddressed(t *testing.T) {
	a := objectKey([]byte("img"), "image/png")
	if a != objectKey([]byte("img"), "image/png") {
		t.Error("same content should map to the same key")
	}
	if a == objectKey([]byte("other"), "image/png") {
		t.Error("different content should map to different keys")
	}
	if !strings.HasPrefix(a, "previews/") || !strings.HasSuffix(a, ".png") {
		t.Errorf("key = %q", a)
	}
	if got := objectKey([]byte("img"), "image/jpeg"); !strings.HasSuffix(got, ".jpg") {
		t.Errorf("jpeg key = %q", got)
	}
}

func TestPublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
		want string
	}{
		{"explicit", config.MinIOConfig{PublicURL: "https://cdn.example.com/previews/"}, "https://cdn.example.com/previews"},
		{"plain", config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "previews"}, "http://localhost:9000/previews"},
		{"tls", config.MinIOConfig{Endpoint: "s3.local", Bucket: "p", UseSSL: true}, "https://s3.local/p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publicBase(tt.cfg); got != tt.want {
				t.Errorf("publicBase = %q, want %q", got, tt.want)
			}
		})
	}
}
