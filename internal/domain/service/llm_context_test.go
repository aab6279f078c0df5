package service

import (
	"context"
	"testing"
)

func TestStageProviderContext(t *testing.T) {
	ctx := WithStageProvider(context.Background(), " synthesize ", "openai")
	if got := StageFromContext(ctx); got != "synthesize" {
		t.Errorf("stage = %q", got)
	}
	if got := ProviderFromContext(ctx); got != "openai" {
		t.Errorf("provider = %q", got)
	}
}

func TestContextDefaultsToUnknown(t *testing.T) {
	ctx := WithStage(context.Background(), "  ")
	if got := StageFromContext(ctx); got != "unknown" {
		t.Errorf("stage = %q, want unknown", got)
	}
	if got := ProviderFromContext(ctx); got != "unknown" {
		t.Errorf("provider = %q, want unknown", got)
	}
}
