package wire

import (
	"context"
	"testing"
	"time"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/internal/infrastructure/cache"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTL = time.Hour
	cfg.Cache.CheckPeriod = time.Minute
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.Backend = "memory"
	cfg.Security.RateLimit.Window = time.Hour
	cfg.Security.RateLimit.MaxRequests = 10
	cfg.Security.RateLimit.KeyPrefix = "test:"
	cfg.Storage.Previews = "inline"
	cfg.Features.Persistence.Mode = "stream"
	return cfg
}

func TestNeedsRedis(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
	}{
		{"all memory", func(*config.Config) {}, false},
		{"redis cache", func(c *config.Config) { c.Cache.Backend = "redis" }, true},
		{"redis cache disabled", func(c *config.Config) { c.Cache.Backend = "redis"; c.Cache.Enabled = false }, false},
		{"redis rate limit", func(c *config.Config) { c.Security.RateLimit.Backend = "redis" }, true},
		{"stream persistence", func(c *config.Config) { c.Features.Persistence.Enabled = true }, true},
		{"direct persistence", func(c *config.Config) {
			c.Features.Persistence.Enabled = true
			c.Features.Persistence.Mode = "direct"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			if got := needsRedis(cfg); got != tt.want {
				t.Errorf("needsRedis = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProvideGatesStrictIsTighter(t *testing.T) {
	gates, cleanup := ProvideGates(baseConfig(), nil)
	defer cleanup()

	if gates.General.Limit() != 10 {
		t.Errorf("general limit = %d, want 10", gates.General.Limit())
	}
	if gates.Strict.Limit() >= gates.General.Limit() {
		t.Errorf("strict limit %d should be below general %d", gates.Strict.Limit(), gates.General.Limit())
	}

	ctx := context.Background()
	for i := 0; i < gates.Strict.Limit(); i++ {
		if d := gates.Strict.Admit(ctx, "client"); !d.Allowed {
			t.Fatalf("request %d rejected early", i+1)
		}
	}
	if d := gates.Strict.Admit(ctx, "client"); d.Allowed {
		t.Fatal("strict gate should reject past its limit")
	}
	if d := gates.General.Admit(ctx, "client"); !d.Allowed {
		t.Fatal("general gate must count independently of the strict gate")
	}
}

func TestProvideStageCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Cache.Enabled = false
		store, cleanup, err := ProvideStageCache(cfg, nil)
		if err != nil {
			t.Fatalf("ProvideStageCache: %v", err)
		}
		defer cleanup()
		if _, ok := store.(cache.NopStore); !ok {
			t.Errorf("store = %T, want cache.NopStore", store)
		}
	})

	t.Run("memory with compression", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Cache.Compression.Enabled = true
		cfg.Cache.Compression.Level = 3
		store, cleanup, err := ProvideStageCache(cfg, nil)
		if err != nil {
			t.Fatalf("ProvideStageCache: %v", err)
		}
		defer cleanup()
		if _, ok := store.(*cache.CompressedStore); !ok {
			t.Fatalf("store = %T, want *cache.CompressedStore", store)
		}

		ctx := context.Background()
		store.Set(ctx, "k", []byte(`{"scadCode":"cube(10);"}`), time.Minute)
		got, ok := store.Get(ctx, "k")
		if !ok || string(got) != `{"scadCode":"cube(10);"}` {
			t.Errorf("Get = %q, %v", got, ok)
		}
	})
}

func TestProvidePreviewStoreInline(t *testing.T) {
	store := ProvidePreviewStore(context.Background(), baseConfig())
	if _, ok := store.(generation.InlinePreviews); !ok {
		t.Errorf("store = %T, want generation.InlinePreviews", store)
	}
}

func TestProvideSinkDisabled(t *testing.T) {
	sink, cleanup := ProvideSink(baseConfig(), nil, nil)
	defer cleanup()
	if _, ok := sink.(generation.NopSink); !ok {
		t.Errorf("sink = %T, want generation.NopSink", sink)
	}
}

func TestProvideHealthHandlerSkipsMissingDependencies(t *testing.T) {
	h := ProvideHealthHandler(baseConfig(), nil, nil, generation.InlinePreviews{})
	if h == nil {
		t.Fatal("handler is nil")
	}
}
