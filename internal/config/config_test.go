package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RECIPE_FORGE_AI_API_KEY", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.Cache.Backend != BackendSQLite || cfg.Cache.TTL != 30*24*time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Thresholds.AIFallback != 0.3 || cfg.Thresholds.PrefetchedAIFallback != 0.2 {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.AI.Enabled {
		t.Error("AI should be disabled without an API key")
	}
	if cfg.AI.Timeout != 90*time.Second {
		t.Errorf("AI.Timeout = %s", cfg.AI.Timeout)
	}

	fc := cfg.FetchConfig()
	if fc.Main.Timeout != 15*time.Second || fc.Main.Retry.MaxAttempts != 3 {
		t.Errorf("FetchConfig().Main = %+v", fc.Main)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
cache:
  backend: redis
  ttl: 48h
fetch:
  timeout: 20s
  max_retries: 1
ai:
  api_key: sk-file
  timeout: 75s
thresholds:
  ai_fallback: 0.4
limits:
  production:
    conversion:
      hourly: 2
      daily: 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Cache.Backend != BackendRedis || cfg.Cache.TTL != 48*time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.AI.Enabled {
		t.Error("AI should be enabled when an API key is set")
	}
	if got := cfg.OpenAIConfig().Timeout; got != 75*time.Second {
		t.Errorf("OpenAIConfig().Timeout = %s", got)
	}
	if got := cfg.PipelineConfig().AIFallback; got != 0.4 {
		t.Errorf("PipelineConfig().AIFallback = %v", got)
	}

	fc := cfg.FetchConfig()
	if fc.Main.Timeout != 20*time.Second || fc.Main.Retry.MaxAttempts != 2 {
		t.Errorf("FetchConfig().Main = %+v", fc.Main)
	}

	limits := cfg.RateLimits()
	if limits[ratelimit.ActionConversion] != (ratelimit.Limit{Hourly: 2, Daily: 4}) {
		t.Errorf("conversion limit = %+v", limits[ratelimit.ActionConversion])
	}
	if limits[ratelimit.ActionImport] != (ratelimit.Limit{Hourly: 30, Daily: 100}) {
		t.Errorf("import limit should keep production default, got %+v", limits[ratelimit.ActionImport])
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "ai:\n  model: from-file\n")
	t.Setenv("RECIPE_FORGE_AI_API_KEY", "sk-env")
	t.Setenv("RECIPE_FORGE_AI_MODEL", "from-env")
	t.Setenv("RECIPE_FORGE_SERVER_ADDR", ":9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !cfg.AI.Enabled || cfg.AI.APIKey != "sk-env" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Model != "from-env" {
		t.Errorf("AI.Model = %q, environment should win over the file", cfg.AI.Model)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown cache backend", content: "cache:\n  backend: memcached\n"},
		{name: "unknown store backend", content: "store:\n  backend: dynamo\n"},
		{name: "threshold out of range", content: "thresholds:\n  ai_fallback: 1.5\n"},
		{name: "broken yaml", content: "cache: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
