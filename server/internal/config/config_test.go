package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadMissingFileUsesDefaults 验证配置文件缺失时回落到默认配置。
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("expected default port 8081, got %d", cfg.Server.Port)
	}
	if len(cfg.Providers.Order) != 3 || cfg.Providers.Order[0] != "grok" {
		t.Fatalf("unexpected default order: %v", cfg.Providers.Order)
	}
	if cfg.Session.HistoryWindow != 5 {
		t.Fatalf("expected history window 5, got %d", cfg.Session.HistoryWindow)
	}
}

// TestLoadYAMLAndEnvOverride 验证 YAML 覆盖默认值，环境变量覆盖密钥。
// 场景：文件里写了 openai key，环境变量再覆盖一次，最终以环境变量为准。
func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bella.yaml")
	content := `
server:
  port: 9090
providers:
  order: [anthropic, openai]
  timeout: 5s
  openai:
    api_key: from-file
store:
  engine: memory
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("ELEVENLABS_API_KEY", "voice-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Providers.Order[0] != "anthropic" {
		t.Fatalf("expected anthropic first, got %v", cfg.Providers.Order)
	}
	if cfg.Providers.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.Providers.Timeout)
	}
	if cfg.Providers.OpenAI.APIKey != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Providers.OpenAI.Model != "gpt-4o" {
		t.Fatalf("expected default model kept, got %q", cfg.Providers.OpenAI.Model)
	}
	if cfg.Voice.APIKey != "voice-key" {
		t.Fatalf("expected voice key from env")
	}
	if cfg.Store.Engine != "memory" {
		t.Fatalf("expected memory store, got %s", cfg.Store.Engine)
	}
}

// TestValidateRejectsUnknownProvider 验证未知提供商名称会被拒绝。
func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Providers.Order = []string{"grok", "bard"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}
}

// TestValidateRejectsUnknownStore 验证未知存储引擎会被拒绝。
func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := Default()
	cfg.Store.Engine = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown store engine")
	}
}
