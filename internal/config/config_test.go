package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"DSTUTOR_PROVIDER", "DSTUTOR_MODEL", "DSTUTOR_STORE", "DSTUTOR_USER",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "openai" {
		t.Errorf("expected default provider 'openai', got %q", cfg.Provider)
	}
	if cfg.Store.Backend != "json" {
		t.Errorf("expected default store backend 'json', got %q", cfg.Store.Backend)
	}
	if cfg.Tutor.HistoryMode != "full" {
		t.Errorf("expected default history mode 'full', got %q", cfg.Tutor.HistoryMode)
	}
	if cfg.Tutor.RequestTimeout != 60*time.Second {
		t.Errorf("expected default request timeout 60s, got %v", cfg.Tutor.RequestTimeout)
	}
	if !cfg.Tutor.TopicGate {
		t.Error("expected topic gate on by default")
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr ':8080', got %q", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
provider: deepseek
model: deepseek-chat
theme: dark
user: ada
providers:
  deepseek:
    api_key: "sk-test"
    base_url: "https://api.deepseek.com/v1"
store:
  backend: sqlite
  path: /tmp/tutor.db
tutor:
  history_mode: assistant-only
  request_timeout: 45s
  stream_delay: 0s
  max_tokens: 512
  topic_gate: false
  topic_keywords: [pandas, sql]
  refusal: "Data questions only."
guard:
  blocked_terms: [darn]
  banned_ips: ["10.0.0.0/8"]
server:
  addr: "127.0.0.1:9000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "deepseek" || cfg.Model != "deepseek-chat" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.Theme != "dark" || cfg.User != "ada" {
		t.Errorf("theme/user = %q/%q", cfg.Theme, cfg.User)
	}
	pc := cfg.GetProviderConfig("deepseek")
	if pc.APIKey != "sk-test" || pc.BaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("provider config = %+v", pc)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/tutor.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Tutor.HistoryMode != "assistant-only" {
		t.Errorf("history mode = %q", cfg.Tutor.HistoryMode)
	}
	if cfg.Tutor.RequestTimeout != 45*time.Second {
		t.Errorf("request timeout = %v", cfg.Tutor.RequestTimeout)
	}
	if cfg.Tutor.StreamDelay != 0 {
		t.Errorf("stream delay = %v", cfg.Tutor.StreamDelay)
	}
	if cfg.Tutor.MaxTokens != 512 || cfg.Tutor.TopicGate {
		t.Errorf("tutor = %+v", cfg.Tutor)
	}
	if len(cfg.Tutor.TopicKeywords) != 2 || cfg.Tutor.Refusal != "Data questions only." {
		t.Errorf("topic settings = %+v", cfg.Tutor)
	}
	if len(cfg.Guard.BlockedTerms) != 1 || cfg.Guard.BannedIPs[0] != "10.0.0.0/8" {
		t.Errorf("guard = %+v", cfg.Guard)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "provider: anthropic\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tutor.RequestTimeout != 60*time.Second {
		t.Errorf("expected default timeout to survive, got %v", cfg.Tutor.RequestTimeout)
	}
	if cfg.Store.Backend != "json" {
		t.Errorf("expected default backend to survive, got %q", cfg.Store.Backend)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "provider: [unclosed\n"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"backend", "store:\n  backend: csv\n", "store.backend"},
		{"history", "tutor:\n  history_mode: newest\n", "tutor.history_mode"},
		{"theme", "theme: neon\n", "theme"},
		{"timeout", "tutor:\n  request_timeout: -1s\n", "durations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DSTUTOR_PROVIDER", "deepseek")
	t.Setenv("LLM_API_KEY", "env-key-123")
	t.Setenv("LLM_BASE_URL", "https://custom.api.com/v1")
	t.Setenv("LLM_MODEL", "custom-model")
	t.Setenv("DSTUTOR_STORE", "sqlite")
	t.Setenv("DSTUTOR_USER", "grace")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "deepseek" {
		t.Errorf("expected provider 'deepseek', got %q", cfg.Provider)
	}
	pc := cfg.GetProviderConfig("deepseek")
	if pc.APIKey != "env-key-123" {
		t.Errorf("LLM_API_KEY should land on the selected provider, got %q", pc.APIKey)
	}
	if pc.BaseURL != "https://custom.api.com/v1" {
		t.Errorf("expected base_url override, got %q", pc.BaseURL)
	}
	if cfg.Model != "custom-model" {
		t.Errorf("expected model 'custom-model', got %q", cfg.Model)
	}
	if cfg.Store.Backend != "sqlite" || cfg.User != "grace" {
		t.Errorf("store/user = %q/%q", cfg.Store.Backend, cfg.User)
	}
}

func TestLoad_ModelPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODEL", "generic")
	t.Setenv("DSTUTOR_MODEL", "specific")
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "specific" {
		t.Errorf("DSTUTOR_MODEL should win, got %q", cfg.Model)
	}
}

func TestLoad_AnthropicAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "sk-ant-test" {
		t.Errorf("expected anthropic api_key 'sk-ant-test', got %q", got)
	}
}

func TestGetProviderConfig_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.GetProviderConfig("nonexistent")
	if pc == nil || pc.APIKey != "" {
		t.Errorf("expected empty provider config, got %+v", pc)
	}
}

func TestResolveModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "deepseek"
	if got := cfg.ResolveModel(); got != "deepseek-chat" {
		t.Errorf("known default = %q", got)
	}
	cfg.Providers["deepseek"] = &ProviderConfig{Model: "deepseek-reasoner"}
	if got := cfg.ResolveModel(); got != "deepseek-reasoner" {
		t.Errorf("provider model = %q", got)
	}
	cfg.Model = "override"
	if got := cfg.ResolveModel(); got != "override" {
		t.Errorf("override = %q", got)
	}
}

func TestKnownProviders(t *testing.T) {
	if KnownProviderBaseURLs["groq"] == "" {
		t.Error("expected groq base URL from embedded defaults")
	}
	if _, ok := KnownProviderBaseURLs["anthropic"]; ok {
		t.Error("anthropic uses the native SDK default and has no base URL entry")
	}
	if KnownProviderModels["anthropic"] == "" {
		t.Error("expected anthropic default model")
	}
}
