// Package config loads and manages dstutor configuration.
// Configuration source priority (highest to lowest):
// 1. Command-line flags (applied by cmd)
// 2. Environment variables (LLM_API_KEY, LLM_BASE_URL, LLM_MODEL, ANTHROPIC_API_KEY, DSTUTOR_*)
// 3. Config file given with --config, else ~/.config/dstutor/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds the default base URL and model for a provider.
type ProviderDefaults struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

var (
	// KnownProviderBaseURLs maps well-known provider names to their base URLs.
	KnownProviderBaseURLs map[string]string

	// KnownProviderModels maps well-known provider names to their default models.
	KnownProviderModels map[string]string
)

func init() {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)
	KnownProviderBaseURLs = make(map[string]string, len(defs))
	KnownProviderModels = make(map[string]string, len(defs))
	for name, d := range defs {
		if d.BaseURL != "" {
			KnownProviderBaseURLs[name] = d.BaseURL
		}
		if d.DefaultModel != "" {
			KnownProviderModels[name] = d.DefaultModel
		}
	}
}

// ProviderConfig holds configuration for a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// StoreConfig selects the durable session sink.
type StoreConfig struct {
	// Backend: "json" (default) | "sqlite"
	Backend string `yaml:"backend"`

	// Path of the store file. Empty selects ~/.local/share/dstutor/.
	Path string `yaml:"path"`
}

// TutorConfig controls one question/answer cycle.
type TutorConfig struct {
	// HistoryMode: "full" (default) | "assistant-only"
	HistoryMode string `yaml:"history_mode"`

	// RequestTimeout bounds each model call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StreamDelay is the per-word delay of the typing animation. 0 disables it.
	StreamDelay time.Duration `yaml:"stream_delay"`

	MaxTokens int `yaml:"max_tokens"`

	// HistoryTokens caps the estimated size of the history sent with each
	// question. Oldest turns are dropped first. 0 disables trimming.
	HistoryTokens int `yaml:"history_tokens"`

	// TopicGate refuses questions that mention none of TopicKeywords.
	TopicGate     bool     `yaml:"topic_gate"`
	TopicKeywords []string `yaml:"topic_keywords"`
	Refusal       string   `yaml:"refusal"`
}

// GuardConfig lists the pre-filters applied to incoming questions and clients.
type GuardConfig struct {
	BlockedTerms []string `yaml:"blocked_terms"`
	BannedIPs    []string `yaml:"banned_ips"`
}

// ServerConfig configures `dstutor serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the complete dstutor configuration.
type Config struct {
	// Provider is the active provider name ("anthropic", "openai", "deepseek", ...).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	Providers map[string]*ProviderConfig `yaml:"providers"`

	// SystemPrompt replaces the built-in tutor prompt when set.
	SystemPrompt string `yaml:"system_prompt"`

	// User namespaces the session store file.
	User string `yaml:"user"`

	// Theme: "auto" (default) | "dark" | "light"
	Theme string `yaml:"theme"`

	Store  StoreConfig  `yaml:"store"`
	Tutor  TutorConfig  `yaml:"tutor"`
	Guard  GuardConfig  `yaml:"guard"`
	Server ServerConfig `yaml:"server"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "openai",
		Providers: make(map[string]*ProviderConfig),
		Theme:     "auto",
		Store:     StoreConfig{Backend: "json"},
		Tutor: TutorConfig{
			HistoryMode:    "full",
			RequestTimeout: 60 * time.Second,
			StreamDelay:    30 * time.Millisecond,
			MaxTokens:      2048,
			HistoryTokens:  16000,
			TopicGate:      true,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// DefaultPath returns ~/.config/dstutor/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dstutor", "config.yaml"), nil
}

// Load reads the config file and merges environment variable overrides.
// A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if p, err := DefaultPath(); err == nil {
			configPath = p
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot interpret.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("store.backend %q: want json or sqlite", c.Store.Backend)
	}
	switch c.Tutor.HistoryMode {
	case "", "full", "assistant-only":
	default:
		return fmt.Errorf("tutor.history_mode %q: want full or assistant-only", c.Tutor.HistoryMode)
	}
	switch c.Theme {
	case "", "auto", "dark", "light":
	default:
		return fmt.Errorf("theme %q: want auto, dark or light", c.Theme)
	}
	if c.Tutor.RequestTimeout < 0 || c.Tutor.StreamDelay < 0 {
		return fmt.Errorf("tutor durations must not be negative")
	}
	if c.Tutor.MaxTokens < 0 || c.Tutor.HistoryTokens < 0 {
		return fmt.Errorf("tutor token limits must not be negative")
	}
	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("provider must be set")
	}
	return nil
}

// GetProviderConfig returns the config for the named provider, or an empty config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok && pc != nil {
		return pc
	}
	return &ProviderConfig{}
}

// ResolveModel picks the model: explicit override, then the provider's
// configured model, then the known default. It may return "".
func (c *Config) ResolveModel() string {
	if c.Model != "" {
		return c.Model
	}
	if m := c.GetProviderConfig(c.Provider).Model; m != "" {
		return m
	}
	return KnownProviderModels[c.Provider]
}

// applyEnvOverrides applies environment variable overrides to the config.
// Provider selection comes first so the generic LLM_* variables land on the
// selected provider, and they win over vendor-specific keys.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DSTUTOR_PROVIDER"); v != "" {
		cfg.Provider = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		providerConfig(cfg, "anthropic").APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		providerConfig(cfg, "openai").APIKey = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		providerConfig(cfg, cfg.Provider).APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		providerConfig(cfg, cfg.Provider).BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("DSTUTOR_MODEL"); v != "" {
		cfg.Model = v
	}

	if v := os.Getenv("DSTUTOR_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("DSTUTOR_USER"); v != "" {
		cfg.User = v
	}
}

func providerConfig(cfg *Config, name string) *ProviderConfig {
	if cfg.Providers[name] == nil {
		cfg.Providers[name] = &ProviderConfig{}
	}
	return cfg.Providers[name]
}
