package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if cfg.Generation.Retries() != DefaultMaxRetries {
		t.Errorf("max retries = %d, want %d", cfg.Generation.Retries(), DefaultMaxRetries)
	}
	if cfg.Backend.Model != DefaultModel || cfg.Server.Port != DefaultPort {
		t.Errorf("unexpected defaults: %+v", cfg.Backend)
	}
	if provider, _ := cfg.Provider(); provider != ProviderAnthropic {
		t.Errorf("provider = %q", provider)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"backend": {"model": "gemini-2.5-flash"}, "generation": {"max_retries": 4}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.Retries() != 4 {
		t.Errorf("max retries = %d, want 4", cfg.Generation.Retries())
	}
	if provider, _ := cfg.Provider(); provider != ProviderGoogle {
		t.Errorf("provider = %q, want google", provider)
	}
	if cfg.Backend.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens default not applied: %d", cfg.Backend.MaxTokens)
	}
	if cfg.Resilience.RateLimit.Ollama.MaxConcurrency != 2 {
		t.Errorf("ollama concurrency default = %d", cfg.Resilience.RateLimit.Ollama.MaxConcurrency)
	}
	if cfg.Suitability != DefaultSuitability() {
		t.Error("suitability defaults not applied")
	}
}

func TestLoadRejectsUnparseableFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"backend": `)

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "cannot be parsed") {
		t.Fatalf("expected parse error, got %v", err)
	}
	data, _ := os.ReadFile(Path(dir))
	if string(data) != `{"backend": ` {
		t.Error("unparseable file must not be overwritten")
	}
}

func TestEnvSubstitutionAndOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_ILLUSTRATOR_MODEL", "gpt-4.1")
	t.Setenv("ILLUSTRATOR_SERVER_PORT", "9090")
	t.Setenv("ILLUSTRATOR_RESILIENCE_TIMEOUT", "45s")
	t.Setenv("ILLUSTRATOR_DEBUG_DOMAINS", "router, generator")
	writeConfig(t, dir, `{"backend": {"model": "${TEST_ILLUSTRATOR_MODEL}"}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Model != "gpt-4.1" {
		t.Errorf("model = %q", cfg.Backend.Model)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Resilience.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", cfg.Resilience.Timeout)
	}
	if len(cfg.Debug.Domains) != 2 || cfg.Debug.Domains[1] != "generator" {
		t.Errorf("domains = %v", cfg.Debug.Domains)
	}
}

func TestLoadKeepsZeroRetries(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"generation": {"max_retries": 0}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.Retries() != 0 {
		t.Errorf("max retries = %d, want 0", cfg.Generation.Retries())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "unknown model", mutate: func(c *Config) { c.Backend.Model = "mystery-1" }, wantErr: "unknown model"},
		{name: "explicit provider", mutate: func(c *Config) { c.Backend.Model = "mystery-1"; c.Backend.Provider = ProviderOllama }},
		{name: "bad provider", mutate: func(c *Config) { c.Backend.Provider = "acme" }, wantErr: "unknown backend provider"},
		{name: "negative retries", mutate: func(c *Config) { n := -1; c.Generation.MaxRetries = &n }, wantErr: "max_retries"},
		{name: "single attempt", mutate: func(c *Config) { n := 0; c.Generation.MaxRetries = &n }},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "port"},
		{name: "bad temperature", mutate: func(c *Config) { c.Backend.Temperature = 3 }, wantErr: "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetModelProvider(t *testing.T) {
	cases := map[string]string{
		"claude-sonnet-4-5": ProviderAnthropic,
		"gpt-4.1":           ProviderOpenAI,
		"o3-mini":           ProviderOpenAI,
		"gemini-2.5-pro":    ProviderGoogle,
		"llama3.1:8b":       ProviderOllama,
	}
	for model, want := range cases {
		if got, err := GetModelProvider(model); err != nil || got != want {
			t.Errorf("GetModelProvider(%q) = %q, %v", model, got, err)
		}
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	t.Setenv(EnvAnthropicAPIKey, "sk-env")
	t.Setenv(EnvOllamaHost, "")

	if key, err := GetAPIKey(ProviderAnthropic); err != nil || key != "sk-env" {
		t.Errorf("anthropic key = %q, %v", key, err)
	}
	if host, _ := GetAPIKey(ProviderOllama); host != "http://localhost:11434" {
		t.Errorf("ollama host = %q", host)
	}
	if _, err := GetAPIKey("acme"); err == nil {
		t.Error("unknown provider should error")
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
