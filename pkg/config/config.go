// Package config loads, validates and persists the service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"illustrator/pkg/logx"
)

// Project config constants.
const (
	ProjectConfigDir      = ".illustrator"
	ProjectConfigFilename = "config.json"
	SchemaVersion         = "1.0"
	// EnvPrefix prefixes environment overrides, e.g. ILLUSTRATOR_BACKEND_MODEL.
	EnvPrefix = "ILLUSTRATOR_"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Environment variables holding provider credentials.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// Defaults.
const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
	DefaultMaxRetries  = 2
	DefaultNamespace   = "illustrator"
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
)

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("config")

// ProviderPattern infers a provider from a model-name prefix.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns lets new models be used without code changes.
//
//nolint:gochecknoglobals // static inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"phi", ProviderOllama},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"gemma", ProviderOllama},
	{"deepseek", ProviderOllama},
}

// GetModelProvider returns the provider for a model name.
func GetModelProvider(modelName string) (string, error) {
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern match - set backend.provider explicitly", modelName)
}

// BackendConfig selects and tunes the generative backend.
type BackendConfig struct {
	Provider    string  `json:"provider"` // empty: inferred from model
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// CircuitBreakerConfig configures the per-provider breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"` // wait before half-open
}

// RetryConfig configures backend-level retries of transport failures.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts"` // including the first
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

// ProviderLimits is a token-per-minute and concurrency budget.
type ProviderLimits struct {
	TokensPerMinute int `json:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency"`
}

// RateLimitConfig holds per-provider budgets.
type RateLimitConfig struct {
	Anthropic ProviderLimits `json:"anthropic"`
	OpenAI    ProviderLimits `json:"openai"`
	Google    ProviderLimits `json:"google"`
	Ollama    ProviderLimits `json:"ollama"`
}

// Limits returns the budgets keyed by provider name.
func (r RateLimitConfig) Limits() map[string]ProviderLimits {
	return map[string]ProviderLimits{
		ProviderAnthropic: r.Anthropic,
		ProviderOpenAI:    r.OpenAI,
		ProviderGoogle:    r.Google,
		ProviderOllama:    r.Ollama,
	}
}

// ProviderDefaults are used for budgets left at zero.
//
//nolint:gochecknoglobals // provider defaults
var ProviderDefaults = map[string]ProviderLimits{
	ProviderAnthropic: {TokensPerMinute: 300000, MaxConcurrency: 5},
	ProviderOpenAI:    {TokensPerMinute: 150000, MaxConcurrency: 5},
	ProviderGoogle:    {TokensPerMinute: 1000000, MaxConcurrency: 5},
	ProviderOllama:    {TokensPerMinute: 1000000, MaxConcurrency: 2},
}

// ResilienceConfig bundles the backend middleware settings.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
	Timeout        time.Duration        `json:"timeout"` // per backend call
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// GenerationConfig tunes the content loop.
type GenerationConfig struct {
	// MaxRetries is the number of attempts after the first one when fields violate
	// their bounds. Nil selects DefaultMaxRetries; 0 allows a single attempt.
	MaxRetries *int `json:"max_retries,omitempty"`
}

// Retries returns MaxRetries, or DefaultMaxRetries when unset.
func (g GenerationConfig) Retries() int {
	if g.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *g.MaxRetries
}

// SuitabilityConfig holds the advisory scorer's policy constants.
type SuitabilityConfig struct {
	StrongWeight        float64 `json:"strong_weight"`
	ModerateWeight      float64 `json:"moderate_weight"`
	WeakWeight          float64 `json:"weak_weight"`
	NegativePenalty     float64 `json:"negative_penalty"`
	NegativePenaltyCap  float64 `json:"negative_penalty_cap"`
	CountMismatchFactor float64 `json:"count_mismatch_factor"`
	MinScore            float64 `json:"min_score"`
	SpaceFitPenalty     float64 `json:"space_fit_penalty"`
	CanHandleThreshold  float64 `json:"can_handle_threshold"`
	MaxAlternatives     int     `json:"max_alternatives"`
}

// DefaultSuitability returns the stock scorer policy.
func DefaultSuitability() SuitabilityConfig {
	return SuitabilityConfig{
		StrongWeight:        0.25,
		ModerateWeight:      0.12,
		WeakWeight:          0.05,
		NegativePenalty:     0.08,
		NegativePenaltyCap:  0.5,
		CountMismatchFactor: 0.6,
		MinScore:            0.2,
		SpaceFitPenalty:     0.7,
		CanHandleThreshold:  0.35,
		MaxAlternatives:     2,
	}
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DebugConfig mirrors the DEBUG / DEBUG_DOMAINS environment switches.
type DebugConfig struct {
	Enabled bool     `json:"enabled"`
	Domains []string `json:"domains,omitempty"`
}

// Config is the whole service configuration.
type Config struct {
	SchemaVersion string            `json:"schema_version"`
	Backend       BackendConfig     `json:"backend"`
	Resilience    ResilienceConfig  `json:"resilience"`
	Metrics       MetricsConfig     `json:"metrics"`
	Generation    GenerationConfig  `json:"generation"`
	Suitability   SuitabilityConfig `json:"suitability"`
	Server        ServerConfig      `json:"server"`
	Debug         DebugConfig       `json:"debug"`
}

// Provider returns the configured provider, inferring it from the model when unset.
func (c *Config) Provider() (string, error) {
	if c.Backend.Provider != "" {
		return c.Backend.Provider, nil
	}
	return GetModelProvider(c.Backend.Model)
}

// Default returns a config with every field set.
func Default() Config {
	cfg := Config{SchemaVersion: SchemaVersion}
	applyDefaults(&cfg)
	return cfg
}

// Load reads <projectDir>/.illustrator/config.json.
//
// A missing file is created with defaults. An existing file has ${VAR} placeholders
// substituted, defaults applied to zero fields, and ILLUSTRATOR_* overrides applied
// before validation. An unparseable file is an error so user edits are never overwritten.
func Load(projectDir string) (Config, error) {
	configPath := Path(projectDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Info("📝 Config file not found, creating new config at %s", configPath)
		cfg := Default()
		if err := Save(&cfg, projectDir); err != nil {
			return Config{}, fmt.Errorf("failed to save initial config: %w", err)
		}
		applyEnvOverrides(&cfg)
		if err := Validate(&cfg); err != nil {
			return Config{}, fmt.Errorf("default config validation failed: %w", err)
		}
		return cfg, nil
	}

	logger.Info("📝 Loading config from %s", configPath)
	cfg, err := loadConfigFromFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("fatal: config file exists but cannot be parsed (to avoid overwriting your changes): %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	logger.Info("✅ Config loaded and validated successfully")
	return *cfg, nil
}

// Path returns the config file location for projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	substituted := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})

	var cfg Config
	if err := json.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Save writes cfg to <projectDir>/.illustrator/config.json.
func Save(cfg *Config, projectDir string) error {
	configPath := Path(projectDir)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil { //nolint:gosec // config holds no secrets
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyDefaults fills zero-valued fields.
//
//nolint:cyclop // flat list of defaults
func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}

	b := &cfg.Backend
	if b.Model == "" {
		b.Model = DefaultModel
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = DefaultMaxTokens
	}
	if b.Temperature == 0 {
		b.Temperature = DefaultTemperature
	}

	r := &cfg.Resilience
	if r.Timeout == 0 {
		r.Timeout = 90 * time.Second
	}
	if r.CircuitBreaker.FailureThreshold == 0 {
		r.CircuitBreaker.FailureThreshold = 5
	}
	if r.CircuitBreaker.SuccessThreshold == 0 {
		r.CircuitBreaker.SuccessThreshold = 1
	}
	if r.CircuitBreaker.Timeout == 0 {
		r.CircuitBreaker.Timeout = 30 * time.Second
	}
	if r.Retry.MaxAttempts == 0 {
		r.Retry.MaxAttempts = 3
		r.Retry.Jitter = true
	}
	if r.Retry.InitialDelay == 0 {
		r.Retry.InitialDelay = time.Second
	}
	if r.Retry.MaxDelay == 0 {
		r.Retry.MaxDelay = 10 * time.Second
	}
	if r.Retry.BackoffFactor == 0 {
		r.Retry.BackoffFactor = 2.0
	}
	limitDefault(&r.RateLimit.Anthropic, ProviderAnthropic)
	limitDefault(&r.RateLimit.OpenAI, ProviderOpenAI)
	limitDefault(&r.RateLimit.Google, ProviderGoogle)
	limitDefault(&r.RateLimit.Ollama, ProviderOllama)

	// A metrics section without a namespace is treated as absent.
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
		cfg.Metrics.Enabled = true
	}
	if cfg.Generation.MaxRetries == nil {
		retries := DefaultMaxRetries
		cfg.Generation.MaxRetries = &retries
	}
	if cfg.Suitability == (SuitabilityConfig{}) {
		cfg.Suitability = DefaultSuitability()
	}

	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 5 * time.Minute
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
}

func limitDefault(l *ProviderLimits, provider string) {
	d := ProviderDefaults[provider]
	if l.TokensPerMinute == 0 {
		l.TokensPerMinute = d.TokensPerMinute
	}
	if l.MaxConcurrency == 0 {
		l.MaxConcurrency = d.MaxConcurrency
	}
}

// Validate checks structural constraints. Credentials are checked when the backend is built.
func Validate(cfg *Config) error {
	if _, err := cfg.Provider(); err != nil {
		return err
	}
	switch cfg.Backend.Provider {
	case "", ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama:
	default:
		return fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
	if cfg.Backend.MaxTokens <= 0 {
		return fmt.Errorf("backend max_tokens must be positive (got %d)", cfg.Backend.MaxTokens)
	}
	if cfg.Backend.Temperature < 0 || cfg.Backend.Temperature > 2 {
		return fmt.Errorf("backend temperature must be between 0 and 2 (got %.2f)", cfg.Backend.Temperature)
	}
	if n := cfg.Generation.Retries(); n < 0 {
		return fmt.Errorf("generation max_retries cannot be negative (got %d)", n)
	}
	if cfg.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("resilience retry max_attempts must be at least 1")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}
	s := cfg.Suitability
	if s.CanHandleThreshold < 0 || s.CanHandleThreshold > 1 || s.MinScore < 0 || s.MinScore > 1 {
		return fmt.Errorf("suitability thresholds must be within [0,1]")
	}
	for provider, l := range cfg.Resilience.RateLimit.Limits() {
		if l.TokensPerMinute < cfg.Backend.MaxTokens {
			logger.Warn("⚠️  %s tokens_per_minute %d is below max_tokens %d; requests may block", provider, l.TokensPerMinute, cfg.Backend.MaxTokens)
		}
	}
	return nil
}

// GetAPIKey returns the credential for provider: the decrypted secrets file first, then
// the environment. For Ollama it returns the host URL.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		host, err := GetSecret(EnvOllamaHost)
		if err != nil || host == "" {
			host = "http://localhost:11434"
		}
		return host, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables", envVar)
}
