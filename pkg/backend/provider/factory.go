// Package provider builds backend clients wrapped in the resilience and metrics
// middleware chain.
package provider

import (
	"context"
	"fmt"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/internal/llmimpl/anthropic"
	"illustrator/pkg/backend/internal/llmimpl/google"
	"illustrator/pkg/backend/internal/llmimpl/ollama"
	"illustrator/pkg/backend/internal/llmimpl/openaiofficial"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/backend/middleware/resilience/circuit"
	"illustrator/pkg/backend/middleware/resilience/ratelimit"
	"illustrator/pkg/backend/middleware/resilience/retry"
	"illustrator/pkg/backend/middleware/resilience/timeout"
	"illustrator/pkg/config"
	"illustrator/pkg/logx"
	"illustrator/pkg/templates"
)

// RawClientFunc builds an unwrapped provider client. Tests replace it to avoid network calls.
type RawClientFunc func(provider, model, credential, baseURL string) (backend.LLMClient, error)

// Factory creates backend clients with properly configured middleware chains.
type Factory struct {
	config          config.Config
	recorder        metrics.Recorder
	circuitBreakers map[string]circuit.Breaker // per-provider circuit breakers
	rateLimitMap    *ratelimit.ProviderLimiterMap
	newRaw          RawClientFunc
	logger          *logx.Logger
}

// NewFactory returns a factory. The rate limiter refill goroutines live until ctx is
// cancelled or Stop is called.
func NewFactory(ctx context.Context, cfg config.Config, recorder metrics.Recorder) *Factory {
	if recorder == nil {
		recorder = metrics.Nop()
	}

	circuitConfig := circuit.Config{
		FailureThreshold: cfg.Resilience.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.Resilience.CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.Resilience.CircuitBreaker.Timeout,
	}
	circuitBreakers := make(map[string]circuit.Breaker)
	rateLimitConfigs := make(map[string]ratelimit.Config)
	for provider, limits := range cfg.Resilience.RateLimit.Limits() {
		circuitBreakers[provider] = circuit.New(circuitConfig)
		rateLimitConfigs[provider] = ratelimit.Config{
			TokensPerMinute: limits.TokensPerMinute,
			MaxConcurrency:  limits.MaxConcurrency,
		}
	}

	return &Factory{
		config:          cfg,
		recorder:        recorder,
		circuitBreakers: circuitBreakers,
		rateLimitMap:    ratelimit.NewProviderLimiterMap(ctx, rateLimitConfigs, cfg.Resilience.Timeout),
		newRaw:          NewRawClient,
		logger:          logx.NewLogger("backend"),
	}
}

// WithRawClient overrides how provider clients are built.
func (f *Factory) WithRawClient(fn RawClientFunc) *Factory {
	f.newRaw = fn
	return f
}

// Stop releases the rate limiter goroutines.
func (f *Factory) Stop() {
	f.rateLimitMap.Stop()
}

// RateLimitStats reports the limiter state per provider.
func (f *Factory) RateLimitStats() map[string]ratelimit.Stats {
	return f.rateLimitMap.GetAllStats()
}

// CreateClient builds the configured backend client with the full middleware chain.
func (f *Factory) CreateClient() (backend.LLMClient, error) {
	provider, err := f.config.Provider()
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", f.config.Backend.Model, err)
	}

	credential, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	rawClient, err := f.newRaw(provider, f.config.Backend.Model, credential, f.config.Backend.BaseURL)
	if err != nil {
		return nil, err
	}

	circuitBreaker, exists := f.circuitBreakers[provider]
	if !exists {
		return nil, fmt.Errorf("no circuit breaker found for provider %s", provider)
	}

	r := f.config.Resilience.Retry
	retryPolicy := retry.NewPolicy(retry.Config{
		MaxAttempts:   r.MaxAttempts,
		InitialDelay:  r.InitialDelay,
		MaxDelay:      r.MaxDelay,
		BackoffFactor: r.BackoffFactor,
		Jitter:        r.Jitter,
	}, nil)

	// Metrics -> CircuitBreaker -> Retry -> RateLimit -> Timeout -> RawClient
	client := backend.Chain(rawClient,
		metrics.Middleware(f.recorder, nil, f.logger),
		circuit.Middleware(circuitBreaker),
		retry.Middleware(retryPolicy, f.logger),
		ratelimit.Middleware(f.rateLimitMap, provider, nil, f.recorder),
		timeout.Middleware(f.config.Resilience.Timeout),
	)

	f.logger.Info("Backend ready: provider=%s model=%s", provider, client.GetModelName())
	return client, nil
}

// CreateSynthesizer wraps CreateClient in an LLMSynthesizer.
func (f *Factory) CreateSynthesizer(renderer *templates.Renderer) (backend.Synthesizer, error) {
	client, err := f.CreateClient()
	if err != nil {
		return nil, err
	}
	return backend.NewLLMSynthesizer(client, renderer, f.config.Backend.MaxTokens, f.config.Backend.Temperature), nil
}

// NewRawClient builds the provider client for model. For Ollama the credential is the host URL.
func NewRawClient(provider, model, credential, baseURL string) (backend.LLMClient, error) {
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(credential, model, baseURL), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(credential, model, baseURL), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(credential, model, baseURL), nil
	case config.ProviderOllama:
		host := credential
		if baseURL != "" {
			host = baseURL
		}
		return ollama.NewOllamaClientWithModel(host, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
