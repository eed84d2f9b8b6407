// Package ratelimit throttles backend calls with a token bucket plus a concurrency cap.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/logx"
	"illustrator/pkg/utils"
)

// BufferFactor keeps bucket capacity below the provider limit to absorb estimation error.
const BufferFactor = 0.9

// refillInterval is how often a tenth of the per-minute budget is added back.
const refillInterval = 6 * time.Second

// Limiter hands out capacity for one backend call.
type Limiter interface {
	// Acquire blocks until tokens and a concurrency slot are available. The returned
	// release func must be called when the call finishes.
	Acquire(ctx context.Context, tokens int, caller string) (release func(), err error)
	GetStats() Stats
}

// TokenEstimator estimates prompt tokens for a request.
type TokenEstimator interface {
	EstimatePrompt(req backend.CompletionRequest) int
}

// Config is the per-provider budget.
type Config struct {
	TokensPerMinute int `json:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency"`
}

// DefaultTokenEstimator counts prompt tokens with tiktoken.
type DefaultTokenEstimator struct{}

func NewDefaultTokenEstimator() TokenEstimator {
	return &DefaultTokenEstimator{}
}

func (e *DefaultTokenEstimator) EstimatePrompt(req backend.CompletionRequest) int {
	contents := make([]string, 0, len(req.Messages))
	for i := range req.Messages {
		contents = append(contents, req.Messages[i].Content)
	}
	return utils.CountMessages(contents...)
}

type acquisition struct {
	timestamp time.Time
	caller    string
}

// TokenBucketLimiter combines a token bucket with a semaphore.
type TokenBucketLimiter struct {
	mu sync.Mutex

	provider string

	availableTokens int
	tokensPerRefill int
	maxCapacity     int

	activeRequests int
	maxConcurrency int
	acquisitions   []*acquisition
	releaseTimeout time.Duration
	maxWait        time.Duration

	tokenLimitHits  int64
	concurrencyHits int64
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Provider        string `json:"provider"`
	AvailableTokens int    `json:"available_tokens"`
	MaxCapacity     int    `json:"max_capacity"`
	ActiveRequests  int    `json:"active_requests"`
	MaxConcurrency  int    `json:"max_concurrency"`
	TokenLimitHits  int64  `json:"token_limit_hits"`
	ConcurrencyHits int64  `json:"concurrency_hits"`
}

// NewTokenBucketLimiter returns a limiter starting with a full bucket. Slots held
// longer than twice requestTimeout are considered leaked and reclaimed.
func NewTokenBucketLimiter(provider string, cfg Config, requestTimeout time.Duration) *TokenBucketLimiter {
	maxCapacity := int(float64(cfg.TokensPerMinute) * BufferFactor)
	return &TokenBucketLimiter{
		provider:        provider,
		availableTokens: maxCapacity,
		tokensPerRefill: cfg.TokensPerMinute / 10,
		maxCapacity:     maxCapacity,
		maxConcurrency:  max(cfg.MaxConcurrency, 1),
		releaseTimeout:  requestTimeout * 2,
		maxWait:         2 * time.Minute,
	}
}

func (l *TokenBucketLimiter) Acquire(ctx context.Context, tokens int, caller string) (func(), error) {
	if tokens > l.maxCapacity {
		return nil, fmt.Errorf("request needs %d tokens, more than %s bucket capacity %d", tokens, l.provider, l.maxCapacity)
	}

	start := time.Now()
	firstAttempt := true
	for {
		l.mu.Lock()
		if l.activeRequests >= l.maxConcurrency {
			l.cleanStaleAcquisitions()
		}

		hasTokens := l.availableTokens >= tokens
		hasSlot := l.activeRequests < l.maxConcurrency
		if hasTokens && hasSlot {
			l.availableTokens -= tokens
			l.activeRequests++
			acq := &acquisition{timestamp: time.Now(), caller: caller}
			l.acquisitions = append(l.acquisitions, acq)
			l.mu.Unlock()
			var once sync.Once
			return func() { once.Do(func() { l.release(acq) }) }, nil
		}

		if elapsed := time.Since(start); elapsed > l.maxWait {
			l.mu.Unlock()
			return nil, fmt.Errorf("rate limit acquisition timeout after %v (requested %d tokens, provider %s)",
				elapsed.Round(time.Second), tokens, l.provider)
		}

		if firstAttempt {
			if !hasTokens {
				l.tokenLimitHits++
				logx.Infof("RATELIMIT: %s token limit hit, waiting for refill (need %d, have %d, caller %s)",
					l.provider, tokens, l.availableTokens, caller)
			}
			if !hasSlot {
				l.concurrencyHits++
				logx.Infof("RATELIMIT: %s concurrency limit hit (active %d/%d, caller %s)",
					l.provider, l.activeRequests, l.maxConcurrency, caller)
			}
			firstAttempt = false
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck // context error propagated as-is
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *TokenBucketLimiter) release(acq *acquisition) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, a := range l.acquisitions {
		if a == acq {
			l.acquisitions = append(l.acquisitions[:i], l.acquisitions[i+1:]...)
			l.activeRequests--
			return
		}
	}
	// already reclaimed as stale
}

// cleanStaleAcquisitions reclaims slots that were never released. Called under lock.
func (l *TokenBucketLimiter) cleanStaleAcquisitions() {
	if l.releaseTimeout <= 0 {
		return
	}
	now := time.Now()
	kept := l.acquisitions[:0]
	for _, acq := range l.acquisitions {
		if now.Sub(acq.timestamp) > l.releaseTimeout {
			l.activeRequests--
			logx.Warnf("RATELIMIT: reclaimed stale slot after %v (provider %s, caller %s)", l.releaseTimeout, l.provider, acq.caller)
			continue
		}
		kept = append(kept, acq)
	}
	l.acquisitions = kept
}

func (l *TokenBucketLimiter) startRefillTimer(ctx context.Context) {
	ticker := time.NewTicker(refillInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.refill()
			}
		}
	}()
}

func (l *TokenBucketLimiter) refill() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.availableTokens = min(l.availableTokens+l.tokensPerRefill, l.maxCapacity)
}

func (l *TokenBucketLimiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Provider:        l.provider,
		AvailableTokens: l.availableTokens,
		MaxCapacity:     l.maxCapacity,
		ActiveRequests:  l.activeRequests,
		MaxConcurrency:  l.maxConcurrency,
		TokenLimitHits:  l.tokenLimitHits,
		ConcurrencyHits: l.concurrencyHits,
	}
}

// ProviderLimiterMap owns one limiter per provider and their refill goroutines.
type ProviderLimiterMap struct {
	limiters map[string]*TokenBucketLimiter
	cancel   context.CancelFunc
}

// NewProviderLimiterMap starts limiters for every configured provider. Call Stop to
// end their refill goroutines.
func NewProviderLimiterMap(ctx context.Context, configs map[string]Config, requestTimeout time.Duration) *ProviderLimiterMap {
	ctx, cancel := context.WithCancel(ctx)
	limiters := make(map[string]*TokenBucketLimiter, len(configs))
	for provider, cfg := range configs {
		limiter := NewTokenBucketLimiter(provider, cfg, requestTimeout)
		limiter.startRefillTimer(ctx)
		limiters[provider] = limiter
	}
	return &ProviderLimiterMap{limiters: limiters, cancel: cancel}
}

func (p *ProviderLimiterMap) Stop() {
	p.cancel()
}

// GetLimiter returns the limiter for provider.
func (p *ProviderLimiterMap) GetLimiter(provider string) (Limiter, error) {
	limiter, ok := p.limiters[provider]
	if !ok {
		return nil, fmt.Errorf("no rate limiter configured for provider %s", provider)
	}
	return limiter, nil
}

func (p *ProviderLimiterMap) GetAllStats() map[string]Stats {
	stats := make(map[string]Stats, len(p.limiters))
	for provider, limiter := range p.limiters {
		stats[provider] = limiter.GetStats()
	}
	return stats
}
