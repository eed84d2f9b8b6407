// Package app wires the application-scoped services: configuration, the constraint
// registry, skeleton assets, the generative backend, the router and the scorer.
// One Context is built at startup and shared by every request.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/backend/middleware/resilience/ratelimit"
	"illustrator/pkg/backend/provider"
	"illustrator/pkg/config"
	"illustrator/pkg/generator"
	"illustrator/pkg/logx"
	"illustrator/pkg/registry"
	"illustrator/pkg/router"
	"illustrator/pkg/skeleton"
	"illustrator/pkg/suitability"
	"illustrator/pkg/templates"
)

// Context owns the shared services. Everything reachable from it is immutable or
// safe for concurrent use.
type Context struct {
	ctx    context.Context //nolint:containedctx // rate limiter lifecycle
	cancel context.CancelFunc

	Config      config.Config
	Logger      *logx.Logger
	Registry    *registry.Registry
	Skeletons   *skeleton.Store
	Synthesizer backend.Synthesizer
	Router      *router.Router
	Scorer      *suitability.Scorer

	// Recorder fans out to Stats and, when enabled, the Prometheus recorder.
	Recorder metrics.Recorder
	Stats    *metrics.InternalRecorder
	// Gatherer is nil when metrics export is disabled.
	Gatherer prometheus.Gatherer

	factory *provider.Factory
}

// Option customizes New.
type Option func(*options)

type options struct {
	synthesizer backend.Synthesizer
	rawClient   provider.RawClientFunc
}

// WithSynthesizer uses synth instead of building one from the backend config.
func WithSynthesizer(synth backend.Synthesizer) Option {
	return func(o *options) { o.synthesizer = synth }
}

// WithRawClient overrides how provider clients are built; the middleware chain is
// still applied.
func WithRawClient(fn provider.RawClientFunc) Option {
	return func(o *options) { o.rawClient = fn }
}

// New builds the services for cfg. Close releases them.
func New(parent context.Context, cfg config.Config, opts ...Option) (*Context, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applyDebug(cfg.Debug)

	ctx, cancel := context.WithCancel(parent)
	c := &Context{
		ctx:    ctx,
		cancel: cancel,
		Config: cfg,
		Logger: logx.NewLogger("app"),
		Stats:  metrics.NewInternalRecorder(),
	}
	if err := c.initialize(&o); err != nil {
		c.Close()
		return nil, err
	}
	c.Logger.Info("Services initialized: %d types, backend %s", len(c.Registry.Types()), c.Synthesizer.ID())
	return c, nil
}

func (c *Context) initialize(o *options) error {
	c.initializeMetrics()

	var err error
	if c.Registry, err = registry.Load(); err != nil {
		return fmt.Errorf("failed to load constraint registry: %w", err)
	}
	if c.Skeletons, err = skeleton.NewStore(); err != nil {
		return fmt.Errorf("failed to load skeletons: %w", err)
	}
	if err := c.initializeBackend(o); err != nil {
		return err
	}

	c.Router = router.New(generator.Deps{
		Registry:    c.Registry,
		Synthesizer: c.Synthesizer,
		Skeletons:   c.Skeletons,
		Recorder:    c.Recorder,
		MaxRetries:  c.Config.Generation.Retries(),
	})
	if c.Scorer, err = suitability.New(c.Config.Suitability, c.Registry); err != nil {
		return fmt.Errorf("failed to load suitability signals: %w", err)
	}
	return nil
}

func (c *Context) initializeMetrics() {
	if !c.Config.Metrics.Enabled {
		c.Recorder = c.Stats
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Recorder = metrics.Multi(c.Stats, metrics.NewPrometheusRecorder(c.Config.Metrics.Namespace, reg))
	c.Gatherer = reg
}

func (c *Context) initializeBackend(o *options) error {
	if o.synthesizer != nil {
		c.Synthesizer = o.synthesizer
		return nil
	}
	renderer, err := templates.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load instruction templates: %w", err)
	}
	c.factory = provider.NewFactory(c.ctx, c.Config, c.Recorder)
	if o.rawClient != nil {
		c.factory.WithRawClient(o.rawClient)
	}
	if c.Synthesizer, err = c.factory.CreateSynthesizer(renderer); err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}
	return nil
}

// RateLimits reports the backend rate limiter state per provider. It is nil when the
// synthesizer was supplied through WithSynthesizer.
func (c *Context) RateLimits() map[string]ratelimit.Stats {
	if c.factory == nil {
		return nil
	}
	return c.factory.RateLimitStats()
}

// Close stops background work. It is safe to call more than once.
func (c *Context) Close() {
	if c.factory != nil {
		c.factory.Stop()
		c.factory = nil
	}
	c.cancel()
}

func applyDebug(d config.DebugConfig) {
	if d.Enabled {
		logx.SetDebug(true)
	}
	if len(d.Domains) > 0 {
		logx.SetDebugDomains(d.Domains)
	}
}
