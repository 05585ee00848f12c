// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package sources

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
)

// uptimeWeight is the weight of the newest observation in the uptime score.
const uptimeWeight = 0.1

// Config holds health registry settings.
type Config struct {
	// CheckInterval is how long a health observation stays fresh.
	// Default: 5m
	CheckInterval time.Duration

	// ProbeTimeout bounds one liveness probe.
	// Default: 5s
	ProbeTimeout time.Duration

	// UnhealthyAfter is the number of consecutive failures that mark a source unhealthy.
	// Default: 3
	UnhealthyAfter int
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.UnhealthyAfter <= 0 {
		c.UnhealthyAfter = 3
	}
	return c
}

// RateLimit is a provider's request budget.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// entry is the mutable health state of one source.
type entry struct {
	mu      sync.Mutex
	health  models.SourceHealth
	checked bool
	limiter *rate.Limiter
}

// Registry tracks per-source health, owns each source's circuit breaker and
// rate limiter, and resolves a primary source to the best available alternate.
type Registry struct {
	cfg       Config
	fallbacks map[string][]string
	breakers  *resilience.BreakerRegistry
	prober    Prober
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option customizes a Registry.
type Option func(*Registry)

// WithProber sets the liveness prober used for stale health entries.
func WithProber(p Prober) Option {
	return func(r *Registry) { r.prober = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry over the given fallback graph. Every source
// named in the graph is tracked, starting healthy.
func NewRegistry(cfg Config, fallbacks map[string][]string, breakers *resilience.BreakerRegistry, opts ...Option) *Registry {
	if breakers == nil {
		breakers = resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig())
	}
	r := &Registry{
		cfg:       cfg.withDefaults(),
		fallbacks: make(map[string][]string, len(fallbacks)),
		breakers:  breakers,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	for primary, alternates := range fallbacks {
		r.fallbacks[primary] = append([]string(nil), alternates...)
		r.Register(primary, RateLimit{})
		for _, alt := range alternates {
			r.Register(alt, RateLimit{})
		}
	}
	return r
}

// Register starts tracking a source. Registering a known source only updates
// its rate limit (when one is given).
func (r *Registry) Register(source string, limit RateLimit) {
	r.mu.Lock()
	e, ok := r.entries[source]
	if !ok {
		e = &entry{health: models.SourceHealth{Source: source, IsHealthy: true, UptimeScore: 100}}
		r.entries[source] = e
	}
	r.mu.Unlock()

	if limit.RequestsPerMinute > 0 {
		burst := limit.Burst
		if burst < 1 {
			burst = 1
		}
		e.mu.Lock()
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit.RequestsPerMinute)), burst)
		e.mu.Unlock()
	}
	if !ok {
		metrics.RecordSourceHealth(source, true, 100)
	}
}

// Sources returns the tracked source names, sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fallbacks returns the configured alternates of primary, in order.
func (r *Registry) Fallbacks(primary string) []string {
	return append([]string(nil), r.fallbacks[primary]...)
}

// Breaker returns the circuit breaker guarding source.
func (r *Registry) Breaker(source string) *resilience.Breaker {
	return r.breakers.Get(source)
}

func (r *Registry) entry(source string) *entry {
	r.mu.RLock()
	e, ok := r.entries[source]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.Register(source, RateLimit{})
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[source]
}

// Wait blocks until the source's rate limiter admits one request.
func (r *Registry) Wait(ctx context.Context, source string) error {
	e := r.entry(source)
	e.mu.Lock()
	limiter := e.limiter
	e.mu.Unlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// RecordSuccess marks one successful call or probe. A single success
// restores a source to healthy.
func (r *Registry) RecordSuccess(source string) {
	e := r.entry(source)
	e.mu.Lock()
	wasHealthy := e.health.IsHealthy
	e.health.IsHealthy = true
	e.health.ConsecutiveFailures = 0
	e.health.LastError = ""
	e.health.LastCheck = r.now()
	e.health.UptimeScore = blendUptime(e.health.UptimeScore, true)
	e.checked = true
	uptime := e.health.UptimeScore
	e.mu.Unlock()

	metrics.RecordSourceHealth(source, true, uptime)
	if !wasHealthy {
		logging.Info().Str("source", source).Msg("Source recovered")
	}
}

// RecordFailure marks one failed call or probe. The source turns unhealthy
// once UnhealthyAfter consecutive failures accumulate.
func (r *Registry) RecordFailure(source string, err error) {
	e := r.entry(source)
	e.mu.Lock()
	wasHealthy := e.health.IsHealthy
	e.health.ConsecutiveFailures++
	if err != nil {
		e.health.LastError = err.Error()
	}
	e.health.LastCheck = r.now()
	e.health.UptimeScore = blendUptime(e.health.UptimeScore, false)
	if e.health.ConsecutiveFailures >= r.cfg.UnhealthyAfter {
		e.health.IsHealthy = false
	}
	e.checked = true
	healthy := e.health.IsHealthy
	failures := e.health.ConsecutiveFailures
	uptime := e.health.UptimeScore
	e.mu.Unlock()

	metrics.RecordSourceHealth(source, healthy, uptime)
	if wasHealthy && !healthy {
		logging.Warn().Str("source", source).Int("consecutive_failures", failures).Err(err).Msg("Source marked unhealthy")
	}
}

func blendUptime(score float64, up bool) float64 {
	sample := 0.0
	if up {
		sample = 100
	}
	score = score*(1-uptimeWeight) + sample*uptimeWeight
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// Health returns the cached health of source without probing.
func (r *Registry) Health(source string) models.SourceHealth {
	e := r.entry(source)
	e.mu.Lock()
	h := e.health
	e.mu.Unlock()
	h.BreakerState = r.breakers.Get(source).State().String()
	return h
}

// All returns the cached health of every tracked source, sorted by name.
func (r *Registry) All() []models.SourceHealth {
	names := r.Sources()
	out := make([]models.SourceHealth, 0, len(names))
	for _, name := range names {
		out = append(out, r.Health(name))
	}
	return out
}

// HealthyRatio returns the fraction of tracked sources currently healthy.
// With nothing tracked it returns 1.
func (r *Registry) HealthyRatio() float64 {
	names := r.Sources()
	if len(names) == 0 {
		return 1
	}
	healthy := 0
	for _, name := range names {
		e := r.entry(name)
		e.mu.Lock()
		if e.health.IsHealthy {
			healthy++
		}
		e.mu.Unlock()
	}
	return float64(healthy) / float64(len(names))
}

// IsHealthy reports whether source is healthy, first refreshing a stale
// observation with a liveness probe when a prober is configured.
func (r *Registry) IsHealthy(ctx context.Context, source string) bool {
	e := r.entry(source)
	e.mu.Lock()
	stale := !e.checked || r.now().Sub(e.health.LastCheck) >= r.cfg.CheckInterval
	e.mu.Unlock()

	if stale && r.prober != nil {
		r.ProbeSource(ctx, source)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health.IsHealthy
}

// ProbeSource runs one liveness probe and records its outcome.
// Sources the prober has no target for are left untouched.
func (r *Registry) ProbeSource(ctx context.Context, source string) {
	if r.prober == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	err := r.prober.Probe(probeCtx, source)
	switch {
	case err == nil:
		metrics.RecordProbe(source, true)
		r.RecordSuccess(source)
	case errors.Is(err, ErrNoProbeTarget):
		return
	case ctx.Err() != nil:
		// The caller went away; the probe says nothing about the source.
		return
	default:
		metrics.RecordProbe(source, false)
		logging.Debug().Str("source", source).Err(err).Msg("Liveness probe failed")
		r.RecordFailure(source, err)
	}
}
