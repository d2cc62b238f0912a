// Package router selects a provider/model pair for each prompt and walks the
// category fallback chain until a provider answers.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgeworks/forge-coordinator/internal/classify"
	"github.com/forgeworks/forge-coordinator/internal/config"
	"github.com/forgeworks/forge-coordinator/internal/metrics"
	"github.com/forgeworks/forge-coordinator/internal/policy"
	"github.com/forgeworks/forge-coordinator/internal/provider"
)

// Ledger is the usage gate the router consults and records against
type Ledger interface {
	Exhausted(providerName, model string) bool
	RecordUse(ctx context.Context, providerName, model string)
}

// HealthRecorder receives the outcome of every provider attempt
type HealthRecorder interface {
	Record(provider string, callErr error)
}

// Result is a successful route
type Result struct {
	Text       string
	Provider   string
	Model      string
	Category   classify.Category
	TokensUsed int
}

// ExhaustedError reports that every candidate for the category was either
// quota-exhausted or failed. LastErr is the last adapter error seen, for
// diagnostics; it is nil when every candidate was skipped on quota.
type ExhaustedError struct {
	Category classify.Category
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("all %s providers exhausted", e.Category)
	}
	return fmt.Sprintf("all %s providers exhausted, last error: %v", e.Category, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Router walks candidates in policy order, gated by the usage ledger
type Router struct {
	table   *policy.Table
	ledger  Ledger
	clients map[string]provider.Client
	health  HealthRecorder
	logger  *slog.Logger

	mu           sync.RWMutex
	pinned       *policy.Candidate
	autoFallback bool
}

// Option configures a Router
type Option func(*Router)

// WithHealth attaches an outcome recorder for provider attempts
func WithHealth(h HealthRecorder) Option {
	return func(r *Router) { r.health = h }
}

// New creates a router. The pinned override and auto-fallback flag seed from
// config and remain operator-settable at runtime.
func New(table *policy.Table, ledger Ledger, clients map[string]provider.Client, cfg *config.RoutingConfig, logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		table:        table,
		ledger:       ledger,
		clients:      clients,
		logger:       logger,
		autoFallback: cfg.AutoFallback,
	}
	if cfg.Pinned.Provider != "" {
		r.pinned = &policy.Candidate{Provider: cfg.Pinned.Provider, Model: cfg.Pinned.Model}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pin sets the operator override tried before category-based fallback
func (r *Router) Pin(providerName, model string) error {
	if _, ok := r.clients[providerName]; !ok {
		return fmt.Errorf("unknown provider: %s", providerName)
	}
	if model == "" {
		return fmt.Errorf("model is required")
	}
	r.mu.Lock()
	r.pinned = &policy.Candidate{Provider: providerName, Model: model}
	r.mu.Unlock()
	return nil
}

// Unpin clears the operator override
func (r *Router) Unpin() {
	r.mu.Lock()
	r.pinned = nil
	r.mu.Unlock()
}

// Pinned returns the current override, if any
func (r *Router) Pinned() (policy.Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pinned == nil {
		return policy.Candidate{}, false
	}
	return *r.pinned, true
}

// SetAutoFallback toggles category fallback after a pinned-attempt failure
func (r *Router) SetAutoFallback(on bool) {
	r.mu.Lock()
	r.autoFallback = on
	r.mu.Unlock()
}

// AutoFallback reports whether fallback after a pinned failure is enabled
func (r *Router) AutoFallback() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoFallback
}

// Route classifies the prompt and returns the first successful candidate's
// response. Usage is recorded exactly once, against the candidate that
// answered. A pinned pair is always attempted first, live, regardless of its
// own quota state; the fallback chain is quota-gated.
func (r *Router) Route(ctx context.Context, prompt, role string) (*Result, error) {
	category := classify.Prompt(prompt)
	pinned, hasPin := r.Pinned()

	depth := 0
	var lastErr error

	if hasPin {
		depth++
		resp, err := r.attempt(ctx, pinned, prompt, role)
		if err == nil {
			r.ledger.RecordUse(ctx, pinned.Provider, pinned.Model)
			metrics.RouteRequests.WithLabelValues(string(category), "ok").Inc()
			metrics.FallbackDepth.Observe(float64(depth))
			return r.result(resp, pinned, category), nil
		}
		lastErr = err
		r.logger.Warn("pinned provider failed", "candidate", pinned.String(), "error", err)

		if !r.AutoFallback() {
			metrics.RouteRequests.WithLabelValues(string(category), "exhausted").Inc()
			return nil, &ExhaustedError{Category: category, LastErr: lastErr}
		}
	}

	for _, c := range r.table.Candidates(category) {
		if hasPin && c == pinned {
			// already attempted live
			continue
		}
		depth++
		if r.ledger.Exhausted(c.Provider, c.Model) {
			r.logger.Debug("skipping exhausted candidate", "candidate", c.String(), "category", category)
			continue
		}

		resp, err := r.attempt(ctx, c, prompt, role)
		if err != nil {
			lastErr = err
			r.logger.Warn("candidate failed", "candidate", c.String(), "category", category, "error", err)
			continue
		}

		r.ledger.RecordUse(ctx, c.Provider, c.Model)
		metrics.RouteRequests.WithLabelValues(string(category), "ok").Inc()
		metrics.FallbackDepth.Observe(float64(depth))
		return r.result(resp, c, category), nil
	}

	metrics.RouteRequests.WithLabelValues(string(category), "exhausted").Inc()
	return nil, &ExhaustedError{Category: category, LastErr: lastErr}
}

// attempt invokes one candidate's adapter. No retries, no usage recording.
func (r *Router) attempt(ctx context.Context, c policy.Candidate, prompt, role string) (*provider.Response, error) {
	client, ok := r.clients[c.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter for provider %s", c.Provider)
	}

	start := time.Now()
	resp, err := client.Send(ctx, &provider.Request{Prompt: prompt, Role: role, Model: c.Model})
	metrics.ProviderLatency.WithLabelValues(c.Provider).Observe(time.Since(start).Seconds())
	if r.health != nil {
		r.health.Record(c.Provider, err)
	}
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(c.Provider, "error").Inc()
		return nil, err
	}
	metrics.ProviderCalls.WithLabelValues(c.Provider, "ok").Inc()
	return resp, nil
}

func (r *Router) result(resp *provider.Response, c policy.Candidate, category classify.Category) *Result {
	model := resp.Model
	if model == "" {
		model = c.Model
	}
	return &Result{
		Text:       resp.Content,
		Provider:   c.Provider,
		Model:      model,
		Category:   category,
		TokensUsed: resp.TokensUsed,
	}
}

// Models returns every model reachable through the candidate tables
func (r *Router) Models() []string {
	return r.table.Models()
}

// Primary returns the globally preferred model
func (r *Router) Primary() string {
	return r.table.Primary()
}
