// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package sources

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
)

// ResolveOptions narrows source resolution.
type ResolveOptions struct {
	// Exclude lists sources that must not be returned unless nothing else is left.
	Exclude []string

	// PreferredFallbacks replaces the configured alternates of the primary.
	PreferredFallbacks []string
}

// BestAvailableSource returns primary when it is healthy and not excluded,
// otherwise the first healthy, non-excluded alternate. When no alternate
// qualifies it returns primary anyway; it never returns an empty name.
func (r *Registry) BestAvailableSource(ctx context.Context, primary string, opts ResolveOptions) string {
	if !slices.Contains(opts.Exclude, primary) && r.IsHealthy(ctx, primary) {
		return primary
	}

	alternates := opts.PreferredFallbacks
	if len(alternates) == 0 {
		alternates = r.fallbacks[primary]
	}
	for _, alt := range alternates {
		if alt == primary || slices.Contains(opts.Exclude, alt) {
			continue
		}
		if r.IsHealthy(ctx, alt) {
			logging.Ctx(ctx).Info().Str("primary", primary).Str("fallback", alt).Msg("Using fallback source")
			return alt
		}
	}
	return primary
}

// SourceAttempt records one failed source in a fallback chain.
type SourceAttempt struct {
	Source string
	Err    error
}

// AllSourcesFailedError is returned by ExecuteWithFallback when every
// attempted source failed.
type AllSourcesFailedError struct {
	Primary  string
	Attempts []SourceAttempt
}

// Sources returns the attempted source names, in order.
func (e *AllSourcesFailedError) Sources() []string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Source
	}
	return names
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Source, a.Err)
	}
	return fmt.Sprintf("all sources failed for %s [%s]: %s",
		e.Primary, strings.Join(e.Sources(), ", "), strings.Join(parts, "; "))
}

// Unwrap exposes every underlying error to errors.Is and errors.As.
func (e *AllSourcesFailedError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Last returns the error of the final attempted source.
func (e *AllSourcesFailedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// FallbackOptions configures ExecuteWithFallback.
type FallbackOptions struct {
	// MaxFallbacks bounds the alternates tried after the primary.
	MaxFallbacks int

	// Retry is applied to each source. Its Breaker is replaced by the
	// source's own breaker.
	Retry resilience.RetryConfig

	// OnFallback is called before moving to the next source with the source
	// that just failed, its error and the 1-based source attempt number.
	// It is best-effort.
	OnFallback func(source string, err error, attempt int)

	// NoFallback restricts execution to the primary source.
	NoFallback bool

	// Exclude lists sources never to try.
	Exclude []string

	// StopOn reports errors no alternate source can fix, such as rejected
	// credentials. The chain ends at the first such error.
	StopOn func(error) bool
}

// ExecuteWithFallback runs op against primary and then healthy alternates
// until one succeeds, making at most MaxFallbacks+1 distinct-source attempts.
// Each source is wrapped in the retry executor and guarded by its breaker.
// It returns the value and the source that produced it, or an
// *AllSourcesFailedError naming every attempted source.
func ExecuteWithFallback[T any](ctx context.Context, r *Registry, primary string, op func(ctx context.Context, source string) (T, error), opts FallbackOptions) (T, string, error) {
	var zero T
	limit := opts.MaxFallbacks + 1
	if opts.NoFallback || limit < 1 {
		limit = 1
	}

	var attempts []SourceAttempt
	attempted := append([]string(nil), opts.Exclude...)

	for len(attempts) < limit {
		source := r.BestAvailableSource(ctx, primary, ResolveOptions{Exclude: attempted})
		if opts.NoFallback {
			source = primary
		}
		if slices.Contains(attempted, source) {
			break
		}
		recordFallback(primary, source)
		attempted = append(attempted, source)

		value, err := executeOnSource(ctx, r, source, op, opts.Retry)
		if err == nil {
			if len(attempts) > 0 {
				logging.Ctx(ctx).Info().Str("primary", primary).Str("source", source).Int("failed_sources", len(attempts)).Msg("Fallback source succeeded")
			}
			return value, source, nil
		}
		attempts = append(attempts, SourceAttempt{Source: source, Err: err})

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}
		if opts.StopOn != nil && opts.StopOn(err) {
			logging.Ctx(ctx).Warn().Str("primary", primary).Str("source", source).Err(err).Msg("Source failure cannot be fixed by fallback")
			break
		}
		if len(attempts) < limit {
			notifyFallback(opts.OnFallback, source, err, len(attempts))
		}
	}

	if len(attempts) == 0 {
		return zero, "", fmt.Errorf("no source available for %s", primary)
	}
	logging.Ctx(ctx).Warn().Str("primary", primary).Strs("sources", (&AllSourcesFailedError{Attempts: attempts}).Sources()).Msg("All sources failed")
	return zero, "", &AllSourcesFailedError{Primary: primary, Attempts: attempts}
}

func executeOnSource[T any](ctx context.Context, r *Registry, source string, op func(context.Context, string) (T, error), retry resilience.RetryConfig) (T, error) {
	retry.Breaker = r.Breaker(source)
	if retry.Name == "" || retry.Name == "default" {
		retry.Name = source
	}
	return resilience.WithRetryValue(ctx, func(ctx context.Context) (T, error) {
		if err := r.Wait(ctx, source); err != nil {
			var zero T
			return zero, err
		}
		value, err := op(ctx, source)
		switch {
		case err == nil:
			r.RecordSuccess(source)
		case errors.Is(err, context.Canceled):
		default:
			r.RecordFailure(source, err)
		}
		return value, err
	}, retry)
}

func notifyFallback(fn func(string, error, int), source string, err error, attempt int) {
	if fn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn().Interface("panic", rec).Msg("OnFallback callback panicked")
		}
	}()
	fn(source, err, attempt)
}

// recordFallback exports a primary -> alternate substitution.
func recordFallback(from, to string) {
	if from != to {
		metrics.SourceFallbacks.WithLabelValues(from, to).Inc()
	}
}
