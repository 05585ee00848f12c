// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/integrity"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
	"github.com/ParagE404/fiscal-flow-sub001/internal/providers"
	"github.com/ParagE404/fiscal-flow-sub001/internal/recovery"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
	"github.com/ParagE404/fiscal-flow-sub001/internal/store"
)

var (
	// ErrUserRequired is returned when a sync is requested without a user.
	ErrUserRequired = errors.New("user ID is required")

	// ErrInvestmentNotOwned is returned by SyncSingle when the investment
	// belongs to another user.
	ErrInvestmentNotOwned = errors.New("investment does not belong to user")
)

// Config holds per-invocation sync settings.
type Config struct {
	// MaxFallbacks bounds the alternates tried after the primary source.
	MaxFallbacks int

	// FetchTimeout bounds one provider call.
	// Default: 30s
	FetchTimeout time.Duration

	// Retry is applied to each source inside the fallback chain.
	Retry resilience.RetryConfig

	// MaxRecoveryRounds caps how many times a failed fetch is re-driven by
	// recovery actions (retry, delay, fallback source).
	// Default: 5
	MaxRecoveryRounds int

	// Concurrency is how many investment types sync in parallel.
	// Default: 2
	Concurrency int

	// DryRun forces every invocation to run without persisting.
	DryRun bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxFallbacks:      2,
		FetchTimeout:      30 * time.Second,
		Retry:             resilience.DefaultRetryConfig(),
		MaxRecoveryRounds: 5,
		Concurrency:       2,
	}
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxRecoveryRounds <= 0 {
		c.MaxRecoveryRounds = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxFallbacks < 0 {
		c.MaxFallbacks = 0
	}
	return c
}

// Deps are the collaborators of a Service.
type Deps struct {
	Providers *providers.Registry
	Sources   *sources.Registry
	Selector  *recovery.Selector
	Integrity *integrity.Orchestrator
	Store     store.InvestmentStore
	Recorder  *audit.Recorder // Optional
	Notifier  notify.Notifier // Optional
}

// Service runs sync invocations. Work on one (user, investment type) pair
// is serialized; every other combination syncs concurrently.
type Service struct {
	deps Deps
	cfg  Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	locksMu   sync.Mutex
	typeLocks map[string]*sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSleep replaces the wait used for delay and retry actions.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = sleep }
}

// NewService creates a sync service.
func NewService(deps Deps, cfg Config, opts ...Option) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	s := &Service{
		deps:      deps,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		sleep:     sleepContext,
		typeLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync refreshes every investment of userID, or only those of
// opts.InvestmentType when set. Per-record failures accumulate in the
// result; an error is returned only when the user's investments cannot be
// resolved at all.
func (s *Service) Sync(ctx context.Context, userID string, opts models.SyncOptions) (*models.SyncResult, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if opts.InvestmentType != "" && !opts.InvestmentType.Valid() {
		return nil, fmt.Errorf("unknown investment type %q", opts.InvestmentType)
	}
	ctx = s.invocationContext(ctx, userID)

	investments, err := s.deps.Store.ListByUser(ctx, userID, opts.InvestmentType)
	if err != nil {
		return nil, fmt.Errorf("resolve investments for %s: %w", userID, err)
	}
	return s.run(ctx, userID, opts, investments), nil
}

// SyncSingle refreshes one investment of userID.
func (s *Service) SyncSingle(ctx context.Context, userID, investmentID string, opts models.SyncOptions) (*models.SyncResult, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	ctx = s.invocationContext(ctx, userID)

	inv, err := s.deps.Store.Find(ctx, investmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve investment %s: %w", investmentID, err)
	}
	if inv.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrInvestmentNotOwned, investmentID)
	}
	opts.InvestmentType = inv.Type
	return s.run(ctx, userID, opts, []models.Record{*inv}), nil
}

func (s *Service) invocationContext(ctx context.Context, userID string) context.Context {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	return logging.ContextWithUserID(ctx, userID)
}

func (s *Service) typeLock(userID string, t models.InvestmentType) *sync.Mutex {
	key := userID + "|" + string(t)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.typeLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.typeLocks[key] = mu
	}
	return mu
}

// run syncs the given investments grouped by type and wraps the invocation
// in audit entries, metrics and notifications.
func (s *Service) run(ctx context.Context, userID string, opts models.SyncOptions, investments []models.Record) *models.SyncResult {
	if s.cfg.DryRun {
		opts.DryRun = true
	}
	log := logging.Ctx(ctx)
	result := models.NewSyncResult(s.now())
	result.InvestmentType = string(opts.InvestmentType)

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.SyncStarted(ctx, userID, opts); err != nil {
			log.Warn().Err(err).Msg("Failed to audit sync start")
		}
	}
	log.Info().
		Str("investment_type", string(opts.InvestmentType)).
		Int("investments", len(investments)).
		Bool("dry_run", opts.DryRun).
		Bool("force", opts.Force).
		Msg("Sync started")

	groups := groupByType(investments)
	types := make([]models.InvestmentType, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	partials := make([]*models.SyncResult, len(types))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, t := range types {
		g.Go(func() error {
			partials[i] = s.syncType(gctx, userID, t, groups[t], opts)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // syncType reports failures in its result

	for _, p := range partials {
		result.Merge(p)
	}
	result.Finalize(s.now())

	metrics.RecordSyncOperation(result.InvestmentType, result.Duration, result.RecordsProcessed, result.RecordsUpdated, result.Success)
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.SyncFinished(ctx, userID, result); err != nil {
			log.Warn().Err(err).Msg("Failed to audit sync outcome")
		}
	}
	s.announce(ctx, userID, result)

	log.Info().
		Bool("success", result.Success).
		Int("processed", result.RecordsProcessed).
		Int("updated", result.RecordsUpdated).
		Int("errors", len(result.Errors)).
		Int64("duration_ms", result.DurationMS).
		Msg("Sync finished")
	return result
}

func (s *Service) announce(ctx context.Context, userID string, result *models.SyncResult) {
	data := map[string]any{
		"investment_type":   result.InvestmentType,
		"records_processed": result.RecordsProcessed,
		"records_updated":   result.RecordsUpdated,
		"duration_ms":       result.DurationMS,
	}
	switch {
	case !result.Success:
		kinds := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			if !slices.Contains(kinds, string(e.Kind)) {
				kinds = append(kinds, string(e.Kind))
			}
		}
		data["error_types"] = kinds
		notify.Send(ctx, s.deps.Notifier, notify.NewPayload(notify.KindSyncFailure, userID, data))
	case result.RecordsUpdated > 0:
		notify.Send(ctx, s.deps.Notifier, notify.NewPayload(notify.KindSyncSuccess, userID, data))
	}
}

// syncType fetches and processes every investment of one type.
func (s *Service) syncType(ctx context.Context, userID string, t models.InvestmentType, investments []models.Record, opts models.SyncOptions) *models.SyncResult {
	mu := s.typeLock(userID, t)
	mu.Lock()
	defer mu.Unlock()

	res := models.NewSyncResult(s.now())
	res.InvestmentType = string(t)
	log := logging.Ctx(ctx).With().Str("investment_type", string(t)).Logger()

	if s.deps.Selector.IsDisabled(userID, t) && !opts.Force {
		res.AddWarning(fmt.Sprintf("sync for %s is disabled pending operator action", t))
		log.Info().Msg("Skipping disabled investment type")
		return res
	}

	primary := opts.Source
	if primary == "" {
		p, ok := s.deps.Providers.Primary(t)
		if !ok {
			res.AddError(*models.NewSyncError(models.ErrorConfiguration, fmt.Sprintf("no primary source configured for %s", t)))
			return res
		}
		primary = p
	}

	fetched, source, syncErr, action := s.fetchWithRecovery(ctx, userID, t, primary, identifiersOf(investments), opts)
	if syncErr != nil {
		if action != nil {
			syncErr.Details = withAction(syncErr.Details, *action)
		}
		res.AddError(*syncErr)
		metrics.RecordSyncError(string(syncErr.Kind))
		log.Warn().Str("error_type", string(syncErr.Kind)).Str("primary", primary).Msg("Fetch failed")
		return res
	}
	res.Source = source

	byIdentifier := make(map[string]models.Record, len(fetched))
	for _, r := range fetched {
		byIdentifier[r.Identifier] = r
	}
	for i := range investments {
		s.processRecord(ctx, res, userID, &investments[i], byIdentifier, source, opts)
	}
	return res
}

// fetchWithRecovery runs the fallback chain and, when it fails, lets the
// recovery selector decide whether to wait, switch source or give up.
func (s *Service) fetchWithRecovery(ctx context.Context, userID string, t models.InvestmentType, primary string, identifiers []string, opts models.SyncOptions) ([]models.Record, string, *models.SyncError, *models.RecoveryAction) {
	escalator := s.deps.Selector.Escalator()
	current := primary
	var tried []string

	for round := 1; ; round++ {
		fetch := func(ctx context.Context, source string) ([]models.Record, error) {
			fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()
			return s.deps.Providers.Fetch(fctx, source, identifiers, providers.FetchOptions{InvestmentType: t, UserID: userID})
		}
		records, source, err := sources.ExecuteWithFallback(ctx, s.deps.Sources, current, fetch, sources.FallbackOptions{
			MaxFallbacks: s.cfg.MaxFallbacks,
			Retry:        s.cfg.Retry,
			NoFallback:   opts.NoFallback,
			StopOn:       recovery.StopsFallback,
			OnFallback: func(failed string, err error, attempt int) {
				logging.Ctx(ctx).Info().Str("source", failed).Int("attempt", attempt).Err(err).Msg("Falling back to next source")
			},
		})
		if err == nil {
			escalator.RecordOutcome(userID, t, true)
			return records, source, nil, nil
		}

		syncErr := recovery.Classify(err)
		if ctx.Err() != nil {
			return nil, "", &syncErr, nil
		}
		escalator.RecordOutcome(userID, t, false)
		tried = append(tried, attemptedSources(err, current)...)

		op := recovery.OperationContext{
			UserID:         userID,
			InvestmentType: t,
			Source:         current,
			Attempt:        round,
		}
		if failed, ok := syncErr.Details["failed_source"].(string); ok && failed != "" {
			op.Source = failed
		}
		if !opts.NoFallback {
			if fb := s.deps.Sources.BestAvailableSource(ctx, primary, sources.ResolveOptions{Exclude: tried}); !slices.Contains(tried, fb) {
				op.HasFallback = true
				op.AvailableFallback = fb
			}
		}
		action := s.deps.Selector.Select(ctx, syncErr, op)
		logging.Ctx(ctx).Info().
			Str("error_type", string(syncErr.Kind)).
			Str("action", string(action.Kind)).
			Int("round", round).
			Str("reason", action.Reason).
			Msg("Recovery action")

		if round >= s.cfg.MaxRecoveryRounds {
			return nil, "", &syncErr, &action
		}
		switch action.Kind {
		case models.ActionRetry, models.ActionDelay:
			if err := s.sleep(ctx, action.Delay); err != nil {
				return nil, "", &syncErr, &action
			}
		case models.ActionFallbackSource:
			if opts.NoFallback || action.FallbackSource == "" {
				return nil, "", &syncErr, &action
			}
			current = action.FallbackSource
		default:
			return nil, "", &syncErr, &action
		}
	}
}

// processRecord gates one fetched value through the integrity orchestrator.
func (s *Service) processRecord(ctx context.Context, res *models.SyncResult, userID string, inv *models.Record, fetched map[string]models.Record, source string, opts models.SyncOptions) {
	res.RecordsProcessed++

	got, ok := fetched[inv.Identifier]
	if !ok {
		e := models.NewSyncError(models.ErrorDataNotFound, fmt.Sprintf("%s returned no data for %s", source, inv.Identifier)).
			WithDetail("investment_id", inv.InvestmentID)
		res.AddError(*e)
		metrics.RecordSyncError(string(e.Kind))
		return
	}

	next := mergeRecord(inv, got)
	out, err := s.deps.Integrity.ValidateAndProcessUpdate(ctx, integrity.CheckRequest{
		UserID:  userID,
		Record:  &next,
		Current: inv,
		Source:  source,
	}, opts.DryRun)
	if err != nil {
		e := models.NewSyncError(models.ErrorDatabase, err.Error()).WithDetail("investment_id", inv.InvestmentID)
		res.AddError(*e)
		metrics.RecordSyncError(string(e.Kind))
		return
	}

	check := out.Check
	switch {
	case !check.Validation.IsValid:
		e := models.NewSyncError(models.ErrorDataValidationFailed, fmt.Sprintf("%s failed validation", inv.InvestmentID)).
			WithDetail("investment_id", inv.InvestmentID).
			WithDetail("errors", check.Validation.Errors)
		res.AddError(*e)
		metrics.RecordSyncError(string(e.Kind))
	case check.Quarantine != nil:
		res.AddWarning(fmt.Sprintf("%s quarantined: %s", inv.InvestmentID, check.Quarantine.Reason))
	case out.Committed:
		res.RecordsUpdated++
	}
	for _, w := range check.Warnings {
		res.AddWarning(fmt.Sprintf("%s: %s", inv.InvestmentID, w))
	}
}

// mergeRecord overlays the fetched fields on the stored investment. Fields
// the provider does not report (units held, SIP amount) are kept. A new NAV
// revalues the holding as units × NAV; without units the old value is dropped.
func mergeRecord(inv *models.Record, fetched models.Record) models.Record {
	next := inv.Clone()
	if next.Fields == nil {
		next.Fields = make(map[string]float64, len(fetched.Fields))
	}
	for k, v := range fetched.Fields {
		next.Fields[k] = v
	}
	if nav, ok := fetched.Fields[models.FieldNAV]; ok {
		if _, reported := fetched.Fields[models.FieldCurrentValue]; !reported {
			if units, ok := next.Fields[models.FieldUnits]; ok && units > 0 {
				next.Fields[models.FieldCurrentValue] = units * nav
			} else {
				delete(next.Fields, models.FieldCurrentValue)
			}
		}
	}
	next.Status = fetched.Status
	next.AsOf = fetched.AsOf
	next.Source = fetched.Source
	return next
}

func groupByType(investments []models.Record) map[models.InvestmentType][]models.Record {
	out := make(map[models.InvestmentType][]models.Record)
	for _, inv := range investments {
		out[inv.Type] = append(out[inv.Type], inv)
	}
	return out
}

func identifiersOf(investments []models.Record) []string {
	out := make([]string, 0, len(investments))
	for _, inv := range investments {
		if inv.Identifier != "" && !slices.Contains(out, inv.Identifier) {
			out = append(out, inv.Identifier)
		}
	}
	return out
}

func attemptedSources(err error, fallback string) []string {
	var allFailed *sources.AllSourcesFailedError
	if errors.As(err, &allFailed) {
		return allFailed.Sources()
	}
	return []string{fallback}
}

func withAction(details map[string]any, action models.RecoveryAction) map[string]any {
	if details == nil {
		details = make(map[string]any)
	}
	details["recovery_action"] = string(action.Kind)
	details["recovery_reason"] = action.Reason
	if action.InterventionID != "" {
		details["intervention_id"] = action.InterventionID
	}
	if action.Escalated {
		details["escalated"] = true
	}
	return details
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
