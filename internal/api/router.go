// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/cache"
	"github.com/ParagE404/fiscal-flow-sub001/internal/integrity"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/recovery"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
)

// statsCacheTTL bounds how stale /audit/stats may be.
const statsCacheTTL = 30 * time.Second

// Syncer runs sync invocations. *syncer.Service satisfies it.
type Syncer interface {
	Sync(ctx context.Context, userID string, opts models.SyncOptions) (*models.SyncResult, error)
	SyncSingle(ctx context.Context, userID, investmentID string, opts models.SyncOptions) (*models.SyncResult, error)
}

// Deps are the components exposed over HTTP. Nil components answer 503.
type Deps struct {
	Syncer    Syncer
	Selector  *recovery.Selector
	Integrity *integrity.Orchestrator
	Recorder  *audit.Recorder
	Sources   *sources.Registry
}

// Handler serves the admin API.
type Handler struct {
	deps       Deps
	statsCache *cache.Cache
}

// NewHandler creates the admin API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:       deps,
		statsCache: cache.New(statsCacheTTL),
	}
}

// Router builds the chi router with the middleware stack and every route.
func (h *Handler) Router(cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestContext)
	r.Use(corsMiddleware(cfg))

	r.Get("/health/live", h.HealthLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(cfg))
		r.Use(instrument)

		r.Get("/sources", h.SourceHealth)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/sync", h.TriggerSync)
			r.Post("/sync/{investmentType}/enable", h.EnableSync)
			r.Get("/interventions", h.ListInterventions)
			r.Post("/interventions/{id}/resolve", h.ResolveIntervention)
		})

		r.Route("/quarantine", func(r chi.Router) {
			r.Get("/", h.ListQuarantine)
			r.Post("/{id}/release", h.ReleaseQuarantine)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.QueryAudit)
			r.Get("/stats", h.AuditStats)
			r.Get("/export", h.ExportAudit)
			r.Get("/investments/{investmentID}", h.InvestmentHistory)
		})
	})

	return r
}
