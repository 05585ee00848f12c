// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/store"
	"github.com/ParagE404/fiscal-flow-sub001/internal/syncer"
)

// HealthLive reports that the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// SourceHealthResponse lists per-source health and the healthy share.
type SourceHealthResponse struct {
	Sources      []models.SourceHealth `json:"sources"`
	HealthyRatio float64               `json:"healthy_ratio"`
}

// SourceHealth handles GET /api/v1/sources.
func (h *Handler) SourceHealth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Sources == nil {
		rw.NotConfigured("source registry")
		return
	}
	rw.Success(SourceHealthResponse{
		Sources:      h.deps.Sources.All(),
		HealthyRatio: h.deps.Sources.HealthyRatio(),
	})
}

// TriggerSync handles POST /api/v1/users/{userID}/sync. Failed syncs are
// still 200 responses; the result carries the per-record errors.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Syncer == nil {
		rw.NotConfigured("sync service")
		return
	}

	userID := chi.URLParam(r, "userID")
	var req SyncRequest
	if !decodeBody(rw, r, &req, true) {
		return
	}

	ctx := logging.ContextWithUserID(r.Context(), userID)
	var (
		result *models.SyncResult
		err    error
	)
	if req.InvestmentID != "" {
		result, err = h.deps.Syncer.SyncSingle(ctx, userID, req.InvestmentID, req.options())
	} else {
		result, err = h.deps.Syncer.Sync(ctx, userID, req.options())
	}

	switch {
	case err == nil:
		rw.Success(result)
	case errors.Is(err, store.ErrRecordNotFound), errors.Is(err, syncer.ErrInvestmentNotOwned):
		rw.NotFound("investment not found")
	case errors.Is(err, syncer.ErrUserRequired):
		rw.BadRequest(err.Error())
	default:
		rw.InternalError("sync failed", err)
	}
}

// EnableSync handles POST /api/v1/users/{userID}/sync/{investmentType}/enable.
func (h *Handler) EnableSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Selector == nil {
		rw.NotConfigured("recovery selector")
		return
	}

	userID := chi.URLParam(r, "userID")
	t := models.InvestmentType(chi.URLParam(r, "investmentType"))
	if !t.Valid() {
		rw.BadRequest("unknown investment type")
		return
	}

	wasDisabled := h.deps.Selector.IsDisabled(userID, t)
	h.deps.Selector.Enable(userID, t)

	if h.deps.Recorder != nil && wasDisabled {
		key := "sync_enabled." + string(t)
		if err := h.deps.Recorder.ConfigChanged(r.Context(), userID, key, false, true); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("Failed to audit sync re-enable")
		}
	}

	rw.Success(map[string]any{
		"user_id":         userID,
		"investment_type": t,
		"was_disabled":    wasDisabled,
		"enabled":         true,
	})
}
