// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ParagE404/fiscal-flow-sub001/internal/integrity"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/recovery"
)

// ListInterventions handles GET /api/v1/users/{userID}/interventions.
// status=pending limits the list to unresolved interventions.
func (h *Handler) ListInterventions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Selector == nil {
		rw.NotConfigured("recovery selector")
		return
	}

	userID := chi.URLParam(r, "userID")
	queue := h.deps.Selector.Queue()

	var items []models.Intervention
	switch status := r.URL.Query().Get("status"); status {
	case "":
		items = queue.List(userID)
	case string(models.InterventionPending):
		items = queue.Pending(userID)
	default:
		rw.BadRequest("status must be empty or pending")
		return
	}
	if items == nil {
		items = []models.Intervention{}
	}
	rw.Success(items)
}

// ResolveIntervention handles POST /api/v1/users/{userID}/interventions/{id}/resolve.
func (h *Handler) ResolveIntervention(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Selector == nil {
		rw.NotConfigured("recovery selector")
		return
	}

	var req ResolveRequest
	if !decodeBody(rw, r, &req, false) {
		return
	}

	userID := chi.URLParam(r, "userID")
	item, err := h.deps.Selector.Resolve(userID, chi.URLParam(r, "id"), req.Resolution)
	switch {
	case errors.Is(err, recovery.ErrInterventionNotFound):
		rw.NotFound("intervention not found")
		return
	case errors.Is(err, recovery.ErrInterventionResolved):
		rw.Conflict("intervention already resolved")
		return
	case err != nil:
		rw.InternalError("failed to resolve intervention", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("user_id", userID).
		Str("intervention_id", item.ID).
		Msg("Intervention resolved")
	rw.Success(item)
}

// ListQuarantine handles GET /api/v1/quarantine.
func (h *Handler) ListQuarantine(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Integrity == nil {
		rw.NotConfigured("integrity orchestrator")
		return
	}

	filter := integrity.QuarantineFilter{UserID: r.URL.Query().Get("user_id")}
	if v := r.URL.Query().Get("include_released"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			rw.BadRequest("include_released must be a boolean")
			return
		}
		filter.IncludeReleased = include
	}

	entries, err := h.deps.Integrity.Quarantine().List(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if entries == nil {
		entries = []integrity.QuarantineEntry{}
	}
	rw.Success(entries)
}

// ReleaseQuarantine handles POST /api/v1/quarantine/{id}/release. With
// apply set the quarantined values are committed; otherwise the record is
// only marked as reviewed.
func (h *Handler) ReleaseQuarantine(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Integrity == nil {
		rw.NotConfigured("integrity orchestrator")
		return
	}

	var req ReleaseRequest
	if !decodeBody(rw, r, &req, false) {
		return
	}

	release, err := h.deps.Integrity.Release(r.Context(), chi.URLParam(r, "id"), req.Operator, req.Note, req.Apply)
	switch {
	case errors.Is(err, integrity.ErrQuarantineNotFound):
		rw.NotFound("quarantined record not found")
	case errors.Is(err, integrity.ErrAlreadyReleased):
		rw.Conflict("quarantined record already released")
	case err != nil:
		rw.InternalError("failed to release quarantined record", err)
	default:
		rw.Success(release)
	}
}
