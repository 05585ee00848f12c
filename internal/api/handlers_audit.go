// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/cache"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
)

// QueryAudit handles GET /api/v1/audit.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Recorder == nil {
		rw.NotConfigured("audit recorder")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	entries, err := h.deps.Recorder.Query(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	total, err := h.deps.Recorder.Count(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	rw.SuccessWithPagination(entries, &PaginationMeta{
		Total:   total,
		Count:   len(entries),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: int64(filter.Offset+len(entries)) < total,
	})
}

// AuditStats handles GET /api/v1/audit/stats. Results are cached briefly
// per filter.
func (h *Handler) AuditStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Recorder == nil {
		rw.NotConfigured("audit recorder")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	key := cache.GenerateKey("AuditStats", filter)
	if cached, ok := h.statsCache.Get(key); ok {
		if stats, ok := cached.(*audit.Statistics); ok {
			rw.Success(stats)
			return
		}
	}

	stats, err := h.deps.Recorder.Statistics(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.statsCache.Set(key, stats)
	rw.Success(stats)
}

// ExportAudit handles GET /api/v1/audit/export?format=json|csv. The body is
// the raw export, not the JSON envelope.
func (h *Handler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Recorder == nil {
		rw.NotConfigured("audit recorder")
		return
	}

	format, err := audit.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	exporter, err := audit.ExporterFor(format)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	// Exports are unpaginated unless a limit was asked for.
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = 0
	}

	data, err := h.deps.Recorder.Export(r.Context(), filter, format)
	if err != nil {
		if errors.Is(err, audit.ErrUnsupportedFormat) {
			rw.BadRequest(err.Error())
			return
		}
		rw.DatabaseError(err)
		return
	}

	filename := fmt.Sprintf("audit-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write audit export")
	}
}

// InvestmentHistory handles GET /api/v1/audit/investments/{investmentID}.
func (h *Handler) InvestmentHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Recorder == nil {
		rw.NotConfigured("audit recorder")
		return
	}

	limit, err := intParam(r.URL.Query().Get("limit"), 50, 1, 1000)
	if err != nil {
		rw.BadRequest("limit " + err.Error())
		return
	}

	entries, err := h.deps.Recorder.History(r.Context(), chi.URLParam(r, "investmentID"), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	rw.Success(entries)
}
