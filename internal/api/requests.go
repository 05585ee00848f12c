// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/validation"
)

// maxBodySize caps request bodies.
const maxBodySize = 64 * 1024

// SyncRequest is the body of POST /users/{userID}/sync. An empty body
// syncs every investment of the user.
type SyncRequest struct {
	InvestmentType string `json:"investment_type" validate:"omitempty,investment_type"`
	InvestmentID   string `json:"investment_id" validate:"omitempty,max=128"`
	Source         string `json:"source" validate:"omitempty,max=64"`
	Force          bool   `json:"force"`
	DryRun         bool   `json:"dry_run"`
	NoFallback     bool   `json:"no_fallback"`
}

func (s SyncRequest) options() models.SyncOptions {
	return models.SyncOptions{
		Force:          s.Force,
		DryRun:         s.DryRun,
		Source:         s.Source,
		NoFallback:     s.NoFallback,
		InvestmentType: models.InvestmentType(s.InvestmentType),
	}
}

// ResolveRequest is the body of POST /interventions/{id}/resolve.
type ResolveRequest struct {
	Resolution string `json:"resolution" validate:"required,max=1024"`
}

// ReleaseRequest is the body of POST /quarantine/{id}/release.
type ReleaseRequest struct {
	Operator string `json:"operator" validate:"required,max=128"`
	Note     string `json:"note" validate:"max=1024"`
	Apply    bool   `json:"apply"`
}

// decodeBody decodes and validates a JSON body into v. An empty body leaves
// v at its zero value when allowEmpty is set.
func decodeBody(rw *ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case err != nil:
		rw.BadRequest("invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// parseAuditFilter reads audit filters from the query string:
// user_id, type (repeatable), investment_type, investment_id, source,
// start, end (RFC 3339), limit, offset and order=asc.
func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.DefaultFilter()
	filter.UserID = q.Get("user_id")
	filter.InvestmentType = models.InvestmentType(q.Get("investment_type"))
	filter.InvestmentID = q.Get("investment_id")
	filter.Source = q.Get("source")
	filter.Ascending = strings.EqualFold(q.Get("order"), "asc")

	for _, t := range q["type"] {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Types = append(filter.Types, audit.Type(part))
			}
		}
	}
	if filter.InvestmentType != "" && !filter.InvestmentType.Valid() {
		return filter, fmt.Errorf("unknown investment_type %q", filter.InvestmentType)
	}

	for name, dst := range map[string]**time.Time{"start": &filter.Start, "end": &filter.End} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("%s must be RFC 3339", name)
		}
		*dst = &t
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), filter.Limit, 1, 1000); err != nil {
		return filter, fmt.Errorf("limit: %w", err)
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0, 0, 1<<30); err != nil {
		return filter, fmt.Errorf("offset: %w", err)
	}
	return filter, nil
}

func intParam(v string, def, lo, hi int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("must be between %d and %d", lo, hi)
	}
	return n, nil
}
