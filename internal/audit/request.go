// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"context"
	"net/http"
	"strings"
)

// RequestInfo is the client metadata attached to entries recorded while
// serving an HTTP request.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// ContextWithRequestInfo attaches request metadata to ctx.
func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request metadata on ctx, if any.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo) //nolint:errcheck // zero value when absent
	return info
}

// RequestInfoFromRequest extracts client metadata from an HTTP request.
// X-Forwarded-For wins over X-Real-IP, which wins over RemoteAddr.
func RequestInfoFromRequest(r *http.Request) RequestInfo {
	ip := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		ip = strings.TrimSpace(first)
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = xri
	}

	return RequestInfo{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
