// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
)

// Classify maps a raw failure onto the sync error taxonomy. It is a pure
// function: the same error always yields the same classification.
//
// Checks run in a fixed order: typed errors first (already-classified
// errors, exhausted fallbacks, open circuits, socket errno values,
// deadlines, HTTP status codes), then message patterns. Among the patterns
// the validation check precedes the parse check because "invalid" is the
// more specific signal.
func Classify(err error) models.SyncError {
	if err == nil {
		return models.SyncError{Kind: models.ErrorUnknown, Message: "unknown error"}
	}

	var syncErr *models.SyncError
	if errors.As(err, &syncErr) {
		out := *syncErr
		if !out.Kind.Valid() {
			out.Kind = models.ErrorUnknown
		}
		return out
	}

	var allFailed *sources.AllSourcesFailedError
	if errors.As(err, &allFailed) {
		return classifyAttempts(allFailed)
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		out := newSyncError(models.ErrorServiceUnavailable, err)
		var openErr *resilience.CircuitOpenError
		if errors.As(err, &openErr) {
			out.Details = withDetail(out.Details, "circuit", openErr.Name)
		}
		return out
	}

	if kind, code, ok := classifyErrno(err); ok {
		out := newSyncError(kind, err)
		out.Code = code
		return out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newSyncError(models.ErrorNetworkTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return newSyncError(models.ErrorNetworkTimeout, err)
		}
		out := newSyncError(models.ErrorNetwork, err)
		out.Code = "ENOTFOUND"
		return out
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newSyncError(models.ErrorNetworkTimeout, err)
	}

	var httpErr *resilience.HTTPError
	if errors.As(err, &httpErr) {
		if out, ok := classifyHTTP(httpErr, err); ok {
			return out
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newSyncError(models.ErrorNetwork, err)
	}

	return newSyncError(classifyMessage(strings.ToLower(err.Error())), err)
}

// classifyAttempts classifies an exhausted fallback chain by its most
// severe attempt: the first structural failure wins, otherwise the last
// source's error does.
func classifyAttempts(allFailed *sources.AllSourcesFailedError) models.SyncError {
	if len(allFailed.Attempts) == 0 {
		return newSyncError(models.ErrorServiceUnavailable, allFailed)
	}
	picked := allFailed.Attempts[len(allFailed.Attempts)-1]
	out := Classify(picked.Err)
	for _, a := range allFailed.Attempts {
		if c := Classify(a.Err); IsStructural(c.Kind) {
			picked, out = a, c
			break
		}
	}
	if out.Kind == models.ErrorUnknown {
		out.Kind = models.ErrorServiceUnavailable
	}
	out.Message = allFailed.Error()
	out.Details = withDetail(out.Details, "sources", allFailed.Sources())
	out.Details["failed_source"] = picked.Source
	return out
}

// IsStructural reports kinds that retrying or switching source cannot fix.
func IsStructural(kind models.ErrorKind) bool {
	switch kind {
	case models.ErrorAuthenticationFailed, models.ErrorAuthorizationFailed,
		models.ErrorCredential, models.ErrorConfiguration:
		return true
	}
	return false
}

// StopsFallback reports whether err should end a fallback chain. It is the
// StopOn predicate of sources.FallbackOptions.
func StopsFallback(err error) bool {
	return IsStructural(Classify(err).Kind)
}

// ClassifyPtr is Classify returning a pointer, convenient for SyncResult.AddError chains.
func ClassifyPtr(err error) *models.SyncError {
	out := Classify(err)
	return &out
}

func newSyncError(kind models.ErrorKind, err error) models.SyncError {
	return models.SyncError{Kind: kind, Message: err.Error()}
}

func withDetail(details map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[key] = value
	return out
}

func classifyErrno(err error) (models.ErrorKind, string, bool) {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return models.ErrorNetwork, "ECONNREFUSED", true
	case errors.Is(err, syscall.EHOSTUNREACH):
		return models.ErrorNetwork, "EHOSTUNREACH", true
	case errors.Is(err, syscall.ENETUNREACH):
		return models.ErrorNetwork, "ENETUNREACH", true
	case errors.Is(err, syscall.ECONNRESET):
		return models.ErrorNetwork, "ECONNRESET", true
	case errors.Is(err, syscall.ETIMEDOUT):
		return models.ErrorNetworkTimeout, "ETIMEDOUT", true
	}
	return "", "", false
}

// classifyHTTP maps status codes. Codes without a dedicated kind fall
// through to message classification.
func classifyHTTP(httpErr *resilience.HTTPError, err error) (models.SyncError, bool) {
	var kind models.ErrorKind
	switch code := httpErr.StatusCode; {
	case code == http.StatusUnauthorized:
		kind = models.ErrorAuthenticationFailed
	case code == http.StatusForbidden:
		kind = models.ErrorAuthorizationFailed
	case code == http.StatusNotFound:
		kind = models.ErrorNotFound
	case code == http.StatusRequestTimeout:
		kind = models.ErrorNetworkTimeout
	case code == http.StatusTooManyRequests:
		kind = models.ErrorRateLimitExceeded
	case code >= http.StatusInternalServerError:
		kind = models.ErrorServiceUnavailable
	default:
		return models.SyncError{}, false
	}

	out := newSyncError(kind, err)
	out.Code = strconv.Itoa(httpErr.StatusCode)
	out.Details = map[string]any{"status": httpErr.StatusCode}
	if kind == models.ErrorRateLimitExceeded && httpErr.RetryAfter > 0 {
		out.Details["retry_after"] = int(httpErr.RetryAfter.Seconds())
	}
	return out, true
}

var messageRules = []struct {
	kind     models.ErrorKind
	patterns []string
}{
	{models.ErrorNetwork, []string{"connection refused", "econnrefused", "no such host", "enotfound", "host unreachable", "network is unreachable"}},
	{models.ErrorNetworkTimeout, []string{"timeout", "timed out", "etimedout"}},
	{models.ErrorAuthenticationFailed, []string{"unauthorized", "authentication failed"}},
	{models.ErrorAuthorizationFailed, []string{"forbidden", "permission denied"}},
	{models.ErrorRateLimitExceeded, []string{"rate limit", "too many requests"}},
	{models.ErrorCredential, []string{"credential"}},
	{models.ErrorConfiguration, []string{"configuration", "not configured"}},
	{models.ErrorDatabase, []string{"database", "connection"}},
	{models.ErrorDataValidationFailed, []string{"validation", "invalid"}},
	{models.ErrorDataParsingFailed, []string{"parse", "format"}},
	{models.ErrorDataNotFound, []string{"not found", "no data"}},
}

func classifyMessage(msg string) models.ErrorKind {
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return models.ErrorUnknown
}
