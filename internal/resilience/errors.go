// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package resilience

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from an upstream provider.
type HTTPError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration // Zero when the provider sent no hint
	Body       string        // Truncated response body, for logs
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.URL != "" {
		msg += " from " + e.URL
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// NewHTTPError builds an HTTPError from a response, reading the Retry-After header.
func NewHTTPError(resp *http.Response, body string) *HTTPError {
	const maxBody = 200
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	e := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(body)}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.Redacted()
	}
	e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return e
}

// ParseRetryAfter parses a Retry-After header given either as delta-seconds
// or as an HTTP date (RFC 9110). Invalid or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
