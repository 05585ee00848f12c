// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
)

func TestClassify(t *testing.T) {
	connRefused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{"connection refused errno", connRefused, models.ErrorNetwork},
		{"wrapped connection refused", fmt.Errorf("fetch quotes: %w", connRefused), models.ErrorNetwork},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example"}, models.ErrorNetwork},
		{"dns timeout", &net.DNSError{Err: "i/o timeout", Name: "api.example", IsTimeout: true}, models.ErrorNetworkTimeout},
		{"deadline", context.DeadlineExceeded, models.ErrorNetworkTimeout},
		{"timeout message", errors.New("request timed out"), models.ErrorNetworkTimeout},
		{"http 401", &resilience.HTTPError{StatusCode: 401}, models.ErrorAuthenticationFailed},
		{"http 403", &resilience.HTTPError{StatusCode: 403}, models.ErrorAuthorizationFailed},
		{"http 404", &resilience.HTTPError{StatusCode: 404}, models.ErrorNotFound},
		{"http 408", &resilience.HTTPError{StatusCode: 408}, models.ErrorNetworkTimeout},
		{"http 429", &resilience.HTTPError{StatusCode: 429}, models.ErrorRateLimitExceeded},
		{"http 500", &resilience.HTTPError{StatusCode: 500}, models.ErrorServiceUnavailable},
		{"http 503", &resilience.HTTPError{StatusCode: 503}, models.ErrorServiceUnavailable},
		{"http 400 with body", &resilience.HTTPError{StatusCode: 400, Body: "invalid symbol"}, models.ErrorDataValidationFailed},
		{"circuit open", &resilience.CircuitOpenError{Name: "nse"}, models.ErrorServiceUnavailable},
		{"database message", errors.New("database is locked"), models.ErrorDatabase},
		{"connection message", errors.New("lost connection to store"), models.ErrorDatabase},
		{"validation message", errors.New("validation failed for nav"), models.ErrorDataValidationFailed},
		{"invalid beats parse", errors.New("cannot parse invalid number"), models.ErrorDataValidationFailed},
		{"parse message", errors.New("failed to parse response"), models.ErrorDataParsingFailed},
		{"format message", errors.New("unexpected format"), models.ErrorDataParsingFailed},
		{"credential message", errors.New("credential expired"), models.ErrorCredential},
		{"configuration message", errors.New("provider not configured"), models.ErrorConfiguration},
		{"not found message", errors.New("scheme not found"), models.ErrorDataNotFound},
		{"anything else", errors.New("boom"), models.ErrorUnknown},
		{"nil", nil, models.ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err).Kind; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_RateLimitCapturesRetryAfter(t *testing.T) {
	got := Classify(&resilience.HTTPError{StatusCode: 429, RetryAfter: 60 * time.Second})
	if got.Kind != models.ErrorRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %s", got.Kind)
	}
	if secs, ok := got.RetryAfterSeconds(); !ok || secs != 60 {
		t.Errorf("expected retry_after 60, got %d (ok=%v)", secs, ok)
	}
	if got.Code != "429" {
		t.Errorf("expected code 429, got %q", got.Code)
	}
}

func TestClassify_SyncErrorPassesThrough(t *testing.T) {
	in := models.NewSyncError(models.ErrorCredential, "EPFO password rejected").WithDetail("portal", "epfo")
	got := Classify(fmt.Errorf("sync epf: %w", in))
	if got.Kind != models.ErrorCredential || got.Message != "EPFO password rejected" {
		t.Errorf("expected pass-through, got %+v", got)
	}
}

func TestClassify_AllSourcesFailed(t *testing.T) {
	tests := []struct {
		name string
		last error
		want models.ErrorKind
	}{
		{"last error classified", &resilience.HTTPError{StatusCode: 429}, models.ErrorRateLimitExceeded},
		{"unknown becomes unavailable", errors.New("boom"), models.ErrorServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &sources.AllSourcesFailedError{
				Primary: "amfi",
				Attempts: []sources.SourceAttempt{
					{Source: "amfi", Err: errors.New("connection refused")},
					{Source: "mfapi", Err: tt.last},
				},
			}
			got := Classify(err)
			if got.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Kind)
			}
			names, _ := got.Details["sources"].([]string)
			if len(names) != 2 || names[0] != "amfi" || names[1] != "mfapi" {
				t.Errorf("expected both sources in details, got %v", got.Details["sources"])
			}
		})
	}
}

func TestClassify_AllSourcesFailedPrefersStructuralAttempt(t *testing.T) {
	err := &sources.AllSourcesFailedError{
		Primary: "amfi",
		Attempts: []sources.SourceAttempt{
			{Source: "amfi", Err: &resilience.HTTPError{StatusCode: 401}},
			{Source: "mfapi", Err: &resilience.HTTPError{StatusCode: 503}},
		},
	}
	got := Classify(err)
	if got.Kind != models.ErrorAuthenticationFailed {
		t.Errorf("expected AUTHENTICATION_FAILED, got %s", got.Kind)
	}
	if got.Details["failed_source"] != "amfi" {
		t.Errorf("expected failed_source amfi, got %v", got.Details["failed_source"])
	}

	err.Attempts[0].Err = errors.New("connection refused")
	if got := Classify(err); got.Kind != models.ErrorServiceUnavailable || got.Details["failed_source"] != "mfapi" {
		t.Errorf("expected the last attempt to decide, got %s from %v", got.Kind, got.Details["failed_source"])
	}
}

func TestStopsFallback(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&resilience.HTTPError{StatusCode: 401}, true},
		{&resilience.HTTPError{StatusCode: 403}, true},
		{errors.New("source not configured"), true},
		{errors.New("invalid credentials for account"), true},
		{&resilience.HTTPError{StatusCode: 503}, false},
		{&resilience.HTTPError{StatusCode: 429}, false},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := StopsFallback(tt.err); got != tt.want {
			t.Errorf("StopsFallback(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}

func TestClassify_IsPure(t *testing.T) {
	err := &resilience.HTTPError{StatusCode: 429, RetryAfter: 30 * time.Second}
	a, b := Classify(err), Classify(err)
	if a.Kind != b.Kind || a.Message != b.Message || a.Details["retry_after"] != b.Details["retry_after"] {
		t.Errorf("expected identical classifications, got %+v and %+v", a, b)
	}
}
