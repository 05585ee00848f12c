// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncOperation(t *testing.T) {
	before := testutil.ToFloat64(SyncInvocations.WithLabelValues("epf", "failure"))
	beforeUpdated := testutil.ToFloat64(SyncRecordsUpdated.WithLabelValues("epf"))

	RecordSyncOperation("epf", 2*time.Second, 4, 3, false)

	if got := testutil.ToFloat64(SyncInvocations.WithLabelValues("epf", "failure")); got != before+1 {
		t.Errorf("expected failure invocations %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(SyncRecordsUpdated.WithLabelValues("epf")); got != beforeUpdated+3 {
		t.Errorf("expected updated records %v, got %v", beforeUpdated+3, got)
	}
}

func TestRecordSyncOperation_DefaultLabel(t *testing.T) {
	before := testutil.ToFloat64(SyncInvocations.WithLabelValues("all", "success"))
	RecordSyncOperation("", time.Second, 1, 1, true)
	if got := testutil.ToFloat64(SyncInvocations.WithLabelValues("all", "success")); got != before+1 {
		t.Errorf("expected empty type to be labeled 'all', got %v", got)
	}
}

func TestRecordSourceHealth(t *testing.T) {
	RecordSourceHealth("nse", false, 42)
	if got := testutil.ToFloat64(SourceHealthy.WithLabelValues("nse")); got != 0 {
		t.Errorf("expected unhealthy gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(SourceUptimeScore.WithLabelValues("nse")); got != 42 {
		t.Errorf("expected uptime 42, got %v", got)
	}

	RecordSourceHealth("nse", true, 90)
	if got := testutil.ToFloat64(SourceHealthy.WithLabelValues("nse")); got != 1 {
		t.Errorf("expected healthy gauge 1, got %v", got)
	}
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook", "sync_failure", "failed"))
	RecordNotification("webhook", "sync_failure", errors.New("boom"))
	if got := testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook", "sync_failure", "failed")); got != before+1 {
		t.Errorf("expected failed notification counted, got %v", got)
	}
}
