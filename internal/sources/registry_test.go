// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testGraph() map[string][]string {
	return map[string][]string{
		"yahoo_finance": {"nse", "bse"},
		"nse":           {"yahoo_finance", "bse"},
		"bse":           {"nse", "yahoo_finance"},
		"epfo":          {},
	}
}

func markUnhealthy(t *testing.T, r *Registry, source string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		r.RecordFailure(source, errors.New("connection refused"))
	}
	if r.Health(source).IsHealthy {
		t.Fatalf("expected %s to be unhealthy after 3 failures", source)
	}
}

func TestRegistry_UnhealthyAfterThreeConsecutiveFailures(t *testing.T) {
	r := NewRegistry(Config{}, testGraph(), nil)

	r.RecordFailure("nse", errors.New("boom"))
	r.RecordFailure("nse", errors.New("boom"))
	if h := r.Health("nse"); !h.IsHealthy || h.ConsecutiveFailures != 2 {
		t.Fatalf("expected healthy with 2 failures, got %+v", h)
	}

	r.RecordFailure("nse", errors.New("still down"))
	h := r.Health("nse")
	if h.IsHealthy {
		t.Fatal("expected nse unhealthy after third failure")
	}
	if h.LastError != "still down" {
		t.Errorf("expected last error 'still down', got %q", h.LastError)
	}
	if h.UptimeScore >= 100 {
		t.Errorf("expected uptime score to drop, got %v", h.UptimeScore)
	}

	r.RecordSuccess("nse")
	h = r.Health("nse")
	if !h.IsHealthy || h.ConsecutiveFailures != 0 || h.LastError != "" {
		t.Errorf("expected one success to restore health, got %+v", h)
	}
	if h.BreakerState != "CLOSED" {
		t.Errorf("expected breaker state CLOSED, got %q", h.BreakerState)
	}
}

func TestRegistry_UptimeScoreStaysInRange(t *testing.T) {
	r := NewRegistry(Config{}, testGraph(), nil)
	for i := 0; i < 200; i++ {
		r.RecordFailure("bse", nil)
	}
	if s := r.Health("bse").UptimeScore; s < 0 || s > 1 {
		t.Errorf("expected uptime score near 0, got %v", s)
	}
	for i := 0; i < 200; i++ {
		r.RecordSuccess("bse")
	}
	if s := r.Health("bse").UptimeScore; s < 99 || s > 100 {
		t.Errorf("expected uptime score near 100, got %v", s)
	}
}

func TestRegistry_HealthyRatio(t *testing.T) {
	empty := NewRegistry(Config{}, nil, nil)
	if got := empty.HealthyRatio(); got != 1 {
		t.Errorf("expected ratio 1 with no sources, got %v", got)
	}

	r := NewRegistry(Config{}, testGraph(), nil)
	markUnhealthy(t, r, "nse")
	markUnhealthy(t, r, "bse")
	if got := r.HealthyRatio(); got != 0.5 {
		t.Errorf("expected ratio 0.5, got %v", got)
	}
}

func TestRegistry_Sources(t *testing.T) {
	r := NewRegistry(Config{}, testGraph(), nil)
	got := r.Sources()
	want := []string{"bse", "epfo", "nse", "yahoo_finance"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestBestAvailableSource(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		unhealthy []string
		opts      ResolveOptions
		primary   string
		want      string
	}{
		{name: "healthy primary", primary: "yahoo_finance", want: "yahoo_finance"},
		{name: "first fallback", primary: "yahoo_finance", unhealthy: []string{"yahoo_finance"}, want: "nse"},
		{name: "skips unhealthy fallback", primary: "yahoo_finance", unhealthy: []string{"yahoo_finance", "nse"}, want: "bse"},
		{name: "excluded primary", primary: "yahoo_finance", opts: ResolveOptions{Exclude: []string{"yahoo_finance"}}, want: "nse"},
		{name: "excluded fallback", primary: "yahoo_finance", unhealthy: []string{"yahoo_finance"}, opts: ResolveOptions{Exclude: []string{"nse"}}, want: "bse"},
		{name: "preferred overrides graph", primary: "yahoo_finance", unhealthy: []string{"yahoo_finance"}, opts: ResolveOptions{PreferredFallbacks: []string{"bse"}}, want: "bse"},
		{name: "nothing healthy returns primary", primary: "yahoo_finance", unhealthy: []string{"yahoo_finance", "nse", "bse"}, want: "yahoo_finance"},
		{name: "no alternates returns primary", primary: "epfo", unhealthy: []string{"epfo"}, want: "epfo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(Config{}, testGraph(), nil)
			for _, s := range tt.unhealthy {
				markUnhealthy(t, r, s)
			}
			if got := r.BestAvailableSource(ctx, tt.primary, tt.opts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsHealthy_ProbesStaleEntries(t *testing.T) {
	clock := newFakeClock()
	var probes atomic.Int32
	var fail atomic.Bool
	prober := ProberFunc(func(ctx context.Context, source string) error {
		probes.Add(1)
		if fail.Load() {
			return errors.New("probe failed")
		}
		return nil
	})

	r := NewRegistry(Config{CheckInterval: time.Minute}, testGraph(), nil, WithProber(prober), WithClock(clock.Now))
	ctx := context.Background()

	if !r.IsHealthy(ctx, "nse") {
		t.Fatal("expected nse healthy")
	}
	if probes.Load() != 1 {
		t.Fatalf("expected first check to probe once, got %d", probes.Load())
	}

	r.IsHealthy(ctx, "nse")
	if probes.Load() != 1 {
		t.Errorf("expected fresh entry not to be probed again, got %d probes", probes.Load())
	}

	fail.Store(true)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		r.IsHealthy(ctx, "nse")
	}
	if probes.Load() != 4 {
		t.Errorf("expected 4 probes, got %d", probes.Load())
	}
	if r.IsHealthy(ctx, "nse") {
		t.Error("expected nse unhealthy after 3 failed probes")
	}
}

func TestIsHealthy_NoProbeTargetLeavesHealthAlone(t *testing.T) {
	prober := ProberFunc(func(context.Context, string) error { return ErrNoProbeTarget })
	r := NewRegistry(Config{}, testGraph(), nil, WithProber(prober))
	for i := 0; i < 5; i++ {
		if !r.IsHealthy(context.Background(), "epfo") {
			t.Fatal("expected source without probe target to stay healthy")
		}
	}
}

func TestHTTPProber(t *testing.T) {
	var method string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	p := NewHTTPProber(up.Client(), map[string]string{"nse": up.URL, "bse": down.URL, "epfo": ""})
	ctx := context.Background()

	if err := p.Probe(ctx, "nse"); err != nil {
		t.Errorf("expected 405 to count as alive, got %v", err)
	}
	if method != http.MethodHead {
		t.Errorf("expected HEAD request, got %q", method)
	}
	if err := p.Probe(ctx, "bse"); err == nil {
		t.Error("expected 503 to fail the probe")
	}
	if err := p.Probe(ctx, "epfo"); !errors.Is(err, ErrNoProbeTarget) {
		t.Errorf("expected ErrNoProbeTarget, got %v", err)
	}
}

func TestRegistry_WaitHonorsRateLimit(t *testing.T) {
	r := NewRegistry(Config{}, testGraph(), nil)
	r.Register("nse", RateLimit{RequestsPerMinute: 1, Burst: 1})

	if err := r.Wait(context.Background(), "nse"); err != nil {
		t.Fatalf("expected first request within burst, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx, "nse"); err == nil {
		t.Error("expected second request to exceed the limiter within the deadline")
	}

	if err := r.Wait(context.Background(), "bse"); err != nil {
		t.Errorf("expected unlimited source to pass, got %v", err)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	var probes atomic.Int32
	prober := ProberFunc(func(context.Context, string) error {
		probes.Add(1)
		return nil
	})
	r := NewRegistry(Config{}, testGraph(), nil, WithProber(prober))
	m := NewMonitor(r, time.Hour, true)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected monitor running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for probes.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := probes.Load(); got != 4 {
		t.Errorf("expected startup sweep to probe 4 sources, got %d", got)
	}

	m.Stop()
	if m.IsRunning() {
		t.Error("expected monitor stopped")
	}
	m.Stop()
}

func TestMonitor_ServeReturnsOnCancel(t *testing.T) {
	r := NewRegistry(Config{}, testGraph(), nil)
	m := NewMonitor(r, 10*time.Millisecond, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
