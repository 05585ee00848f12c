// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package sources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
)

// maxConcurrentProbes bounds parallel probes within one sweep.
const maxConcurrentProbes = 4

// Monitor refreshes the health of every tracked source on a fixed interval.
// It can run standalone through Start/Stop or under a supervisor through Serve.
type Monitor struct {
	registry       *Registry
	interval       time.Duration
	probeOnStartup bool

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewMonitor creates a background health monitor for the registry.
func NewMonitor(registry *Registry, interval time.Duration, probeOnStartup bool) *Monitor {
	if interval <= 0 {
		interval = registry.cfg.CheckInterval
	}
	return &Monitor{
		registry:       registry,
		interval:       interval,
		probeOnStartup: probeOnStartup,
	}
}

// ProbeAll probes every tracked source once, a few at a time.
func (m *Monitor) ProbeAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, source := range m.registry.Sources() {
		g.Go(func() error {
			m.registry.ProbeSource(gctx, source)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probe goroutines never return errors
}

// Start launches the monitor loop. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	for m.stopping {
		stopDone := m.stopDone
		m.mu.Unlock()
		<-stopDone
		m.mu.Lock()
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.stopDone = make(chan struct{})
	done := m.stopDone
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(loopCtx)
	}()

	logging.Info().Dur("interval", m.interval).Msg("Source health monitor started")
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running || m.stopping {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.stopping = true
	stopDone := m.stopDone
	m.mu.Unlock()

	<-stopDone

	m.mu.Lock()
	m.stopping = false
	m.mu.Unlock()

	logging.Info().Msg("Source health monitor stopped")
}

// IsRunning reports whether the loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Serve implements suture.Service. It blocks until ctx is canceled.
func (m *Monitor) Serve(ctx context.Context) error {
	m.run(ctx)
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (m *Monitor) String() string {
	return "source-health-monitor"
}

func (m *Monitor) run(ctx context.Context) {
	if m.probeOnStartup {
		m.ProbeAll(ctx)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
			logging.Debug().Float64("healthy_ratio", m.registry.HealthyRatio()).Msg("Source health sweep complete")
		}
	}
}
