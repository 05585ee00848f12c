// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with its own background loop.
//
// Satisfied by *sources.Monitor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService adapts a Start/Stop component to suture's Serve:
// Start on entry, block until ctx is canceled, then Stop, which waits for
// the component's goroutine to exit.
//
//	monitor := sources.NewMonitor(registry, 5*time.Minute, true)
//	tree.AddMonitoringService(services.NewLifecycleService("source-health-monitor", monitor))
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the service according to its backoff policy.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *LifecycleService) String() string {
	return s.name
}
