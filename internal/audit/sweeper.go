// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"context"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
)

// Sweeper periodically applies the retention policy. It implements
// suture.Service.
type Sweeper struct {
	recorder  *Recorder
	retention time.Duration
	interval  time.Duration
}

// NewSweeper creates a retention sweeper. A non-positive interval defaults
// to one day.
func NewSweeper(recorder *Recorder, retention, interval time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		recorder:  recorder,
		retention: retention,
		interval:  interval,
	}
}

// Serve sweeps once immediately and then on every tick until ctx is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "audit-retention-sweeper"
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.recorder.Sweep(ctx, s.retention)
	if err != nil {
		if ctx.Err() == nil {
			logging.Error().Err(err).Msg("Audit retention sweep failed")
		}
		return
	}
	if deleted > 0 {
		logging.Info().Int64("deleted", deleted).Dur("retention", s.retention).Msg("Audit retention sweep completed")
	}
}
