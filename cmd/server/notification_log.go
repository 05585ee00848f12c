// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package main

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
)

// payloadSource is what the notification log consumes. *notify.BusNotifier
// satisfies it.
type payloadSource interface {
	Subscribe(ctx context.Context) (<-chan notify.Payload, error)
}

// notificationLogService subscribes to the in-process notification bus and
// writes every payload to the structured log, so operators see user-facing
// notifications even when no webhook is configured.
type notificationLogService struct {
	bus payloadSource
}

func newNotificationLogService(bus payloadSource) *notificationLogService {
	return &notificationLogService{bus: bus}
}

// Serve implements suture.Service.
func (s *notificationLogService) Serve(ctx context.Context) error {
	payloads, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-payloads:
			if !ok {
				return suture.ErrDoNotRestart
			}
			logEvent := logging.Info()
			if p.Kind == notify.KindSyncFailure || p.Kind == notify.KindSyncDisabled || p.Kind == notify.KindCredentialIssue {
				logEvent = logging.Warn()
			}
			logEvent.
				Str("kind", string(p.Kind)).
				Str("user_id", p.UserID).
				Interface("data", p.Data).
				Msg("Notification")
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *notificationLogService) String() string {
	return "notification-log"
}
