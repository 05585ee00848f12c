// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
)

// Kind classifies a notification.
type Kind string

const (
	KindSyncFailure        Kind = "sync_failure"
	KindSyncSuccess        Kind = "sync_success"
	KindCredentialIssue    Kind = "credential_issue"
	KindManualIntervention Kind = "manual_intervention"
	KindSyncDisabled       Kind = "sync_disabled"
	KindQuarantineAlert    Kind = "quarantine_alert"
	KindManualOverride     Kind = "manual_override"
)

// Payload is the structured body handed to every notifier.
type Payload struct {
	Kind      Kind           `json:"kind"`
	UserID    string         `json:"user_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewPayload creates a payload stamped with the current time.
func NewPayload(kind Kind, userID string, data map[string]any) Payload {
	return Payload{Kind: kind, UserID: userID, Data: data, Timestamp: time.Now().UTC()}
}

// Notifier delivers payloads somewhere outside the sync core.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

// Channel is a named notifier, used for metrics and logs.
type Channel interface {
	Notifier
	Name() string
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, p Payload) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, p Payload) error { return f(ctx, p) }

// Nop discards every payload.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Payload) error { return nil }

// Multi fans a payload out to every channel. A failing channel does not stop
// the others; all failures are joined into the returned error.
type Multi struct {
	channels []Channel
}

// NewMulti creates a fan-out notifier. Nil channels are skipped.
func NewMulti(channels ...Channel) *Multi {
	m := &Multi{}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Len returns the number of channels.
func (m *Multi) Len() int { return len(m.channels) }

// Notify delivers p to every channel.
func (m *Multi) Notify(ctx context.Context, p Payload) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, c := range m.channels {
		err := c.Notify(ctx, p)
		metrics.RecordNotification(c.Name(), string(p.Kind), err)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("channel", c.Name()).Str("kind", string(p.Kind)).Msg("Notification delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Send delivers p and logs instead of returning a failure. Notification is
// never allowed to fail a sync.
func Send(ctx context.Context, n Notifier, p Payload) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, p); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("kind", string(p.Kind)).Str("user_id", p.UserID).Msg("Notification not delivered")
	}
}
