// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package notify

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
)

// Topic is the bus topic every notification is published on.
const Topic = "fiscalflow.notifications"

// BusNotifier publishes payloads on an in-process Watermill Go-channel
// pub/sub so other components (the admin API, future delivery workers) can
// subscribe without the sync core knowing about them.
type BusNotifier struct {
	pubsub *gochannel.GoChannel
}

// NewBusNotifier creates an in-process notification bus.
func NewBusNotifier(buffer int64) *BusNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	return &BusNotifier{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, logger),
	}
}

// Name returns the channel name.
func (b *BusNotifier) Name() string { return "bus" }

// Notify publishes p on Topic.
func (b *BusNotifier) Notify(_ context.Context, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("kind", string(p.Kind))
	msg.Metadata.Set("user_id", p.UserID)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe returns decoded payloads until ctx is canceled or the bus closes.
// Messages that fail to decode are acked and dropped.
func (b *BusNotifier) Subscribe(ctx context.Context) (<-chan Payload, error) {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}

	out := make(chan Payload)
	go func() {
		defer close(out)
		for msg := range messages {
			var p Payload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable notification")
				msg.Ack()
				continue
			}
			select {
			case out <- p:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and ends every subscription.
func (b *BusNotifier) Close() error {
	return b.pubsub.Close()
}
