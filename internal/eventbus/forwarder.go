// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/onairhq/showrunner/internal/logging"
)

// Forwarder republishes gateway-facing topics from the in-process bus onto
// NATS JetStream. It runs as a supervised service: Serve blocks until ctx is
// cancelled, and returning an error triggers a supervisor restart.
type Forwarder struct {
	bus    *Bus
	nats   *NATSPublisher
	topics []string
}

// NewForwarder creates a forwarder for the given topics. A nil or empty
// topics slice forwards GatewayTopics.
func NewForwarder(bus *Bus, nats *NATSPublisher, topics []string) *Forwarder {
	if len(topics) == 0 {
		topics = GatewayTopics
	}
	return &Forwarder{bus: bus, nats: nats, topics: topics}
}

// Serve implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	channels := make([]<-chan *message.Message, 0, len(f.topics))
	for _, topic := range f.topics {
		ch, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}

	for i, ch := range channels {
		topic := f.topics[i]
		go func(topic string, ch <-chan *message.Message) {
			for msg := range ch {
				if err := f.nats.Publish(topic, msg); err != nil {
					logging.Err(err).Str("topic", topic).Msg("forward to NATS")
					msg.Nack()
					continue
				}
				msg.Ack()
			}
		}(topic, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// String names the service in supervisor logs.
func (f *Forwarder) String() string { return "eventbus.Forwarder" }
