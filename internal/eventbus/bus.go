// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package eventbus carries Showrunner's internal messaging: committed
// document changes, timeline recompute requests, and device commands.
//
// The core bus is an in-process Watermill gochannel pub/sub; every committed
// store flush and playout side effect goes through it. When NATS is enabled,
// a Forwarder republishes the gateway-facing topics onto JetStream so
// external device gateways can consume them.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/store"
)

// Topics.
const (
	// TopicDocChanges carries committed document change notifications.
	TopicDocChanges = "docs.changed"

	// TopicTimeline carries timeline recompute requests for device gateways.
	TopicTimeline = "timeline.recompute"

	// TopicDeviceCommands carries outbound peripheral device commands.
	TopicDeviceCommands = "devices.commands"
)

// GatewayTopics lists the topics forwarded to NATS when enabled.
var GatewayTopics = []string{TopicTimeline, TopicDeviceCommands}

// Bus is the in-process pub/sub hub. It satisfies store.Publisher so the
// document store can notify subscribers of committed changes.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

// New creates the in-process bus.
func New() *Bus {
	logger := NewZerologAdapter(logging.WithComponent("eventbus"))
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: false,
		}, logger),
		logger: logger,
	}
}

// Publish marshals payload as JSON and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("eventbus is closed")
	}
	b.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	return b.pubsub.Publish(topic, msg)
}

// Subscribe returns a channel of messages for topic. The channel closes when
// ctx is cancelled or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// PublishDocChanges implements store.Publisher. Errors are logged, never
// propagated: change notification is best-effort and must not fail a commit.
func (b *Bus) PublishDocChanges(ctx context.Context, changes []store.DocChange) {
	if err := b.Publish(ctx, TopicDocChanges, changes); err != nil {
		logging.CtxErr(ctx, err).Msg("publish doc changes")
	}
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// DecodeDocChanges unmarshals a TopicDocChanges message payload.
func DecodeDocChanges(msg *message.Message) ([]store.DocChange, error) {
	var changes []store.DocChange
	if err := json.Unmarshal(msg.Payload, &changes); err != nil {
		return nil, fmt.Errorf("decode doc changes: %w", err)
	}
	return changes, nil
}

// zerologAdapter maps watermill.LoggerAdapter onto zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewZerologAdapter wraps a zerolog logger for Watermill.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologAdapter(logger zerolog.Logger) watermill.LoggerAdapter {
	return &zerologAdapter{logger: logger}
}

func (a *zerologAdapter) event(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range a.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.logger.Error().Err(err), msg, fields)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.logger.Info(), msg, fields)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), msg, fields)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.logger.Trace(), msg, fields)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologAdapter{logger: a.logger, fields: merged}
}
