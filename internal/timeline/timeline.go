// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package timeline publishes device timeline recompute requests. The actual
// timeline compiler lives in the device gateway; the engine only signals
// that the post-mutation state changed.
package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/eventbus"
	"github.com/onairhq/showrunner/internal/metrics"
)

// RecomputeRequest is the wire payload on the timeline topic.
type RecomputeRequest struct {
	PlaylistID  string `json:"playlistId"`
	Reason      string `json:"reason"`
	RequestedAt int64  `json:"requestedAt"`
}

// Publisher coalesces recompute requests per playlist within a debounce
// window; a burst of committed operations yields one gateway recompute.
type Publisher struct {
	log      zerolog.Logger
	bus      *eventbus.Bus
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewPublisher creates a Publisher. debounce zero disables coalescing.
func NewPublisher(log zerolog.Logger, bus *eventbus.Bus, debounce time.Duration) *Publisher {
	return &Publisher{
		log:      log.With().Str("component", "timeline").Logger(),
		bus:      bus,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// RequestRecompute asks the gateway to recompile the playlist's timeline.
// Requests within the debounce window collapse into one; the last reason
// wins. Failures are logged only, the committed state change stands.
func (p *Publisher) RequestRecompute(ctx context.Context, playlistID, reason string) {
	if p.debounce <= 0 {
		p.publish(playlistID, reason)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if timer, ok := p.pending[playlistID]; ok {
		timer.Stop()
	}
	p.pending[playlistID] = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		delete(p.pending, playlistID)
		p.mu.Unlock()
		p.publish(playlistID, reason)
	})
}

func (p *Publisher) publish(playlistID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.bus.Publish(ctx, eventbus.TopicTimeline, RecomputeRequest{
		PlaylistID:  playlistID,
		Reason:      reason,
		RequestedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		metrics.BusPublishErrors.WithLabelValues(eventbus.TopicTimeline).Inc()
		p.log.Error().Err(err).Str("playlist_id", playlistID).Msg("timeline recompute publish failed")
		return
	}
	p.log.Debug().Str("playlist_id", playlistID).Str("reason", reason).Msg("timeline recompute requested")
}

// Flush fires every pending debounced request immediately. Used on
// shutdown.
func (p *Publisher) Flush() {
	p.mu.Lock()
	timers := make([]*time.Timer, 0, len(p.pending))
	for _, t := range p.pending {
		timers = append(timers, t)
	}
	p.mu.Unlock()
	for _, t := range timers {
		if t.Stop() {
			// Timer had not fired; fire the underlying publish by resetting
			// to zero delay.
			t.Reset(0)
		}
	}
}
