// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package websocket pushes committed document changes to connected UIs.
// The hub subscribes to the event bus and fans every change batch out to
// all clients; a UI keeps its rundown view live by applying the batches to
// its local copy instead of polling.
package websocket

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/time/rate"

	"github.com/onairhq/showrunner/internal/eventbus"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypeDocChanges = "docChanges"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is one WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// changeFanoutRate caps change frames per second across all clients. During
// a full rundown regeneration the store can commit hundreds of batches in a
// burst; waiting on the limiter lets bursts pile up in the bus channel and
// arrive as fewer, larger frames.
const changeFanoutRate = 20

// Hub tracks connected clients and broadcasts messages to them. It runs as
// a supervised service; Serve exits when the context is canceled.
type Hub struct {
	bus *eventbus.Bus

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	limiter    *rate.Limiter
	mu         sync.RWMutex
}

// NewHub creates a hub. bus may be nil, in which case only explicitly
// broadcast messages are delivered (tests).
func NewHub(bus *eventbus.Bus) *Hub {
	return &Hub{
		bus:        bus,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		limiter:    rate.NewLimiter(rate.Limit(changeFanoutRate), changeFanoutRate),
	}
}

// Broadcast queues a message for all connected clients. Drops the message
// when the hub is saturated; WebSocket delivery is best-effort, clients can
// refetch full state at any time.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("type", msg.Type).Msg("websocket broadcast queue full, dropping message")
	}
}

// Serve implements suture.Service. It consumes the doc-change topic (when a
// bus is attached) and runs the client fanout loop until ctx is canceled.
func (h *Hub) Serve(ctx context.Context) error {
	if h.bus != nil {
		messages, err := h.bus.Subscribe(ctx, eventbus.TopicDocChanges)
		if err != nil {
			return err
		}
		go h.consumeChanges(ctx, messages)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnectionsActive.Inc()
			logging.Info().Int("total_clients", total).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WSConnectionsActive.Dec()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info().Int("total_clients", total).Msg("websocket client disconnected")

		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// String implements suture's service naming.
func (h *Hub) String() string { return "websocket.Hub" }

func (h *Hub) consumeChanges(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			changes, err := eventbus.DecodeDocChanges(msg)
			msg.Ack()
			if err != nil {
				logging.Error().Err(err).Msg("websocket: undecodable doc change batch")
				continue
			}
			if err := h.limiter.Wait(ctx); err != nil {
				return
			}
			h.Broadcast(Message{Type: MessageTypeDocChanges, Data: changes})
		}
	}
}

func (h *Hub) broadcastToClients(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
			metrics.WSMessagesSent.Inc()
		default:
			// Slow client; skip rather than stall the hub.
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnectionsActive.Dec()
	}
	if count > 0 {
		logging.Info().Int("clients_closed", count).Msg("websocket hub shut down")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
