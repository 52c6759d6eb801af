// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/onairhq/showrunner/internal/store"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicTimeline)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	type recompute struct {
		PlaylistID string `json:"playlistId"`
	}
	if err := bus.Publish(ctx, TopicTimeline, recompute{PlaylistID: "pl1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg.Payload) != `{"playlistId":"pl1"}` {
			t.Errorf("payload = %s", msg.Payload)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDocChangesDeliversToSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicDocChanges)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := []store.DocChange{
		{Collection: "segments", ID: "seg1", Kind: store.ChangeUpdated},
		{Collection: "parts", ID: "p1", Kind: store.ChangeRemoved},
	}
	bus.PublishDocChanges(ctx, want)

	select {
	case msg := <-ch:
		got, err := DecodeDocChanges(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 || got[0].ID != "seg1" || got[1].Kind != store.ChangeRemoved {
			t.Errorf("changes = %+v", got)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for doc changes")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	bus := New()
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Publish(context.Background(), TopicTimeline, "x"); err == nil {
		t.Error("publish after close should fail")
	}
	// Double close is a no-op.
	if err := bus.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestCorrelationIDPropagatesToMetadata(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicDeviceCommands)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pubCtx := contextWithCorrelation(ctx, "abc12345")
	if err := bus.Publish(pubCtx, TopicDeviceCommands, map[string]string{"fn": "restart"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		if got := msg.Metadata.Get("correlation_id"); got != "abc12345" {
			t.Errorf("correlation_id metadata = %q", got)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
