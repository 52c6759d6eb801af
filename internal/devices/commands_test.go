// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package devices

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/store"
)

func testCommands(t *testing.T, timeout time.Duration) (*Commands, *store.Collections) {
	t.Helper()
	s, err := store.Open(store.Options{Path: ""})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	cols := store.NewCollections(s)
	return New(logging.NewTestLogger(io.Discard), cols, nil, timeout), cols
}

func TestCommands_ExecuteReceivesReply(t *testing.T) {
	t.Parallel()
	c, cols := testCommands(t, time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Play the gateway: wait for the command record, then reply.
		deadline := time.After(time.Second)
		for {
			select {
			case <-deadline:
				return
			case <-time.After(10 * time.Millisecond):
			}
			all, err := cols.PeripheralCommands.Find(context.Background(), nil)
			if err != nil || len(all) == 0 {
				continue
			}
			_ = c.HandleReply(context.Background(), all[0].ID, map[string]any{"ok": true}, "")
			return
		}
	}()

	reply, err := c.Execute(context.Background(), "caspar0", "clearAll")
	<-done
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	m, ok := reply.(map[string]any)
	if !ok || m["ok"] != true {
		t.Errorf("Execute() reply = %#v", reply)
	}

	all, err := cols.PeripheralCommands.Find(context.Background(), nil)
	if err != nil {
		t.Fatalf("list commands: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("command records after completion = %d, want 0", len(all))
	}
}

func TestCommands_ExecutePropagatesGatewayError(t *testing.T) {
	t.Parallel()
	c, cols := testCommands(t, time.Second)

	go func() {
		for i := 0; i < 100; i++ {
			time.Sleep(10 * time.Millisecond)
			all, err := cols.PeripheralCommands.Find(context.Background(), nil)
			if err != nil || len(all) == 0 {
				continue
			}
			_ = c.HandleReply(context.Background(), all[0].ID, nil, "channel offline")
			return
		}
	}()

	_, err := c.Execute(context.Background(), "caspar0", "play", "clip1")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Execute() error = %v, want ErrCommandFailed", err)
	}
}

func TestCommands_ExecuteTimesOut(t *testing.T) {
	t.Parallel()
	c, cols := testCommands(t, 150*time.Millisecond)

	start := time.Now()
	_, err := c.Execute(context.Background(), "atem0", "cut")
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("Execute() error = %v, want ErrCommandTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("timed out after %v, expected to wait out the window", elapsed)
	}

	all, err := cols.PeripheralCommands.Find(context.Background(), nil)
	if err != nil {
		t.Fatalf("list commands: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("stale command records after timeout = %d, want 0", len(all))
	}
}

func TestCommands_ExecuteHonorsCallerCancel(t *testing.T) {
	t.Parallel()
	c, _ := testCommands(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.Execute(ctx, "atem0", "cut")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestCommands_HandleReplyUnknownCommand(t *testing.T) {
	t.Parallel()
	c, _ := testCommands(t, time.Second)
	if err := c.HandleReply(context.Background(), "missing", nil, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("HandleReply() error = %v, want ErrNotFound", err)
	}
}
