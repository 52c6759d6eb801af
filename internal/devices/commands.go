// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package devices implements the outbound command channel to playout
// gateways: an asynchronous request/reply over a persisted command record,
// observed until the gateway replies or a fixed timeout elapses.
package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/eventbus"
	"github.com/onairhq/showrunner/internal/metrics"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/store"
)

// ErrCommandTimeout is returned when the gateway does not reply within the
// configured window. The pending command record is discarded.
var ErrCommandTimeout = errors.New("device command timed out")

// ErrCommandFailed wraps a gateway-reported command failure.
var ErrCommandFailed = errors.New("device command failed")

const pollInterval = 50 * time.Millisecond

// Commands executes functions on peripheral devices.
type Commands struct {
	log     zerolog.Logger
	cols    *store.Collections
	bus     *eventbus.Bus
	timeout time.Duration
}

// New creates the command channel. bus may be nil (tests); gateways then
// rely on observing the persisted command records.
func New(log zerolog.Logger, cols *store.Collections, bus *eventbus.Bus, timeout time.Duration) *Commands {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Commands{
		log:     log.With().Str("component", "devices").Logger(),
		cols:    cols,
		bus:     bus,
		timeout: timeout,
	}
}

// Execute runs a function on a device and waits for its reply. The command
// is persisted first so a gateway reconnecting mid-call still sees it; on
// timeout the record is deleted and the caller gets ErrCommandTimeout.
func (c *Commands) Execute(ctx context.Context, deviceID, functionName string, args ...any) (any, error) {
	cmd := models.PeripheralCommand{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		FunctionName: functionName,
		Args:         args,
		Time:         time.Now().UnixMilli(),
	}
	if err := c.cols.PeripheralCommands.Insert(ctx, cmd); err != nil {
		return nil, fmt.Errorf("persist device command: %w", err)
	}
	if c.bus != nil {
		if err := c.bus.Publish(ctx, eventbus.TopicDeviceCommands, cmd); err != nil {
			metrics.BusPublishErrors.WithLabelValues(eventbus.TopicDeviceCommands).Inc()
			c.log.Warn().Err(err).Str("device_id", deviceID).Msg("device command publish failed; gateway must poll")
		}
	}

	start := time.Now()
	reply, err := c.awaitReply(ctx, cmd.ID)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrCommandTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordDeviceCommand(functionName, outcome, elapsed)

	if removeErr := c.cols.PeripheralCommands.Remove(context.WithoutCancel(ctx), cmd.ID); removeErr != nil && !errors.Is(removeErr, store.ErrNotFound) {
		c.log.Warn().Err(removeErr).Str("command_id", cmd.ID).Msg("removing device command record failed")
	}
	return reply, err
}

func (c *Commands) awaitReply(ctx context.Context, commandID string) (any, error) {
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("command %s: %w", commandID, ErrCommandTimeout)
		case <-tick.C:
			cmd, err := c.cols.PeripheralCommands.FindOne(ctx, commandID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("command %s disappeared: %w", commandID, ErrCommandTimeout)
				}
				return nil, err
			}
			if !cmd.HasReply {
				continue
			}
			if cmd.ReplyError != "" {
				return nil, fmt.Errorf("%w: %s", ErrCommandFailed, cmd.ReplyError)
			}
			return cmd.Reply, nil
		}
	}
}

// HandleReply records a gateway's reply on the pending command. Called by
// the gateway-facing API.
func (c *Commands) HandleReply(ctx context.Context, commandID string, reply any, replyErr string) error {
	err := c.cols.PeripheralCommands.Update(ctx, commandID, func(cmd models.PeripheralCommand) models.PeripheralCommand {
		cmd.HasReply = true
		cmd.Reply = reply
		cmd.ReplyError = replyErr
		return cmd
	})
	if err != nil {
		return fmt.Errorf("record reply for command %s: %w", commandID, err)
	}
	return nil
}
