// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package playout implements the take/hold/ad-lib state machine over part
// and piece instances. Every operation runs through the serialization queue
// and either commits its whole cache or discards it; there is no partial
// on-air state change.
package playout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/blueprint"
	"github.com/onairhq/showrunner/internal/config"
	"github.com/onairhq/showrunner/internal/metrics"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
	"github.com/onairhq/showrunner/internal/queue"
	"github.com/onairhq/showrunner/internal/store"
)

// TimelineRequester requests a device timeline recompute after committed
// operations. Satisfied by timeline.Publisher.
type TimelineRequester interface {
	RequestRecompute(ctx context.Context, playlistID, reason string)
}

// Engine executes operator playout actions.
type Engine struct {
	log      zerolog.Logger
	cols     *store.Collections
	q        *queue.Queue
	style    blueprint.ShowStyle
	timeline TimelineRequester
	cfg      config.PlayoutConfig

	studioID string
}

// NewEngine creates the playout engine. timeline may be nil.
func NewEngine(log zerolog.Logger, cols *store.Collections, q *queue.Queue, style blueprint.ShowStyle, timeline TimelineRequester, cfg config.PlayoutConfig, studioID string) *Engine {
	return &Engine{
		log:      log.With().Str("component", "playout").Logger(),
		cols:     cols,
		q:        q,
		style:    style,
		timeline: timeline,
		cfg:      cfg,
		studioID: studioID,
	}
}

// runUser executes fn exclusively at user-playout priority with a loaded
// cache. fn must either mutate the cache and return nil (commit) or return
// an error (discard, nothing flushed).
func (e *Engine) runUser(ctx context.Context, playlistID, label string, fn func(ctx context.Context, c *playcache.Cache) error) error {
	return e.q.RunExclusive(ctx, playlistID, queue.PriorityUserPlayout, label, func(ctx context.Context) error {
		return e.runWithCache(ctx, playlistID, fn)
	})
}

func (e *Engine) runWithCache(ctx context.Context, playlistID string, fn func(ctx context.Context, c *playcache.Cache) error) error {
	c, err := playcache.Load(ctx, e.cols, playlistID)
	if err != nil {
		return err
	}
	if err := fn(ctx, c); err != nil {
		c.Discard()
		return err
	}
	return c.SaveAll(ctx)
}

func (e *Engine) deferRecompute(c *playcache.Cache, reason string) {
	if e.timeline == nil {
		return
	}
	playlistID := c.PlaylistID
	c.DeferAfterSave(func(ctx context.Context) {
		e.timeline.RequestRecompute(ctx, playlistID, reason)
	})
}

// Activate puts the playlist on air. Activating while another playlist is
// live in the same studio fails with an ActivationConflictError carrying the
// conflicting rundowns.
func (e *Engine) Activate(ctx context.Context, playlistID string, rehearsal bool) error {
	return e.runUser(ctx, playlistID, "playout.activate", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if playlist.Active && playlist.Rehearsal == rehearsal {
			return ErrAlreadyActive
		}

		if !playlist.Active {
			conflict, err := e.findActivationConflicts(ctx, playlistID)
			if err != nil {
				return err
			}
			if conflict != nil {
				return conflict
			}
		}

		c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
			if !p.Active {
				p.ActivationID = uuid.NewString()
				p.StartedPlayback = 0
				p.Hold = models.HoldNone
			}
			p.Active = true
			p.Rehearsal = rehearsal
			p.ModifiedAt = time.Now().UnixMilli()
			return p
		})
		if err := EnsureNextPartIsValid(ctx, c); err != nil {
			return err
		}
		e.deferRecompute(c, "playlist activated")
		e.log.Info().Str("playlist_id", playlistID).Bool("rehearsal", rehearsal).Msg("playlist activated")
		return nil
	})
}

func (e *Engine) findActivationConflicts(ctx context.Context, playlistID string) (*ActivationConflictError, error) {
	others, err := e.cols.Playlists.Find(ctx, func(p models.RundownPlaylist) bool {
		return p.Active && p.StudioID == e.studioID && p.ID != playlistID
	})
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return nil, nil
	}
	conflict := &ActivationConflictError{}
	for _, other := range others {
		rundowns, err := e.cols.Rundowns.Find(ctx, func(r models.Rundown) bool { return r.PlaylistID == other.ID })
		if err != nil {
			return nil, err
		}
		for _, rd := range rundowns {
			conflict.ConflictingRundowns = append(conflict.ConflictingRundowns, ConflictingRundown{
				RundownID:  rd.ID,
				Name:       rd.Name,
				PlaylistID: other.ID,
			})
		}
	}
	return conflict, nil
}

// Deactivate takes the playlist off air, clearing the playout pointers but
// keeping the instance history for review.
func (e *Engine) Deactivate(ctx context.Context, playlistID string) error {
	return e.runUser(ctx, playlistID, "playout.deactivate", func(ctx context.Context, c *playcache.Cache) error {
		if !c.Playlist().Active {
			return ErrNotActive
		}
		now := time.Now().UnixMilli()
		if current, ok := c.CurrentPartInstance(); ok && current.Timings.StoppedPlayback == 0 {
			c.PartInstances.Update(current.ID, func(pi models.PartInstance) models.PartInstance {
				pi.Timings.StoppedPlayback = now
				return pi
			})
		}
		resetStaleNext(c)
		c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
			p.Active = false
			p.Rehearsal = false
			p.ActivationID = ""
			p.Hold = models.HoldNone
			p.CurrentPartInstanceID = ""
			p.NextPartInstanceID = ""
			p.PreviousPartInstanceID = ""
			p.NextTimeOffset = 0
			p.NextPartManual = false
			p.PreviousPartEndState = nil
			p.ModifiedAt = now
			return p
		})
		e.deferRecompute(c, "playlist deactivated")
		e.log.Info().Str("playlist_id", playlistID).Msg("playlist deactivated")
		return nil
	})
}

// ResetPlaylist wipes the playback history: every part and piece instance is
// marked reset and the pointers cleared. Refused while genuinely on air.
func (e *Engine) ResetPlaylist(ctx context.Context, playlistID string) error {
	return e.runUser(ctx, playlistID, "playout.reset", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if playlist.Active && !playlist.Rehearsal {
			return ErrResetWhileOnAir
		}
		c.PartInstances.UpdateAll(
			func(pi models.PartInstance) bool { return !pi.Reset },
			func(pi models.PartInstance) models.PartInstance {
				pi.Reset = true
				return pi
			})
		c.PieceInstances.UpdateAll(
			func(pi models.PieceInstance) bool { return !pi.Reset },
			func(pi models.PieceInstance) models.PieceInstance {
				pi.Reset = true
				return pi
			})
		now := time.Now().UnixMilli()
		c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
			p.CurrentPartInstanceID = ""
			p.NextPartInstanceID = ""
			p.PreviousPartInstanceID = ""
			p.NextTimeOffset = 0
			p.NextPartManual = false
			p.PreviousPartEndState = nil
			p.Hold = models.HoldNone
			p.StartedPlayback = 0
			p.ResetTime = now
			p.ModifiedAt = now
			return p
		})
		if playlist.Active {
			if err := EnsureNextPartIsValid(ctx, c); err != nil {
				return err
			}
		}
		e.deferRecompute(c, "playlist reset")
		return nil
	})
}

// SetNextPart points the next pointer at the given part. Valid only while
// active; never touches current.
func (e *Engine) SetNextPart(ctx context.Context, playlistID, partID string, offsetMs int64) error {
	return e.runUser(ctx, playlistID, "playout.setNext", func(ctx context.Context, c *playcache.Cache) error {
		if !c.Playlist().Active {
			return ErrNotActive
		}
		part, ok := c.Parts.FindOne(partID)
		if !ok {
			return fmt.Errorf("part %s: %w", partID, store.ErrNotFound)
		}
		if !part.IsPlayable() {
			return fmt.Errorf("part %s: %w", partID, ErrPartNotPlayable)
		}
		setNextPartInCache(c, part, true, offsetMs)
		e.deferRecompute(c, "next part set")
		return nil
	})
}

// Take advances current to next: the central playout operation.
func (e *Engine) Take(ctx context.Context, playlistID string) error {
	err := e.runUser(ctx, playlistID, "playout.take", func(ctx context.Context, c *playcache.Cache) error {
		return e.takeInner(ctx, c)
	})
	switch {
	case err == nil:
		metrics.TakeOperations.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNoNextPart):
		metrics.TakeOperations.WithLabelValues("no_next").Inc()
	case errors.Is(err, ErrTakeWhileTransition), errors.Is(err, ErrTakeCloseToAutoNext):
		metrics.TakeOperations.WithLabelValues("guard").Inc()
	default:
		metrics.TakeOperations.WithLabelValues("error").Inc()
	}
	return err
}

func (e *Engine) takeInner(ctx context.Context, c *playcache.Cache) error {
	playlist := c.Playlist()
	if !playlist.Active {
		return ErrNotActive
	}
	if playlist.NextPartInstanceID == "" {
		return ErrNoNextPart
	}
	next, ok := c.NextPartInstance()
	if !ok {
		return ErrNoNextPart
	}
	now := time.Now().UnixMilli()

	current, hasCurrent := c.CurrentPartInstance()
	if hasCurrent {
		if d := current.Part.InTransitionDurationMs; d > 0 && !next.Part.DisableNextInTransition {
			if current.Timings.Take != 0 && now < current.Timings.Take+d {
				return ErrTakeWhileTransition
			}
		}
		if current.Part.AutoNext && current.Part.ExpectedDurationMs > 0 && current.Timings.StartedPlayback != 0 {
			remaining := current.Timings.StartedPlayback + current.Part.ExpectedDurationMs - now
			if remaining > 0 && remaining < e.cfg.TakeGuardMs {
				return ErrTakeCloseToAutoNext
			}
		}
	}

	if err := e.style.OnTake(ctx, playlist, next); err != nil {
		return fmt.Errorf("take rejected by show style: %w", err)
	}

	// Snapshot the outgoing part before anything moves.
	var endState map[string]any
	if hasCurrent {
		currentPieces := c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.PartInstanceID == current.ID
		})
		endState = e.style.GetEndStateForPart(ctx, playlist.PreviousPartEndState, current, currentPieces, now)
	}

	holdState := playlist.Hold
	switch holdState {
	case models.HoldActive:
		completeHold(c, now)
		holdState = models.HoldComplete
	case models.HoldComplete:
		holdState = models.HoldNone
	}

	if holdState == models.HoldPending && hasCurrent {
		startHold(c, &current, &next, now)
		holdState = models.HoldActive
	}

	// Pointer shift.
	offset := playlist.NextTimeOffset
	c.PartInstances.Update(next.ID, func(pi models.PartInstance) models.PartInstance {
		pi.IsTaken = true
		pi.Timings.Take = now
		pi.Timings.PlayOffset = offset
		pi.ConsumesNextTimeOffset = offset
		return pi
	})
	if hasCurrent {
		c.PartInstances.Update(current.ID, func(pi models.PartInstance) models.PartInstance {
			pi.Timings.TakeDone = now
			return pi
		})
	}

	c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		p.PreviousPartInstanceID = p.CurrentPartInstanceID
		p.CurrentPartInstanceID = next.ID
		p.NextPartInstanceID = ""
		p.NextTimeOffset = 0
		p.NextPartManual = false
		p.PreviousPartEndState = endState
		p.Hold = holdState
		p.ModifiedAt = now
		return p
	})

	// Select the subsequent next.
	taken, _ := c.PartInstances.FindOne(next.ID)
	if part, found := SelectNextPart(c, &taken); found {
		setNextPartInCache(c, part, false, 0)
	}

	e.deferRecompute(c, "take")
	playlistID := c.PlaylistID
	takenID := next.ID
	c.DeferAfterSave(func(ctx context.Context) {
		if err := e.style.OnPostTake(ctx, c.Playlist(), taken); err != nil {
			e.log.Warn().Err(err).Str("playlist_id", playlistID).Msg("post-take hook failed")
		}
		if e.cfg.SelfReportPlayback {
			go e.selfReportPlayback(playlistID, takenID, now)
		}
	})

	e.log.Info().
		Str("playlist_id", c.PlaylistID).
		Str("part_instance_id", next.ID).
		Str("part", next.Part.Title).
		Int("take_count", next.TakeCount).
		Msg("take")
	return nil
}

// selfReportPlayback synthesizes the gateway's "started playback" callback
// when no device gateway is attached. Runs as its own queued operation at
// callback priority.
func (e *Engine) selfReportPlayback(playlistID, partInstanceID string, ts int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.OnPartPlaybackStarted(ctx, playlistID, partInstanceID, ts); err != nil {
		e.log.Warn().Err(err).
			Str("playlist_id", playlistID).
			Str("part_instance_id", partInstanceID).
			Msg("self-reported playback failed")
	}
}

// OnPartPlaybackStarted is the gateway playback report: it stamps playback
// timings on the instance and its pieces and closes out the previous part.
func (e *Engine) OnPartPlaybackStarted(ctx context.Context, playlistID, partInstanceID string, ts int64) error {
	return e.q.RunExclusive(ctx, playlistID, queue.PriorityCallback, "playout.onPlaybackStarted", func(ctx context.Context) error {
		return e.runWithCache(ctx, playlistID, func(ctx context.Context, c *playcache.Cache) error {
			instance, ok := c.PartInstances.FindOne(partInstanceID)
			if !ok {
				return fmt.Errorf("part instance %s: %w", partInstanceID, store.ErrNotFound)
			}
			if instance.Timings.StartedPlayback != 0 {
				return nil // duplicate report
			}
			c.PartInstances.Update(partInstanceID, func(pi models.PartInstance) models.PartInstance {
				pi.Timings.StartedPlayback = ts
				return pi
			})
			c.PieceInstances.UpdateAll(
				func(pi models.PieceInstance) bool {
					return pi.PartInstanceID == partInstanceID && pi.StartedPlayback == 0
				},
				func(pi models.PieceInstance) models.PieceInstance {
					pi.StartedPlayback = ts + pi.Piece.EnableStartMs
					return pi
				})

			playlist := c.Playlist()
			if playlist.PreviousPartInstanceID != "" {
				c.PartInstances.Update(playlist.PreviousPartInstanceID, func(pi models.PartInstance) models.PartInstance {
					if pi.Timings.StoppedPlayback == 0 {
						pi.Timings.StoppedPlayback = ts
					}
					return pi
				})
			}
			if playlist.StartedPlayback == 0 {
				c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
					p.StartedPlayback = ts
					return p
				})
			}
			return nil
		})
	})
}
