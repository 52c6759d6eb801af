// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playout

import (
	"context"

	"github.com/google/uuid"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
)

// ActivateHold arms a hold: the next take extends flagged pieces of the
// outgoing part across the boundary. Requires current and next within the
// same segment and no hold already in progress.
func (e *Engine) ActivateHold(ctx context.Context, playlistID string) error {
	return e.runUser(ctx, playlistID, "playout.activateHold", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		if playlist.Hold != models.HoldNone {
			return ErrHoldNotAllowed
		}
		current, hasCurrent := c.CurrentPartInstance()
		next, hasNext := c.NextPartInstance()
		if !hasCurrent || !hasNext {
			return ErrHoldNotAllowed
		}
		if current.SegmentID != next.SegmentID {
			return ErrHoldNotAllowed
		}
		c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
			p.Hold = models.HoldPending
			return p
		})
		e.deferRecompute(c, "hold armed")
		return nil
	})
}

// DeactivateHold disarms a pending hold, or completes an active one (the
// undo path), cropping its extended pieces.
func (e *Engine) DeactivateHold(ctx context.Context, playlistID string) error {
	return e.runUser(ctx, playlistID, "playout.deactivateHold", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		switch playlist.Hold {
		case models.HoldPending:
			c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
				p.Hold = models.HoldNone
				return p
			})
		case models.HoldActive:
			now := nowMs()
			completeHold(c, now)
			c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
				p.Hold = models.HoldComplete
				return p
			})
		default:
			return ErrHoldNotAllowed
		}
		e.deferRecompute(c, "hold released")
		return nil
	})
}

// startHold runs inside the take that enters HoldActive: every piece
// instance of the outgoing part flagged extendOnHold gets a shared infinite
// id and a continuation on the incoming part, preserving the original's
// playback start so file-backed content resumes rather than restarts.
func startHold(c *playcache.Cache, outgoing, incoming *models.PartInstance, now int64) {
	for _, pi := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
		return p.PartInstanceID == outgoing.ID
	}) {
		if !pi.Piece.ExtendOnHold || pi.Piece.Virtual || pi.Reset {
			continue
		}
		if pi.StoppedPlayback != 0 || pi.UserDurationMs != 0 {
			continue
		}

		infiniteID := uuid.NewString()
		origin := pi
		origin.Infinite = &models.PieceInstanceInfinite{
			InfiniteInstanceID: infiniteID,
			InfinitePieceID:    pi.Piece.ID,
		}
		c.PieceInstances.Replace(origin)

		continuation := models.PieceInstance{
			ID:              uuid.NewString(),
			ActivationID:    incoming.ActivationID,
			RundownID:       incoming.RundownID,
			PartInstanceID:  incoming.ID,
			Piece:           pi.Piece,
			StartedPlayback: pi.StartedPlayback,
			Infinite: &models.PieceInstanceInfinite{
				InfiniteInstanceID: infiniteID,
				InfinitePieceID:    pi.Piece.ID,
				FromPreviousPart:   true,
				FromHold:           true,
			},
		}
		if pi.StartedPlayback != 0 && len(pi.Piece.Content) > 0 {
			// Resume offset for file-backed content.
			content := make(map[string]any, len(pi.Piece.Content)+1)
			for k, v := range pi.Piece.Content {
				content[k] = v
			}
			content["seek"] = now - pi.StartedPlayback
			continuation.Piece.Content = content
		}
		_ = c.PieceInstances.Insert(continuation)
	}
}

// completeHold crops every hold-extended continuation with the same
// truncation strategy as a manual stop. Unrelated pieces are untouched.
func completeHold(c *playcache.Cache, now int64) {
	for _, pi := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
		return p.Infinite != nil && p.Infinite.FromHold && !p.Reset
	}) {
		if pi.StoppedPlayback != 0 || pi.UserDurationMs != 0 {
			continue
		}
		stopPieceInstance(c, pi, now)
	}
}
