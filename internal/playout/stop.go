// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
	"github.com/onairhq/showrunner/internal/store"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// StopPiecesOnLayers stops every currently-playing piece of the given part
// instance on the named source layers. Returns the stopped instance ids.
func (e *Engine) StopPiecesOnLayers(ctx context.Context, playlistID, partInstanceID string, sourceLayerIDs []string) ([]string, error) {
	var stopped []string
	err := e.runUser(ctx, playlistID, "playout.stopLayers", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		if playlist.CurrentPartInstanceID != partInstanceID {
			return ErrNotCurrentPart
		}

		layers := make(map[string]bool, len(sourceLayerIDs))
		for _, l := range sourceLayerIDs {
			layers[l] = true
		}
		now := nowMs()
		for _, pi := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.PartInstanceID == partInstanceID && !p.Reset
		}) {
			if !layers[pi.Piece.SourceLayerID] || pi.Piece.Virtual {
				continue
			}
			if pi.StartedPlayback == 0 || pi.StartedPlayback > now {
				continue // not on air yet
			}
			if pi.StoppedPlayback != 0 || pi.UserDurationMs != 0 {
				continue // already ended
			}
			stopPieceInstance(c, pi, now)
			stopped = append(stopped, pi.ID)
		}
		if len(stopped) > 0 {
			e.deferRecompute(c, "pieces stopped")
		}
		return nil
	})
	return stopped, err
}

// stopPieceInstance applies the lifespan-specific truncation: short-scoped
// pieces are cropped with a user duration; segment-end and rundown-end
// infinites additionally get a zero-content virtual continuation carrying a
// fresh infinite id, so later infinite evaluation finds a terminator.
func stopPieceInstance(c *playcache.Cache, pi models.PieceInstance, now int64) {
	duration := now - pi.StartedPlayback
	if duration <= 0 {
		duration = 1
	}
	c.PieceInstances.Update(pi.ID, func(cur models.PieceInstance) models.PieceInstance {
		cur.UserDurationMs = duration
		return cur
	})

	if !pi.Piece.LifeSpan.StopsOnVirtualPiece() {
		return
	}
	terminator := models.PieceInstance{
		ID:             uuid.NewString(),
		ActivationID:   pi.ActivationID,
		RundownID:      pi.RundownID,
		PartInstanceID: pi.PartInstanceID,
		Piece: models.Piece{
			ID:            uuid.NewString(),
			PartID:        pi.Piece.PartID,
			SegmentID:     pi.Piece.SegmentID,
			RundownID:     pi.Piece.RundownID,
			Name:          pi.Piece.Name + " (stopped)",
			SourceLayerID: pi.Piece.SourceLayerID,
			OutputLayerID: pi.Piece.OutputLayerID,
			LifeSpan:      pi.Piece.LifeSpan,
			Virtual:       true,
		},
		StartedPlayback: now,
		Infinite: &models.PieceInstanceInfinite{
			InfiniteInstanceID: uuid.NewString(),
			InfinitePieceID:    pi.Piece.ID,
		},
	}
	_ = c.PieceInstances.Insert(terminator)
}

// PieceTakeNow immediately plays a piece (template or historical instance)
// on the current part instance, outside the scripted flow.
func (e *Engine) PieceTakeNow(ctx context.Context, playlistID, partInstanceID, pieceOrInstanceID string) error {
	return e.runUser(ctx, playlistID, "playout.pieceTakeNow", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		if playlist.CurrentPartInstanceID != partInstanceID {
			return ErrNotCurrentPart
		}

		var piece models.Piece
		if p, ok := c.Pieces.FindOne(pieceOrInstanceID); ok {
			piece = p
		} else if pi, ok := c.PieceInstances.FindOne(pieceOrInstanceID); ok {
			piece = pi.Piece
		} else {
			return fmt.Errorf("piece %s: %w", pieceOrInstanceID, store.ErrNotFound)
		}

		instance, _ := c.PartInstances.FindOne(partInstanceID)
		now := nowMs()
		// A new copy on the same layer replaces whatever is playing there.
		for _, existing := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.PartInstanceID == partInstanceID && !p.Reset &&
				p.Piece.SourceLayerID == piece.SourceLayerID
		}) {
			if existing.StartedPlayback != 0 && existing.StoppedPlayback == 0 && existing.UserDurationMs == 0 {
				stopPieceInstance(c, existing, now)
			}
		}

		_ = c.PieceInstances.Insert(models.PieceInstance{
			ID:              uuid.NewString(),
			ActivationID:    instance.ActivationID,
			RundownID:       instance.RundownID,
			PartInstanceID:  partInstanceID,
			Piece:           piece,
			FromAdLib:       true,
			StartedPlayback: now,
		})
		e.deferRecompute(c, "piece take now")
		return nil
	})
}
