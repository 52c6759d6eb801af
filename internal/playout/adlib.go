// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
	"github.com/onairhq/showrunner/internal/store"
)

// AdLibPieceStart plays an ad-lib: either inserted directly into the current
// part instance, or (when queued, explicitly or by the item itself) as a
// dynamically inserted part ranked right after current and set as next.
func (e *Engine) AdLibPieceStart(ctx context.Context, playlistID, partInstanceID, adLibID string, queued bool) error {
	return e.runUser(ctx, playlistID, "playout.adLibStart", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		if playlist.CurrentPartInstanceID != partInstanceID {
			return ErrNotCurrentPart
		}

		adLib, err := e.resolveAdLib(ctx, c, adLibID)
		if err != nil {
			return err
		}
		return e.startAdLib(c, adLib, queued)
	})
}

// BaselineAdLibStart plays a rundown-baseline ad-lib (one not attached to
// any part), typically a global graphic or audio bed.
func (e *Engine) BaselineAdLibStart(ctx context.Context, playlistID, partInstanceID, adLibID string, queued bool) error {
	return e.runUser(ctx, playlistID, "playout.baselineAdLibStart", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		if playlist.CurrentPartInstanceID != partInstanceID {
			return ErrNotCurrentPart
		}

		adLib, ok := c.AdLibPieces.FindOne(adLibID)
		if !ok || adLib.PartID != "" {
			return fmt.Errorf("baseline ad-lib %s: %w", adLibID, store.ErrNotFound)
		}
		return e.startAdLib(c, adLib, queued)
	})
}

// resolveAdLib looks the source up among the rundown ad-libs first and the
// studio bucket second.
func (e *Engine) resolveAdLib(ctx context.Context, c *playcache.Cache, adLibID string) (models.AdLibPiece, error) {
	if adLib, ok := c.AdLibPieces.FindOne(adLibID); ok {
		return adLib, nil
	}
	bucket, err := e.cols.BucketAdLibs.FindOne(ctx, adLibID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.AdLibPiece{}, fmt.Errorf("ad-lib %s: %w", adLibID, store.ErrNotFound)
		}
		return models.AdLibPiece{}, err
	}
	return models.AdLibPiece{
		ID:                 bucket.ID,
		Name:               bucket.Name,
		Rank:               bucket.Rank,
		SourceLayerID:      bucket.SourceLayerID,
		OutputLayerID:      bucket.OutputLayerID,
		LifeSpan:           bucket.LifeSpan,
		ToBeQueued:         bucket.ToBeQueued,
		ExpectedDurationMs: bucket.ExpectedDurationMs,
		Content:            bucket.Content,
	}, nil
}

func (e *Engine) startAdLib(c *playcache.Cache, adLib models.AdLibPiece, queued bool) error {
	if queued || adLib.ToBeQueued {
		return e.queueAdLibPart(c, adLib)
	}
	return e.insertAdLibPiece(c, adLib)
}

// insertAdLibPiece drops the ad-lib directly onto the current part instance,
// stopping whatever occupies its source layer.
func (e *Engine) insertAdLibPiece(c *playcache.Cache, adLib models.AdLibPiece) error {
	current, ok := c.CurrentPartInstance()
	if !ok {
		return ErrNotCurrentPart
	}
	now := nowMs()
	if adLib.SourceLayerID != "" {
		for _, existing := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.PartInstanceID == current.ID && !p.Reset &&
				p.Piece.SourceLayerID == adLib.SourceLayerID
		}) {
			if existing.StartedPlayback != 0 && existing.StoppedPlayback == 0 && existing.UserDurationMs == 0 {
				stopPieceInstance(c, existing, now)
			}
		}
	}

	_ = c.PieceInstances.Insert(models.PieceInstance{
		ID:              uuid.NewString(),
		ActivationID:    current.ActivationID,
		RundownID:       current.RundownID,
		PartInstanceID:  current.ID,
		Piece:           pieceFromAdLib(adLib, current),
		AdLibSourceID:   adLib.ID,
		FromAdLib:       true,
		StartedPlayback: now,
	})
	e.deferRecompute(c, "ad-lib inserted")
	e.log.Info().
		Str("playlist_id", c.PlaylistID).
		Str("ad_lib", adLib.Name).
		Msg("ad-lib piece started")
	return nil
}

// queueAdLibPart synthesizes a dynamically inserted part directly after the
// current one, carries applicable infinites forward, and sets it as next.
func (e *Engine) queueAdLibPart(c *playcache.Cache, adLib models.AdLibPiece) error {
	current, ok := c.CurrentPartInstance()
	if !ok {
		return ErrNotCurrentPart
	}

	part := models.Part{
		ID:                             uuid.NewString(),
		SegmentID:                      current.SegmentID,
		RundownID:                      current.RundownID,
		ExternalID:                     "",
		Title:                          adLib.Name,
		Rank:                           adLibPartRank(c, current),
		ExpectedDurationMs:             adLib.ExpectedDurationMs,
		DynamicallyInsertedAfterPartID: current.Part.ID,
	}
	if err := c.Parts.Insert(part); err != nil {
		return err
	}

	piece := pieceFromAdLib(adLib, current)
	piece.PartID = part.ID
	if err := c.Pieces.Insert(piece); err != nil {
		return err
	}

	instance := setNextPartInCache(c, part, false, 0)
	// Tag the ad-lib source on the queued piece instance.
	c.PieceInstances.UpdateAll(
		func(pi models.PieceInstance) bool {
			return pi.PartInstanceID == instance.ID && pi.Piece.ID == piece.ID
		},
		func(pi models.PieceInstance) models.PieceInstance {
			pi.AdLibSourceID = adLib.ID
			pi.FromAdLib = true
			return pi
		})

	e.deferRecompute(c, "ad-lib queued")
	e.log.Info().
		Str("playlist_id", c.PlaylistID).
		Str("ad_lib", adLib.Name).
		Str("part_id", part.ID).
		Msg("ad-lib part queued")
	return nil
}

// adLibPartRank places the dynamic part strictly between the current part
// and its next scripted sibling.
func adLibPartRank(c *playcache.Cache, current models.PartInstance) float64 {
	base := current.Part.Rank
	next := base + 1
	found := false
	for _, p := range c.Parts.FindAll(func(p models.Part) bool { return p.SegmentID == current.SegmentID }) {
		if p.Rank > base && (!found || p.Rank < next) {
			next = p.Rank
			found = true
		}
	}
	return base + (next-base)/2
}

func pieceFromAdLib(adLib models.AdLibPiece, current models.PartInstance) models.Piece {
	return models.Piece{
		ID:            uuid.NewString(),
		PartID:        current.Part.ID,
		SegmentID:     current.SegmentID,
		RundownID:     current.RundownID,
		Name:          adLib.Name,
		SourceLayerID: adLib.SourceLayerID,
		OutputLayerID: adLib.OutputLayerID,
		DurationMs:    adLib.ExpectedDurationMs,
		LifeSpan:      adLib.LifeSpan,
		Content:       adLib.Content,
	}
}

// StickySourceLayer restarts the most recently played piece on a source
// layer, reusing its content rather than the ingest-defined original.
func (e *Engine) StickySourceLayer(ctx context.Context, playlistID, sourceLayerID string) error {
	return e.runUser(ctx, playlistID, "playout.stickyLayer", func(ctx context.Context, c *playcache.Cache) error {
		playlist := c.Playlist()
		if !playlist.Active {
			return ErrNotActive
		}
		current, ok := c.CurrentPartInstance()
		if !ok {
			return ErrNotCurrentPart
		}

		candidates := c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.Piece.SourceLayerID == sourceLayerID &&
				p.Piece.AllowStickyResume &&
				p.StartedPlayback != 0 &&
				!p.Piece.Virtual && !p.Reset
		})
		if len(candidates) == 0 {
			return fmt.Errorf("no sticky piece on layer %s: %w", sourceLayerID, store.ErrNotFound)
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].StartedPlayback > candidates[j].StartedPlayback
		})
		source := candidates[0]

		now := nowMs()
		for _, existing := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool {
			return p.PartInstanceID == current.ID && !p.Reset &&
				p.Piece.SourceLayerID == sourceLayerID
		}) {
			if existing.StartedPlayback != 0 && existing.StoppedPlayback == 0 && existing.UserDurationMs == 0 {
				stopPieceInstance(c, existing, now)
			}
		}

		revived := source.Piece
		revived.ID = uuid.NewString()
		revived.PartID = current.Part.ID
		revived.SegmentID = current.SegmentID
		revived.RundownID = current.RundownID
		_ = c.PieceInstances.Insert(models.PieceInstance{
			ID:              uuid.NewString(),
			ActivationID:    current.ActivationID,
			RundownID:       current.RundownID,
			PartInstanceID:  current.ID,
			Piece:           revived,
			FromAdLib:       true,
			StartedPlayback: now,
		})
		e.deferRecompute(c, "sticky layer resumed")
		return nil
	})
}
