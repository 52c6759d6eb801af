// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playout

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
)

// orderedPlaylistParts returns every part of the playlist in playout order:
// rundowns in playlist order, segments by rank, parts by rank.
func orderedPlaylistParts(c *playcache.Cache) []models.Part {
	var out []models.Part
	for _, rundownID := range c.Playlist().RundownIDsInOrder {
		segs := c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID })
		sort.SliceStable(segs, func(i, j int) bool {
			if segs[i].Rank != segs[j].Rank {
				return segs[i].Rank < segs[j].Rank
			}
			return segs[i].ID < segs[j].ID
		})
		for _, seg := range segs {
			parts := c.Parts.FindAll(func(p models.Part) bool { return p.SegmentID == seg.ID })
			sort.SliceStable(parts, func(i, j int) bool {
				if parts[i].Rank != parts[j].Rank {
					return parts[i].Rank < parts[j].Rank
				}
				return parts[i].ID < parts[j].ID
			})
			out = append(out, parts...)
		}
	}
	return out
}

// SelectNextPart picks the first playable part after the given instance's
// position, or the first playable part of the playlist when after is nil.
// An orphaned instance (its part removed by ingest) is located by its
// remembered segment and rank instead of its part id.
func SelectNextPart(c *playcache.Cache, after *models.PartInstance) (models.Part, bool) {
	parts := orderedPlaylistParts(c)

	start := 0
	if after != nil {
		idx := -1
		for i, p := range parts {
			if p.ID == after.Part.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Part gone: resume after the last part at or before the
			// remembered position in its segment.
			for i, p := range parts {
				if p.SegmentID == after.SegmentID && p.Rank <= after.Part.Rank {
					idx = i
				}
			}
		}
		if idx < 0 {
			// Whole segment gone: fall back to the first part of the next
			// surviving segment by walking the segment order.
			segs := orderedSegmentIDs(c)
			segPos := -1
			for i, id := range segs {
				if id == after.SegmentID {
					segPos = i
					break
				}
			}
			if segPos >= 0 {
				for i, p := range parts {
					if indexOf(segs, p.SegmentID) > segPos {
						idx = i - 1
						break
					}
				}
			}
		}
		start = idx + 1
	}

	for i := start; i < len(parts); i++ {
		if parts[i].IsPlayable() {
			return parts[i], true
		}
	}
	return models.Part{}, false
}

func orderedSegmentIDs(c *playcache.Cache) []string {
	var out []string
	for _, rundownID := range c.Playlist().RundownIDsInOrder {
		segs := c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID })
		sort.SliceStable(segs, func(i, j int) bool {
			if segs[i].Rank != segs[j].Rank {
				return segs[i].Rank < segs[j].Rank
			}
			return segs[i].ID < segs[j].ID
		})
		for _, s := range segs {
			out = append(out, s.ID)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// createPartInstance materializes a fresh instance of a part, copies in its
// ingest pieces, and continues any on-air infinites from the current part
// instance into it.
func createPartInstance(c *playcache.Cache, part models.Part, takeCount int) models.PartInstance {
	playlist := c.Playlist()
	instance := models.PartInstance{
		ID:           uuid.NewString(),
		ActivationID: playlist.ActivationID,
		RundownID:    part.RundownID,
		SegmentID:    part.SegmentID,
		Part:         part,
		TakeCount:    takeCount,
	}
	if part.IsDynamicallyInserted() {
		instance.Orphaned = models.OrphanedAdLibPart
	}
	_ = c.PartInstances.Insert(instance)

	for _, piece := range c.Pieces.FindAll(func(p models.Piece) bool { return p.PartID == part.ID && !p.Virtual }) {
		_ = c.PieceInstances.Insert(models.PieceInstance{
			ID:             uuid.NewString(),
			ActivationID:   playlist.ActivationID,
			RundownID:      part.RundownID,
			PartInstanceID: instance.ID,
			Piece:          piece,
		})
	}

	continueInfinitesInto(c, &instance)
	return instance
}

// continueInfinitesInto carries on-air infinite pieces from the current part
// instance into the target instance, respecting each lifespan's scope and
// stopping at parts that carry their own piece on the same source layer.
func continueInfinitesInto(c *playcache.Cache, target *models.PartInstance) {
	current, ok := c.CurrentPartInstance()
	if !ok || current.ID == target.ID {
		return
	}

	ownLayers := make(map[string]bool)
	for _, pi := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool { return p.PartInstanceID == target.ID }) {
		if pi.Piece.SourceLayerID != "" {
			ownLayers[pi.Piece.SourceLayerID] = true
		}
	}

	for _, pi := range c.PieceInstances.FindAll(func(p models.PieceInstance) bool { return p.PartInstanceID == current.ID }) {
		if !pi.Piece.LifeSpan.IsInfinite() || pi.Piece.Virtual {
			continue
		}
		if pi.StoppedPlayback != 0 || pi.UserDurationMs != 0 || pi.Reset {
			continue
		}
		if !lifespanReaches(pi.Piece.LifeSpan, current, *target) {
			continue
		}
		if ownLayers[pi.Piece.SourceLayerID] {
			continue
		}

		infiniteID := ""
		if pi.Infinite != nil {
			infiniteID = pi.Infinite.InfiniteInstanceID
		} else {
			infiniteID = uuid.NewString()
			origin := pi
			origin.Infinite = &models.PieceInstanceInfinite{
				InfiniteInstanceID: infiniteID,
				InfinitePieceID:    pi.Piece.ID,
			}
			c.PieceInstances.Replace(origin)
		}

		_ = c.PieceInstances.Insert(models.PieceInstance{
			ID:              uuid.NewString(),
			ActivationID:    target.ActivationID,
			RundownID:       target.RundownID,
			PartInstanceID:  target.ID,
			Piece:           pi.Piece,
			StartedPlayback: pi.StartedPlayback,
			Infinite: &models.PieceInstanceInfinite{
				InfiniteInstanceID: infiniteID,
				InfinitePieceID:    pi.Piece.ID,
				FromPreviousPart:   true,
			},
		})
	}
}

// lifespanReaches reports whether an infinite lifespan started in from's
// part extends into to's part.
func lifespanReaches(l models.PieceLifeSpan, from, to models.PartInstance) bool {
	switch l {
	case models.LifeSpanOnSegmentChange, models.LifeSpanOnSegmentEnd:
		return from.SegmentID == to.SegmentID
	case models.LifeSpanOnRundownChange, models.LifeSpanOnRundownEnd:
		return from.RundownID == to.RundownID
	default:
		return false
	}
}

// setNextPartInCache points the playlist's next pointer at a fresh instance
// of the given part, resetting any stale unplayed next instance first.
func setNextPartInCache(c *playcache.Cache, part models.Part, manual bool, offsetMs int64) models.PartInstance {
	resetStaleNext(c)

	takeCount := 0
	if current, ok := c.CurrentPartInstance(); ok {
		takeCount = current.TakeCount + 1
	}
	instance := createPartInstance(c, part, takeCount)

	c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		p.NextPartInstanceID = instance.ID
		p.NextTimeOffset = offsetMs
		p.NextPartManual = manual
		return p
	})
	return instance
}

// resetStaleNext marks the current unplayed next instance (and its pieces)
// reset so it no longer shadows the part it was created from.
func resetStaleNext(c *playcache.Cache) {
	next, ok := c.NextPartInstance()
	if !ok || next.IsTaken {
		return
	}
	c.PartInstances.Update(next.ID, func(pi models.PartInstance) models.PartInstance {
		pi.Reset = true
		return pi
	})
	c.PieceInstances.UpdateAll(
		func(pi models.PieceInstance) bool { return pi.PartInstanceID == next.ID },
		func(pi models.PieceInstance) models.PieceInstance {
			pi.Reset = true
			return pi
		})
}

// clearNextPart drops the next pointer entirely.
func clearNextPart(c *playcache.Cache) {
	resetStaleNext(c)
	c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		p.NextPartInstanceID = ""
		p.NextTimeOffset = 0
		p.NextPartManual = false
		return p
	})
}

// EnsureNextPartIsValid re-evaluates the next pointer after ingest changed
// the part pool. A manual, still-valid next is left alone; anything else is
// re-selected from the current position.
func EnsureNextPartIsValid(_ context.Context, c *playcache.Cache) error {
	playlist := c.Playlist()
	if !playlist.Active {
		return nil
	}

	if playlist.NextPartInstanceID != "" {
		next, ok := c.NextPartInstance()
		if ok && !next.Reset {
			if part, exists := c.Parts.FindOne(next.Part.ID); exists && part.IsPlayable() {
				if playlist.NextPartManual {
					return nil
				}
				// Auto-selected next: keep it only if it is still what
				// selection would produce.
				var after *models.PartInstance
				if current, hasCurrent := c.CurrentPartInstance(); hasCurrent {
					after = &current
				}
				if selected, found := SelectNextPart(c, after); found && selected.ID == part.ID {
					return nil
				}
			}
		}
	}

	var after *models.PartInstance
	if current, ok := c.CurrentPartInstance(); ok {
		after = &current
	}
	if part, found := SelectNextPart(c, after); found {
		setNextPartInCache(c, part, false, 0)
	} else {
		clearNextPart(c)
	}
	return nil
}

// AfterInsertParts re-runs next selection after ingest inserted parts, so a
// new part directly after the current one becomes next unless the operator
// pinned one manually.
func AfterInsertParts(ctx context.Context, c *playcache.Cache) error {
	return EnsureNextPartIsValid(ctx, c)
}
