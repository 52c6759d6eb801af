// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onairhq/showrunner/internal/metrics"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
	"github.com/onairhq/showrunner/internal/playout"
	"github.com/onairhq/showrunner/internal/store"
)

// generated is the full blueprint output for one rundown tree.
type generated struct {
	segments []models.Segment
	parts    []models.Part
	pieces   []models.Piece
	adLibs   []models.AdLibPiece
	actions  []models.AdLibAction
}

// regenerateRundown is the core ingest apply: materialize the tree through
// the show style, diff against stored state, degrade unsafe changes to
// unsync markings, commit the rest, and recompute derived state.
func (r *Reconciler) regenerateRundown(ctx context.Context, playlistID string, tree models.IngestRundown, resync bool) error {
	rundownID := models.RundownID(r.studioID, tree.ExternalID)

	existing, err := r.cols.Rundowns.FindOne(ctx, rundownID)
	switch {
	case err == nil:
		if existing.Unsynced && !resync {
			metrics.RecordIngestOperation("regenerate", "rejected")
			return fmt.Errorf("rundown %s: %w", tree.ExternalID, ErrRundownUnsynced)
		}
	case errors.Is(err, store.ErrNotFound):
		if err := r.createRundownDocs(ctx, playlistID, rundownID, tree); err != nil {
			return err
		}
	default:
		return err
	}

	c, err := playcache.Load(ctx, r.cols, playlistID)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	c.Rundowns.Update(rundownID, func(rd models.Rundown) models.Rundown {
		rd.Name = tree.Name
		rd.Type = tree.Type
		if resync {
			rd.Unsynced = false
			rd.UnsyncedAt = 0
			rd.Notes = nil
		}
		rd.ModifiedAt = now
		return rd
	})
	if resync {
		c.Segments.UpdateAll(
			func(s models.Segment) bool { return s.RundownID == rundownID && s.Unsynced },
			func(s models.Segment) models.Segment {
				s.Unsynced = false
				s.UnsyncedReason = ""
				return s
			})
	}
	rundown, _ := c.Rundowns.FindOne(rundownID)

	gen, err := r.materialize(ctx, rundown, tree)
	if err != nil {
		c.Discard()
		metrics.RecordIngestOperation("regenerate", "error")
		return err
	}

	// Order before any mutation anchors the unsynced rank interpolation.
	prevOrder := orderedSegments(c, rundownID)

	segCh, partCh, pieceCh, adLibCh, actionCh, err := r.prepare(c, rundownID, gen)
	if err != nil {
		c.Discard()
		return err
	}

	// Pre-existing unsynced segments stay frozen until an explicit resync.
	frozen := make(map[string]models.SegmentUnsyncedReason)
	for _, s := range prevOrder {
		if s.Unsynced {
			frozen[s.ID] = s.UnsyncedReason
		}
	}

	outcome := "applied"
	if c.Playlist().Active {
		offending := r.findUnsafeRemovals(c, segCh, partCh)
		if len(offending) > 0 {
			if !r.allowUnsyncedSegments {
				r.markRundownUnsynced(c, rundownID, "ingest update conflicts with on-air state")
				r.deferTreeSave(c, rundownID, tree)
				if err := c.SaveAll(ctx); err != nil {
					metrics.RecordIngestOperation("regenerate", "error")
					return err
				}
				metrics.RecordIngestOperation("regenerate", "unsynced")
				return nil
			}
			for segID, reason := range offending {
				frozen[segID] = reason
				r.markSegmentUnsynced(c, segID, reason)
			}
			outcome = "unsynced"
		}
	}

	partSegment := partSegmentIndex(c, gen)
	segCh = dropForIDs(segCh, boolSet(frozen), func(s models.Segment) string { return s.ID })
	partCh = dropForIDs(partCh, boolSet(frozen), func(p models.Part) string { return p.SegmentID })
	pieceCh = dropForIDs(pieceCh, boolSet(frozen), func(p models.Piece) string { return p.SegmentID })
	adLibCh = dropForIDs(adLibCh, boolSet(frozen), func(a models.AdLibPiece) string { return partSegment[a.PartID] })
	actionCh = dropForIDs(actionCh, boolSet(frozen), func(a models.AdLibAction) string { return partSegment[a.PartID] })

	applyToTable(c.Segments, segCh)
	applyToTable(c.Parts, partCh)
	applyToTable(c.Pieces, pieceCh)
	applyToTable(c.AdLibPieces, adLibCh)
	applyToTable(c.AdLibActions, actionCh)

	r.orphanInstancesOfRemovedParts(c, rundownID)
	r.reinterpolateUnsyncedRanks(c, rundownID, prevOrder)

	touched := make(map[string]bool)
	for _, p := range partCh.Inserted {
		touched[p.SegmentID] = true
	}
	for _, p := range partCh.Changed {
		touched[p.SegmentID] = true
	}
	for _, p := range partCh.Removed {
		touched[p.SegmentID] = true
	}
	for segID := range touched {
		renormalizePartRanks(c, segID)
	}

	if c.Playlist().Active {
		r.syncLiveInstances(ctx, c, partCh.Changed)
		if len(partCh.Inserted) > 0 {
			err = playout.AfterInsertParts(ctx, c)
		} else {
			err = playout.EnsureNextPartIsValid(ctx, c)
		}
		if err != nil {
			c.Discard()
			metrics.RecordIngestOperation("regenerate", "error")
			return err
		}
	}

	r.deferExpectedPlayoutItems(c, rundownID)
	r.deferTreeSave(c, rundownID, tree)
	r.deferRecompute(c, "ingest update applied")

	if err := c.SaveAll(ctx); err != nil {
		metrics.RecordIngestOperation("regenerate", "error")
		return err
	}
	metrics.RecordIngestOperation("regenerate", outcome)
	metrics.IngestSegmentsRegenerated.Add(float64(len(segCh.Inserted) + len(segCh.Changed)))
	r.log.Info().
		Str("rundown_id", rundownID).
		Str("outcome", outcome).
		Int("segments_inserted", len(segCh.Inserted)).
		Int("segments_changed", len(segCh.Changed)).
		Int("segments_removed", len(segCh.Removed)).
		Int("parts_inserted", len(partCh.Inserted)).
		Int("parts_removed", len(partCh.Removed)).
		Msg("ingest rundown reconciled")
	return nil
}

// createRundownDocs writes the playlist and rundown shell documents so the
// playlist cache can scope to them.
func (r *Reconciler) createRundownDocs(ctx context.Context, playlistID, rundownID string, tree models.IngestRundown) error {
	now := time.Now().UnixMilli()
	_, err := r.cols.Playlists.FindOne(ctx, playlistID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = r.cols.Playlists.Insert(ctx, models.RundownPlaylist{
			ID:                playlistID,
			StudioID:          r.studioID,
			Name:              tree.Name,
			ExternalID:        models.SanitizeExternalID(tree.ExternalID),
			RundownIDsInOrder: []string{rundownID},
			CreatedAt:         now,
			ModifiedAt:        now,
		})
		if err != nil {
			return err
		}
	case err == nil:
		err = r.cols.Playlists.Update(ctx, playlistID, func(p models.RundownPlaylist) models.RundownPlaylist {
			for _, id := range p.RundownIDsInOrder {
				if id == rundownID {
					return p
				}
			}
			p.RundownIDsInOrder = append(p.RundownIDsInOrder, rundownID)
			p.ModifiedAt = now
			return p
		})
		if err != nil {
			return err
		}
	default:
		return err
	}

	return r.cols.Rundowns.Insert(ctx, models.Rundown{
		ID:         rundownID,
		ExternalID: tree.ExternalID,
		StudioID:   r.studioID,
		PlaylistID: playlistID,
		Name:       tree.Name,
		Type:       tree.Type,
		CreatedAt:  now,
		ModifiedAt: now,
	})
}

func (r *Reconciler) materialize(ctx context.Context, rundown models.Rundown, tree models.IngestRundown) (generated, error) {
	var gen generated
	for _, is := range tree.Segments {
		out, err := r.style.GenerateSegment(ctx, rundown, is)
		if err != nil {
			return gen, fmt.Errorf("generate segment %s: %w", is.ExternalID, err)
		}
		seg := out.Segment
		seg.Notes = out.Notes
		gen.segments = append(gen.segments, seg)
		gen.parts = append(gen.parts, out.Parts...)
		gen.pieces = append(gen.pieces, out.Pieces...)
		gen.adLibs = append(gen.adLibs, out.AdLibPieces...)
		gen.actions = append(gen.actions, out.AdLibActions...)
	}
	renormalizeGeneratedRanks(gen.parts)
	return gen, nil
}

func (r *Reconciler) prepare(c *playcache.Cache, rundownID string, gen generated) (
	PreparedChanges[models.Segment],
	PreparedChanges[models.Part],
	PreparedChanges[models.Piece],
	PreparedChanges[models.AdLibPiece],
	PreparedChanges[models.AdLibAction],
	error,
) {
	var (
		segCh    PreparedChanges[models.Segment]
		partCh   PreparedChanges[models.Part]
		pieceCh  PreparedChanges[models.Piece]
		adLibCh  PreparedChanges[models.AdLibPiece]
		actionCh PreparedChanges[models.AdLibAction]
		err      error
	)

	segCh, err = diffDocs(
		c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID }),
		gen.segments)
	if err != nil {
		return segCh, partCh, pieceCh, adLibCh, actionCh, err
	}
	// Ad-libbed parts are not ingest-sourced; they never diff away, and
	// neither does the content queued onto them.
	dynamicParts := make(map[string]bool)
	for _, p := range c.Parts.FindAll(func(p models.Part) bool {
		return p.RundownID == rundownID && p.IsDynamicallyInserted()
	}) {
		dynamicParts[p.ID] = true
	}
	partCh, err = diffDocs(
		c.Parts.FindAll(func(p models.Part) bool {
			return p.RundownID == rundownID && !p.IsDynamicallyInserted()
		}),
		gen.parts)
	if err != nil {
		return segCh, partCh, pieceCh, adLibCh, actionCh, err
	}
	pieceCh, err = diffDocs(
		c.Pieces.FindAll(func(p models.Piece) bool {
			return p.RundownID == rundownID && !p.Virtual && !dynamicParts[p.PartID]
		}),
		gen.pieces)
	if err != nil {
		return segCh, partCh, pieceCh, adLibCh, actionCh, err
	}
	adLibCh, err = diffDocs(
		c.AdLibPieces.FindAll(func(a models.AdLibPiece) bool { return a.RundownID == rundownID }),
		gen.adLibs)
	if err != nil {
		return segCh, partCh, pieceCh, adLibCh, actionCh, err
	}
	actionCh, err = diffDocs(
		c.AdLibActions.FindAll(func(a models.AdLibAction) bool { return a.RundownID == rundownID }),
		gen.actions)
	return segCh, partCh, pieceCh, adLibCh, actionCh, err
}

// findUnsafeRemovals returns the segments whose removal (or whose on-air
// part's removal) must be rejected while the playlist is active, keyed by
// segment id with the unsync reason to record.
func (r *Reconciler) findUnsafeRemovals(c *playcache.Cache, segCh PreparedChanges[models.Segment], partCh PreparedChanges[models.Part]) map[string]models.SegmentUnsyncedReason {
	protSegments, protParts := protectedEntities(c)
	offending := make(map[string]models.SegmentUnsyncedReason)
	for _, s := range segCh.Removed {
		if protSegments[s.ID] {
			offending[s.ID] = models.SegmentUnsyncedRemoved
		}
	}
	for _, p := range partCh.Removed {
		if protParts[p.ID] {
			if _, taken := offending[p.SegmentID]; !taken {
				offending[p.SegmentID] = models.SegmentUnsyncedChanged
			}
		}
	}
	return offending
}

// protectedEntities names the segment and part ids that must survive ingest
// while on air: the current part instance always, and the next one when the
// current part auto-nexts into it (the gateway may take it at any moment).
func protectedEntities(c *playcache.Cache) (segIDs, partIDs map[string]bool) {
	segIDs = make(map[string]bool)
	partIDs = make(map[string]bool)
	current, hasCurrent := c.CurrentPartInstance()
	if hasCurrent {
		segIDs[current.SegmentID] = true
		partIDs[current.Part.ID] = true
	}
	if next, ok := c.NextPartInstance(); ok && hasCurrent && current.Part.AutoNext {
		segIDs[next.SegmentID] = true
		partIDs[next.Part.ID] = true
	}
	return segIDs, partIDs
}

func (r *Reconciler) markSegmentUnsynced(c *playcache.Cache, segID string, reason models.SegmentUnsyncedReason) {
	c.Segments.Update(segID, func(s models.Segment) models.Segment {
		s.Unsynced = true
		s.UnsyncedReason = reason
		s.Notes = append(s.Notes, models.Note{
			Severity: models.NoteSeverityWarning,
			Message:  fmt.Sprintf("segment frozen against ingest (%s) while on air; resync to apply", reason),
			Origin:   models.NoteOrigin{SegmentExternalID: s.ExternalID},
		})
		return s
	})
	r.log.Warn().Str("segment_id", segID).Str("reason", string(reason)).Msg("segment degraded to unsynced")
}

func (r *Reconciler) markRundownUnsynced(c *playcache.Cache, rundownID, msg string) {
	now := time.Now().UnixMilli()
	c.Rundowns.Update(rundownID, func(rd models.Rundown) models.Rundown {
		rd.Unsynced = true
		rd.UnsyncedAt = now
		rd.Notes = append(rd.Notes, models.Note{
			Severity: models.NoteSeverityWarning,
			Message:  msg,
		})
		return rd
	})
	r.log.Warn().Str("rundown_id", rundownID).Msg("rundown degraded to unsynced")
}

// orphanInstancesOfRemovedParts tags every live part instance whose source
// part is gone, preserving playback history through ingest removals.
func (r *Reconciler) orphanInstancesOfRemovedParts(c *playcache.Cache, rundownID string) {
	c.PartInstances.UpdateAll(
		func(pi models.PartInstance) bool {
			if pi.RundownID != rundownID || pi.Reset || pi.Orphaned != "" {
				return false
			}
			_, exists := c.Parts.FindOne(pi.Part.ID)
			return !exists
		},
		func(pi models.PartInstance) models.PartInstance {
			pi.Orphaned = models.OrphanedDeletedPart
			return pi
		})
}

// reinterpolateUnsyncedRanks re-places every unsynced segment strictly
// between its surviving neighbors after the synced siblings moved.
func (r *Reconciler) reinterpolateUnsyncedRanks(c *playcache.Cache, rundownID string, prevOrder []models.Segment) {
	surviving := make(map[string]float64)
	for _, s := range orderedSegments(c, rundownID) {
		if !s.Unsynced {
			surviving[s.ID] = s.Rank
		}
	}
	// Both pre-existing and freshly frozen segments appear in prevOrder,
	// which is what anchors them to their old position.
	for _, s := range c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID && s.Unsynced }) {
		newRank := interpolateUnsyncedRank(s.ID, prevOrder, surviving)
		c.Segments.Update(s.ID, func(cur models.Segment) models.Segment {
			cur.Rank = newRank
			return cur
		})
	}
}

// syncLiveInstances runs the show style's sync hook for ingest-changed parts
// that have a current or next instance, so on-air content follows the
// newsroom without losing playback state.
func (r *Reconciler) syncLiveInstances(ctx context.Context, c *playcache.Cache, changed []models.Part) {
	if len(changed) == 0 {
		return
	}
	changedByID := make(map[string]models.Part, len(changed))
	for _, p := range changed {
		changedByID[p.ID] = p
	}
	playlist := c.Playlist()
	for _, instanceID := range []string{playlist.CurrentPartInstanceID, playlist.NextPartInstanceID} {
		if instanceID == "" {
			continue
		}
		pi, ok := c.PartInstances.FindOne(instanceID)
		if !ok {
			continue
		}
		part, isChanged := changedByID[pi.Part.ID]
		if !isChanged {
			continue
		}
		if r.style.SyncIngestUpdateToPartInstance(ctx, &pi, part) {
			c.PartInstances.Replace(pi)
		}
	}
}

// deferExpectedPlayoutItems recomputes the derived preparation list for one
// rundown after a successful flush. Content-bearing pieces each yield one
// item; stale items are removed by id.
func (r *Reconciler) deferExpectedPlayoutItems(c *playcache.Cache, rundownID string) {
	pieces := c.Pieces.FindAll(func(p models.Piece) bool { return p.RundownID == rundownID })
	c.DeferAfterSave(func(ctx context.Context) {
		desired := make([]models.ExpectedPlayoutItem, 0, len(pieces))
		desiredIDs := make(map[string]bool, len(pieces))
		for _, p := range pieces {
			if len(p.Content) == 0 {
				continue
			}
			sub, _ := p.Content["deviceSubType"].(string)
			if sub == "" {
				sub = "media"
			}
			item := models.ExpectedPlayoutItem{
				ID:            models.HashID(p.ID, "expected"),
				RundownID:     rundownID,
				PartID:        p.PartID,
				PieceID:       p.ID,
				DeviceSubType: sub,
				Content:       p.Content,
			}
			desired = append(desired, item)
			desiredIDs[item.ID] = true
		}

		existing, err := r.cols.ExpectedPlayoutItems.Find(ctx, func(e models.ExpectedPlayoutItem) bool {
			return e.RundownID == rundownID
		})
		if err != nil {
			r.log.Error().Err(err).Str("rundown_id", rundownID).Msg("reading expected playout items failed")
			return
		}
		changes := store.BulkChanges[models.ExpectedPlayoutItem]{Upserts: desired}
		for _, e := range existing {
			if !desiredIDs[e.ID] {
				changes.Removals = append(changes.Removals, e.ID)
			}
		}
		if err := r.cols.ExpectedPlayoutItems.BulkWrite(ctx, changes); err != nil {
			r.log.Error().Err(err).Str("rundown_id", rundownID).Msg("writing expected playout items failed")
		}
	})
}

// deleteRundown removes one rundown and everything under it, degrading to a
// whole-rundown unsync when the rundown is on air.
func (r *Reconciler) deleteRundown(ctx context.Context, playlistID, rundownID string) error {
	c, err := playcache.Load(ctx, r.cols, playlistID)
	if err != nil {
		return err
	}
	if _, ok := c.Rundowns.FindOne(rundownID); !ok {
		c.Discard()
		return fmt.Errorf("rundown %s: %w", rundownID, store.ErrNotFound)
	}

	if c.Playlist().Active {
		onAir := false
		if current, ok := c.CurrentPartInstance(); ok && current.RundownID == rundownID {
			onAir = true
		}
		if next, ok := c.NextPartInstance(); ok && next.RundownID == rundownID {
			onAir = true
		}
		if onAir {
			r.markRundownUnsynced(c, rundownID, "rundown deleted by the newsroom while on air; deactivate or resync to release")
			if err := c.SaveAll(ctx); err != nil {
				metrics.RecordIngestOperation("rundownDelete", "error")
				return err
			}
			metrics.RecordIngestOperation("rundownDelete", "unsynced")
			return nil
		}
	}

	for _, s := range c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID }) {
		c.Segments.Remove(s.ID)
	}
	for _, p := range c.Parts.FindAll(func(p models.Part) bool { return p.RundownID == rundownID }) {
		c.Parts.Remove(p.ID)
	}
	for _, p := range c.Pieces.FindAll(func(p models.Piece) bool { return p.RundownID == rundownID }) {
		c.Pieces.Remove(p.ID)
	}
	for _, a := range c.AdLibPieces.FindAll(func(a models.AdLibPiece) bool { return a.RundownID == rundownID }) {
		c.AdLibPieces.Remove(a.ID)
	}
	for _, a := range c.AdLibActions.FindAll(func(a models.AdLibAction) bool { return a.RundownID == rundownID }) {
		c.AdLibActions.Remove(a.ID)
	}
	r.orphanInstancesOfRemovedParts(c, rundownID)
	c.Rundowns.Remove(rundownID)

	remaining := 0
	c.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		order := p.RundownIDsInOrder[:0]
		for _, id := range p.RundownIDsInOrder {
			if id != rundownID {
				order = append(order, id)
			}
		}
		p.RundownIDsInOrder = order
		p.ModifiedAt = time.Now().UnixMilli()
		remaining = len(order)
		return p
	})
	if remaining == 0 {
		c.Playlists.Remove(playlistID)
	}

	c.DeferAfterSave(func(ctx context.Context) {
		if err := r.cols.IngestDataCache.Remove(ctx, rundownID); err != nil && !errors.Is(err, store.ErrNotFound) {
			r.log.Error().Err(err).Str("rundown_id", rundownID).Msg("removing ingest data cache failed")
		}
		existing, err := r.cols.ExpectedPlayoutItems.Find(ctx, func(e models.ExpectedPlayoutItem) bool {
			return e.RundownID == rundownID
		})
		if err != nil {
			return
		}
		var changes store.BulkChanges[models.ExpectedPlayoutItem]
		for _, e := range existing {
			changes.Removals = append(changes.Removals, e.ID)
		}
		if err := r.cols.ExpectedPlayoutItems.BulkWrite(ctx, changes); err != nil {
			r.log.Error().Err(err).Str("rundown_id", rundownID).Msg("removing expected playout items failed")
		}
	})
	r.deferRecompute(c, "rundown deleted")

	if err := c.SaveAll(ctx); err != nil {
		metrics.RecordIngestOperation("rundownDelete", "error")
		return err
	}
	metrics.RecordIngestOperation("rundownDelete", "applied")
	r.log.Info().Str("rundown_id", rundownID).Msg("rundown deleted")
	return nil
}

func applyToTable[T store.Doc](t *playcache.Table[T], p PreparedChanges[T]) {
	for _, doc := range p.Inserted {
		t.Replace(doc)
	}
	for _, doc := range p.Changed {
		t.Replace(doc)
	}
	for _, doc := range p.Removed {
		t.Remove(doc.DocID())
	}
}

func boolSet(m map[string]models.SegmentUnsyncedReason) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// partSegmentIndex maps part id → segment id across both stored and
// generated parts, for scoping ad-libs to their segment.
func partSegmentIndex(c *playcache.Cache, gen generated) map[string]string {
	out := make(map[string]string)
	for _, p := range c.Parts.FindAll(func(models.Part) bool { return true }) {
		out[p.ID] = p.SegmentID
	}
	for _, p := range gen.parts {
		out[p.ID] = p.SegmentID
	}
	return out
}
