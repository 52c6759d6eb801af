// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package ingest reconciles pushed newsroom story trees against stored
// rundown state. Updates that are unsafe to apply while on air never fail;
// they degrade the affected segment or rundown to an unsynced marking and
// apply everything else.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/blueprint"
	"github.com/onairhq/showrunner/internal/metrics"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
	"github.com/onairhq/showrunner/internal/queue"
	"github.com/onairhq/showrunner/internal/store"
)

// TimelineRequester requests a device timeline recompute. Satisfied by
// timeline.Publisher; nil-checked so tests can run without one.
type TimelineRequester interface {
	RequestRecompute(ctx context.Context, playlistID, reason string)
}

// Reconciler applies ingest pushes. All mutations run through the
// serialization queue at ingest priority, so they never interleave with
// playout operations on the same playlist.
type Reconciler struct {
	log      zerolog.Logger
	cols     *store.Collections
	q        *queue.Queue
	style    blueprint.ShowStyle
	timeline TimelineRequester

	studioID              string
	allowUnsyncedSegments bool
}

// New creates a Reconciler. timeline may be nil.
func New(log zerolog.Logger, cols *store.Collections, q *queue.Queue, style blueprint.ShowStyle, timeline TimelineRequester, studioID string, allowUnsyncedSegments bool) *Reconciler {
	return &Reconciler{
		log:                   log.With().Str("component", "ingest").Logger(),
		cols:                  cols,
		q:                     q,
		style:                 style,
		timeline:              timeline,
		studioID:              studioID,
		allowUnsyncedSegments: allowUnsyncedSegments,
	}
}

// playlistIDFor resolves the playlist owning a rundown external id. For a
// rundown not yet stored, the playlist id is derived from the grouping key.
func (r *Reconciler) playlistIDFor(ctx context.Context, rundownExternalID string) (playlistID, rundownID string) {
	rundownID = models.RundownID(r.studioID, rundownExternalID)
	if rd, err := r.cols.Rundowns.FindOne(ctx, rundownID); err == nil {
		return rd.PlaylistID, rundownID
	}
	return models.PlaylistID(r.studioID, models.SanitizeExternalID(rundownExternalID)), rundownID
}

func (r *Reconciler) run(ctx context.Context, playlistID, label string, fn func(context.Context) error) error {
	return r.q.RunExclusive(ctx, playlistID, queue.PriorityIngest, label, fn)
}

// HandleRundownCreate replaces the whole stored tree for a rundown with the
// pushed one, creating playlist and rundown documents as needed.
func (r *Reconciler) HandleRundownCreate(ctx context.Context, data models.IngestRundown) error {
	playlistID, _ := r.playlistIDFor(ctx, data.ExternalID)
	return r.run(ctx, playlistID, "ingest.rundownCreate", func(ctx context.Context) error {
		return r.regenerateRundown(ctx, playlistID, data, false)
	})
}

// HandleRundownUpdate is create-or-replace; the newsroom system does not
// distinguish reliably between the two.
func (r *Reconciler) HandleRundownUpdate(ctx context.Context, data models.IngestRundown) error {
	playlistID, _ := r.playlistIDFor(ctx, data.ExternalID)
	return r.run(ctx, playlistID, "ingest.rundownUpdate", func(ctx context.Context) error {
		return r.regenerateRundown(ctx, playlistID, data, false)
	})
}

// HandleRundownDelete removes a rundown and everything under it. While the
// playlist is active and the rundown is on air, the delete degrades to a
// whole-rundown unsync instead.
func (r *Reconciler) HandleRundownDelete(ctx context.Context, rundownExternalID string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, "ingest.rundownDelete", func(ctx context.Context) error {
		return r.deleteRundown(ctx, playlistID, rundownID)
	})
}

// HandleSegmentCreate inserts or replaces one segment in the cached tree and
// regenerates the rundown.
func (r *Reconciler) HandleSegmentCreate(ctx context.Context, rundownExternalID string, seg models.IngestSegment) error {
	return r.handleSegmentUpsert(ctx, rundownExternalID, seg, "ingest.segmentCreate")
}

// HandleSegmentUpdate is create-or-replace at segment granularity.
func (r *Reconciler) HandleSegmentUpdate(ctx context.Context, rundownExternalID string, seg models.IngestSegment) error {
	return r.handleSegmentUpsert(ctx, rundownExternalID, seg, "ingest.segmentUpdate")
}

func (r *Reconciler) handleSegmentUpsert(ctx context.Context, rundownExternalID string, seg models.IngestSegment, label string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, label, func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		if existing := tree.FindSegment(seg.ExternalID); existing != nil {
			*existing = seg
		} else {
			tree.Segments = append(tree.Segments, seg)
			sort.SliceStable(tree.Segments, func(i, j int) bool {
				return tree.Segments[i].Rank < tree.Segments[j].Rank
			})
		}
		return r.regenerateRundown(ctx, playlistID, tree, false)
	})
}

// HandleSegmentDelete removes one segment from the cached tree and
// regenerates. Deleting the on-air segment degrades to an unsync marking.
func (r *Reconciler) HandleSegmentDelete(ctx context.Context, rundownExternalID, segmentExternalID string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, "ingest.segmentDelete", func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		if !tree.RemoveSegment(segmentExternalID) {
			return fmt.Errorf("segment %s in rundown %s: %w", segmentExternalID, rundownExternalID, store.ErrNotFound)
		}
		return r.regenerateRundown(ctx, playlistID, tree, false)
	})
}

// HandleSegmentRanksUpdate applies an externally pushed reorder: the named
// segments adopt the pushed ranks as sort keys and all synced segments are
// renormalized to consecutive ranks. No blueprint regeneration happens.
func (r *Reconciler) HandleSegmentRanksUpdate(ctx context.Context, rundownExternalID string, ranks map[string]float64) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, "ingest.segmentRanksUpdate", func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		rundown, err := r.cols.Rundowns.FindOne(ctx, rundownID)
		if err != nil {
			return err
		}
		if rundown.Unsynced {
			metrics.RecordIngestOperation("segmentRanksUpdate", "rejected")
			return ErrRundownUnsynced
		}

		c, err := playcache.Load(ctx, r.cols, playlistID)
		if err != nil {
			return err
		}

		newRanks := applySegmentRankUpdates(orderedSegments(c, rundownID), ranks)
		for extID, rank := range newRanks {
			id := models.SegmentID(rundownID, extID)
			newRank := rank
			c.Segments.Update(id, func(s models.Segment) models.Segment {
				s.Rank = newRank
				return s
			})
			if ts := tree.FindSegment(extID); ts != nil {
				ts.Rank = rank
			}
		}
		sort.SliceStable(tree.Segments, func(i, j int) bool {
			return tree.Segments[i].Rank < tree.Segments[j].Rank
		})

		r.deferTreeSave(c, rundownID, tree)
		r.deferRecompute(c, "segment ranks updated")
		if err := c.SaveAll(ctx); err != nil {
			metrics.RecordIngestOperation("segmentRanksUpdate", "error")
			return err
		}
		metrics.RecordIngestOperation("segmentRanksUpdate", "applied")
		return nil
	})
}

// HandlePartCreate inserts or replaces one part in the cached tree.
func (r *Reconciler) HandlePartCreate(ctx context.Context, rundownExternalID, segmentExternalID string, part models.IngestPart) error {
	return r.handlePartUpsert(ctx, rundownExternalID, segmentExternalID, part, "ingest.partCreate")
}

// HandlePartUpdate is create-or-replace at part granularity.
func (r *Reconciler) HandlePartUpdate(ctx context.Context, rundownExternalID, segmentExternalID string, part models.IngestPart) error {
	return r.handlePartUpsert(ctx, rundownExternalID, segmentExternalID, part, "ingest.partUpdate")
}

func (r *Reconciler) handlePartUpsert(ctx context.Context, rundownExternalID, segmentExternalID string, part models.IngestPart, label string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, label, func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		seg := tree.FindSegment(segmentExternalID)
		if seg == nil {
			return fmt.Errorf("segment %s in rundown %s: %w", segmentExternalID, rundownExternalID, store.ErrNotFound)
		}
		if existing := seg.FindPart(part.ExternalID); existing != nil {
			*existing = part
		} else {
			seg.Parts = append(seg.Parts, part)
			sort.SliceStable(seg.Parts, func(i, j int) bool {
				return seg.Parts[i].Rank < seg.Parts[j].Rank
			})
		}
		return r.regenerateRundown(ctx, playlistID, tree, false)
	})
}

// HandlePartDelete removes one part from the cached tree. Deleting the
// on-air part degrades its segment to unsynced.
func (r *Reconciler) HandlePartDelete(ctx context.Context, rundownExternalID, segmentExternalID, partExternalID string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, "ingest.partDelete", func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		seg := tree.FindSegment(segmentExternalID)
		if seg == nil {
			return fmt.Errorf("segment %s in rundown %s: %w", segmentExternalID, rundownExternalID, store.ErrNotFound)
		}
		if !seg.RemovePart(partExternalID) {
			return fmt.Errorf("part %s in segment %s: %w", partExternalID, segmentExternalID, store.ErrNotFound)
		}
		return r.regenerateRundown(ctx, playlistID, tree, false)
	})
}

// RegenerateRundown is the explicit resync: it clears every unsynced marking
// and rebuilds the rundown from the cached ingest tree.
func (r *Reconciler) RegenerateRundown(ctx context.Context, rundownExternalID string) error {
	playlistID, rundownID := r.playlistIDFor(ctx, rundownExternalID)
	return r.run(ctx, playlistID, "ingest.regenerate", func(ctx context.Context) error {
		tree, err := r.loadTree(ctx, rundownID)
		if err != nil {
			return err
		}
		return r.regenerateRundown(ctx, playlistID, tree, true)
	})
}

// loadTree reads the cached ingest tree for a rundown. Not-found is fatal to
// the single ingest call; segment/part level updates need a prior rundown
// push.
func (r *Reconciler) loadTree(ctx context.Context, rundownID string) (models.IngestRundown, error) {
	cached, err := r.cols.IngestDataCache.FindOne(ctx, rundownID)
	if err != nil {
		return models.IngestRundown{}, fmt.Errorf("ingest data for rundown %s: %w", rundownID, err)
	}
	return cached.Data, nil
}

func (r *Reconciler) deferTreeSave(c *playcache.Cache, rundownID string, tree models.IngestRundown) {
	c.DeferAfterSave(func(ctx context.Context) {
		err := r.cols.IngestDataCache.Upsert(ctx, models.IngestDataCache{
			ID:        rundownID,
			RundownID: rundownID,
			Data:      tree,
			Modified:  time.Now().UnixMilli(),
		})
		if err != nil {
			r.log.Error().Err(err).Str("rundown_id", rundownID).Msg("persisting ingest data cache failed")
		}
	})
}

func (r *Reconciler) deferRecompute(c *playcache.Cache, reason string) {
	if r.timeline == nil || !c.Playlist().Active {
		return
	}
	playlistID := c.PlaylistID
	c.DeferAfterSave(func(ctx context.Context) {
		r.timeline.RequestRecompute(ctx, playlistID, reason)
	})
}
