// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package ingest

import (
	"math"
	"sort"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playcache"
)

// rankEpsilon is the fixed step used when interpolating an unsynced segment
// directly after its surviving predecessor. Synced ranks are renormalized to
// consecutive integers, so predecessor+epsilon always stays strictly below
// the following neighbor.
const rankEpsilon = 1e-9

// minSegmentRank is the rank assigned to an unsynced segment with no
// surviving predecessor, pinning it to the front of the rundown.
const minSegmentRank = float64(math.MinInt32)

// applySegmentRankUpdates implements the external rank push: the named
// segments take their new rank values as sort keys, the full segment list is
// stably re-sorted (an explicitly updated segment wins a tie against a
// non-updated one), and synced segments are renormalized to the consecutive
// ranks 1..n. Unsynced segments are excluded from renormalization and
// re-interpolated after their nearest surviving predecessor.
//
// Returns the new rank per segment external id.
func applySegmentRankUpdates(segments []models.Segment, updates map[string]float64) map[string]float64 {
	// segments arrives in pre-update order; it anchors both tie-breaking and
	// the unsynced interpolation below.
	type entry struct {
		seg     models.Segment
		key     float64
		updated bool
	}

	entries := make([]entry, 0, len(segments))
	for _, s := range segments {
		if s.Unsynced {
			continue
		}
		e := entry{seg: s, key: s.Rank}
		if r, ok := updates[s.ExternalID]; ok {
			e.key = r
			e.updated = true
		}
		entries = append(entries, e)
	}

	// An explicitly updated segment wins a tie against a passive one on the
	// same key; otherwise pre-update order decides.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		if entries[i].updated != entries[j].updated {
			return entries[i].updated
		}
		return false
	})

	out := make(map[string]float64, len(segments))
	survivingRank := make(map[string]float64, len(entries))
	for i, e := range entries {
		rank := float64(i + 1)
		out[e.seg.ExternalID] = rank
		survivingRank[e.seg.ID] = rank
	}
	for _, s := range segments {
		if s.Unsynced {
			out[s.ExternalID] = interpolateUnsyncedRank(s.ID, segments, survivingRank)
		}
	}
	return out
}

// interpolateUnsyncedRank places an unsynced segment strictly between its
// surviving neighbors. prevOrder is the segment order before the update;
// survivingRank gives the post-update rank of every synced survivor.
func interpolateUnsyncedRank(unsyncedID string, prevOrder []models.Segment, survivingRank map[string]float64) float64 {
	idx := -1
	for i, s := range prevOrder {
		if s.ID == unsyncedID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return minSegmentRank
	}

	prev := math.NaN()
	for i := idx - 1; i >= 0; i-- {
		if r, ok := survivingRank[prevOrder[i].ID]; ok {
			prev = r
			break
		}
	}
	if math.IsNaN(prev) {
		return minSegmentRank
	}

	next := math.NaN()
	for i := idx + 1; i < len(prevOrder); i++ {
		if r, ok := survivingRank[prevOrder[i].ID]; ok {
			next = r
			break
		}
	}
	candidate := prev + rankEpsilon
	if !math.IsNaN(next) && candidate >= next {
		return prev + (next-prev)/2
	}
	return candidate
}

// orderedSegments returns the rundown's segments sorted by rank, ties broken
// by id.
func orderedSegments(c *playcache.Cache, rundownID string) []models.Segment {
	segs := c.Segments.FindAll(func(s models.Segment) bool { return s.RundownID == rundownID })
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Rank != segs[j].Rank {
			return segs[i].Rank < segs[j].Rank
		}
		return segs[i].ID < segs[j].ID
	})
	return segs
}

// orderedParts returns a segment's parts sorted by rank, ties broken by id.
func orderedParts(c *playcache.Cache, segmentID string) []models.Part {
	parts := c.Parts.FindAll(func(p models.Part) bool { return p.SegmentID == segmentID })
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Rank != parts[j].Rank {
			return parts[i].Rank < parts[j].Rank
		}
		return parts[i].ID < parts[j].ID
	})
	return parts
}

// renormalizeGeneratedRanks rewrites freshly generated parts to the same
// consecutive integer ranks the store keeps, so an unchanged ingest tree
// diffs clean against previously renormalized documents.
func renormalizeGeneratedRanks(parts []models.Part) {
	bySegment := make(map[string][]int)
	for i, p := range parts {
		bySegment[p.SegmentID] = append(bySegment[p.SegmentID], i)
	}
	for _, idxs := range bySegment {
		sort.SliceStable(idxs, func(a, b int) bool {
			pa, pb := parts[idxs[a]], parts[idxs[b]]
			if pa.Rank != pb.Rank {
				return pa.Rank < pb.Rank
			}
			return pa.ID < pb.ID
		})
		for rank, i := range idxs {
			parts[i].Rank = float64(rank)
		}
	}
}

// renormalizePartRanks rewrites the parts of a segment to consecutive
// integer ranks in their current order. Dynamically inserted parts keep
// their fractional position between siblings.
func renormalizePartRanks(c *playcache.Cache, segmentID string) {
	parts := orderedParts(c, segmentID)
	rank := 0.0
	for _, p := range parts {
		if p.IsDynamicallyInserted() {
			continue
		}
		if p.Rank != rank {
			id := p.ID
			newRank := rank
			c.Parts.Update(id, func(cur models.Part) models.Part {
				cur.Rank = newRank
				return cur
			})
		}
		rank++
	}
}
