// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package blueprint defines the show-style transform: the pluggable logic
// that turns raw ingest payloads into playable parts and pieces, and that
// gets consulted at playout decision points.
package blueprint

import (
	"context"

	"github.com/onairhq/showrunner/internal/models"
)

// SegmentOutput is everything a show style materializes for one ingest
// segment. The reconciler diffs this output against the stored documents.
type SegmentOutput struct {
	Segment      models.Segment
	Parts        []models.Part
	Pieces       []models.Piece
	AdLibPieces  []models.AdLibPiece
	AdLibActions []models.AdLibAction
	Notes        []models.Note
}

// ShowStyle is the transform between ingest data and playable documents.
//
// GenerateSegment is the only required entry point; the playout hooks are
// best-effort and must not mutate store state directly.
type ShowStyle interface {
	// GenerateSegment materializes the parts, pieces and ad-libs for one
	// ingest segment. Notes attached to the output are persisted on the
	// segment for UI surfacing.
	GenerateSegment(ctx context.Context, rundown models.Rundown, in models.IngestSegment) (*SegmentOutput, error)

	// GetEndStateForPart snapshots the outgoing part at take time. The
	// result is stored on the playlist as PreviousPartEndState and handed
	// back on the next call, letting the show style carry continuity
	// decisions across takes. ts is the take timestamp in unix ms.
	GetEndStateForPart(ctx context.Context, previous map[string]any, instance models.PartInstance, pieces []models.PieceInstance, ts int64) map[string]any

	// SyncIngestUpdateToPartInstance reconciles an ingest edit of a part
	// onto its on-air or next instance. Returning false leaves the instance
	// untouched (the edit applies only to the source part).
	SyncIngestUpdateToPartInstance(ctx context.Context, instance *models.PartInstance, updated models.Part) bool

	// OnTake runs before the take commits; an error aborts the take.
	OnTake(ctx context.Context, playlist models.RundownPlaylist, taken models.PartInstance) error

	// OnPostTake runs after the take committed; errors are logged only.
	OnPostTake(ctx context.Context, playlist models.RundownPlaylist, taken models.PartInstance) error
}

// Payload field readers. Ingest payloads arrive as map[string]any decoded
// from JSON, so numbers are float64.

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadBool(p map[string]any, key string) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}

func payloadInt64(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func payloadMap(p map[string]any, key string) map[string]any {
	if v, ok := p[key].(map[string]any); ok {
		return v
	}
	return nil
}

func payloadList(p map[string]any, key string) []map[string]any {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// parseLifeSpan maps a payload lifespan string onto a known PieceLifeSpan,
// defaulting to within-part for unknown or missing values.
func parseLifeSpan(s string) models.PieceLifeSpan {
	switch models.PieceLifeSpan(s) {
	case models.LifeSpanOnSegmentChange,
		models.LifeSpanOnSegmentEnd,
		models.LifeSpanOnRundownChange,
		models.LifeSpanOnRundownEnd:
		return models.PieceLifeSpan(s)
	default:
		return models.LifeSpanWithinPart
	}
}
