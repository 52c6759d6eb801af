// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package blueprint

import (
	"context"
	"fmt"
	"sort"

	"github.com/onairhq/showrunner/internal/models"
)

// DefaultShowStyle is the builtin transform. It reads a conventional payload
// shape: each ingest part may carry "pieces", "adLibs" and "actions" lists
// plus scalar part flags ("float", "invalid", "autoNext", ...). Stations
// with bespoke formats replace this with their own ShowStyle.
type DefaultShowStyle struct{}

var _ ShowStyle = (*DefaultShowStyle)(nil)

// NewDefaultShowStyle returns the builtin show style.
func NewDefaultShowStyle() *DefaultShowStyle { return &DefaultShowStyle{} }

// GenerateSegment materializes one segment and everything under it. Ids are
// stable hashes of the external ids, so regenerating an unchanged segment
// yields byte-identical documents.
func (d *DefaultShowStyle) GenerateSegment(_ context.Context, rundown models.Rundown, in models.IngestSegment) (*SegmentOutput, error) {
	if in.ExternalID == "" {
		return nil, fmt.Errorf("ingest segment without externalId in rundown %s", rundown.ExternalID)
	}

	name := in.Name
	if name == "" {
		name = in.ExternalID
	}
	out := &SegmentOutput{
		Segment: models.Segment{
			ID:         models.SegmentID(rundown.ID, in.ExternalID),
			RundownID:  rundown.ID,
			ExternalID: in.ExternalID,
			Name:       name,
			Rank:       in.Rank,
		},
	}

	for i, ip := range in.Parts {
		part, err := d.generatePart(rundown, out.Segment, ip, i)
		if err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, part)

		pieces, notes := d.generatePieces(rundown, out.Segment, part, ip)
		out.Pieces = append(out.Pieces, pieces...)
		out.Notes = append(out.Notes, notes...)

		out.AdLibPieces = append(out.AdLibPieces, d.generateAdLibs(rundown, part, ip)...)
		out.AdLibActions = append(out.AdLibActions, d.generateActions(rundown, part, ip)...)
	}

	sort.SliceStable(out.Parts, func(i, j int) bool {
		return out.Parts[i].Rank < out.Parts[j].Rank
	})
	return out, nil
}

func (d *DefaultShowStyle) generatePart(rundown models.Rundown, seg models.Segment, in models.IngestPart, index int) (models.Part, error) {
	if in.ExternalID == "" {
		return models.Part{}, fmt.Errorf("ingest part without externalId in segment %s", seg.ExternalID)
	}
	title := in.Name
	if title == "" {
		title = in.ExternalID
	}
	rank := in.Rank
	if rank == 0 && index > 0 {
		rank = float64(index)
	}
	p := in.Payload
	return models.Part{
		ID:         models.PartID(rundown.ID, in.ExternalID),
		SegmentID:  seg.ID,
		RundownID:  rundown.ID,
		ExternalID: in.ExternalID,
		Title:      title,
		Rank:       rank,

		Invalid: payloadBool(p, "invalid"),
		Floated: payloadBool(p, "float"),

		ExpectedDurationMs: payloadInt64(p, "expectedDuration"),
		AutoNext:           payloadBool(p, "autoNext"),
		AutoNextOverlapMs:  payloadInt64(p, "autoNextOverlap"),

		InTransitionDurationMs:  payloadInt64(p, "inTransitionDuration"),
		DisableNextInTransition: payloadBool(p, "disableNextInTransition"),
	}, nil
}

func (d *DefaultShowStyle) generatePieces(rundown models.Rundown, seg models.Segment, part models.Part, in models.IngestPart) ([]models.Piece, []models.Note) {
	var pieces []models.Piece
	var notes []models.Note
	for i, pp := range payloadList(in.Payload, "pieces") {
		extID := payloadString(pp, "externalId")
		if extID == "" {
			extID = fmt.Sprintf("%s_piece_%d", in.ExternalID, i)
		}
		name := payloadString(pp, "name")
		if name == "" {
			name = extID
		}
		sourceLayer := payloadString(pp, "sourceLayerId")
		if sourceLayer == "" {
			notes = append(notes, models.Note{
				Severity: models.NoteSeverityWarning,
				Message:  fmt.Sprintf("piece %q has no source layer; it will not be stoppable by layer", name),
				Origin: models.NoteOrigin{
					SegmentExternalID: seg.ExternalID,
					PartExternalID:    in.ExternalID,
					PieceExternalID:   extID,
				},
			})
		}
		pieces = append(pieces, models.Piece{
			ID:         models.PieceID(part.ID, extID),
			PartID:     part.ID,
			SegmentID:  seg.ID,
			RundownID:  rundown.ID,
			ExternalID: extID,
			Name:       name,

			SourceLayerID: sourceLayer,
			OutputLayerID: payloadString(pp, "outputLayerId"),

			EnableStartMs: payloadInt64(pp, "enableStart"),
			DurationMs:    payloadInt64(pp, "duration"),

			LifeSpan:     parseLifeSpan(payloadString(pp, "lifespan")),
			ExtendOnHold: payloadBool(pp, "extendOnHold"),

			AllowStickyResume: payloadBool(pp, "allowStickyResume"),

			Content: payloadMap(pp, "content"),
		})
	}
	return pieces, notes
}

func (d *DefaultShowStyle) generateAdLibs(rundown models.Rundown, part models.Part, in models.IngestPart) []models.AdLibPiece {
	var adlibs []models.AdLibPiece
	for i, ap := range payloadList(in.Payload, "adLibs") {
		extID := payloadString(ap, "externalId")
		if extID == "" {
			extID = fmt.Sprintf("%s_adlib_%d", in.ExternalID, i)
		}
		name := payloadString(ap, "name")
		if name == "" {
			name = extID
		}
		rank := payloadFloat(ap, "rank")
		if rank == 0 {
			rank = float64(i)
		}
		adlibs = append(adlibs, models.AdLibPiece{
			ID:        models.HashID(part.ID, "adlib_"+extID),
			RundownID: rundown.ID,
			PartID:    part.ID,
			Name:      name,
			Rank:      rank,

			SourceLayerID: payloadString(ap, "sourceLayerId"),
			OutputLayerID: payloadString(ap, "outputLayerId"),

			LifeSpan:   parseLifeSpan(payloadString(ap, "lifespan")),
			ToBeQueued: payloadBool(ap, "toBeQueued"),

			ExpectedDurationMs: payloadInt64(ap, "expectedDuration"),
			Content:            payloadMap(ap, "content"),
		})
	}
	return adlibs
}

func (d *DefaultShowStyle) generateActions(rundown models.Rundown, part models.Part, in models.IngestPart) []models.AdLibAction {
	var actions []models.AdLibAction
	for i, ap := range payloadList(in.Payload, "actions") {
		actionID := payloadString(ap, "actionId")
		if actionID == "" {
			continue
		}
		name := payloadString(ap, "display")
		if name == "" {
			name = actionID
		}
		actions = append(actions, models.AdLibAction{
			ID:        models.HashID(part.ID, fmt.Sprintf("action_%s_%d", actionID, i)),
			RundownID: rundown.ID,
			PartID:    part.ID,
			ActionID:  actionID,
			Name:      name,
			UserData:  payloadMap(ap, "userData"),
		})
	}
	return actions
}

// GetEndStateForPart records which source layers were still on air when the
// part was taken out. The playout layer feeds this back on the next take so
// continuity-aware show styles can chain graphics; the builtin style only
// snapshots.
func (d *DefaultShowStyle) GetEndStateForPart(_ context.Context, _ map[string]any, instance models.PartInstance, pieces []models.PieceInstance, ts int64) map[string]any {
	var activeLayers []string
	for _, pi := range pieces {
		if pi.IsActiveAt(ts) && pi.Piece.SourceLayerID != "" {
			activeLayers = append(activeLayers, pi.Piece.SourceLayerID)
		}
	}
	sort.Strings(activeLayers)
	return map[string]any{
		"partInstanceId": instance.ID,
		"takeCount":      instance.TakeCount,
		"activeLayers":   activeLayers,
	}
}

// SyncIngestUpdateToPartInstance copies the editorially-safe fields of an
// ingest edit onto the live instance: title, durations and transition flags
// follow the newsroom, but identity, rank and playback history never move.
func (d *DefaultShowStyle) SyncIngestUpdateToPartInstance(_ context.Context, instance *models.PartInstance, updated models.Part) bool {
	if instance.IsTaken && instance.Timings.StoppedPlayback != 0 {
		return false
	}
	instance.Part.Title = updated.Title
	instance.Part.ExpectedDurationMs = updated.ExpectedDurationMs
	instance.Part.AutoNext = updated.AutoNext
	instance.Part.AutoNextOverlapMs = updated.AutoNextOverlapMs
	instance.Part.InTransitionDurationMs = updated.InTransitionDurationMs
	instance.Part.DisableNextInTransition = updated.DisableNextInTransition
	instance.Part.Invalid = updated.Invalid
	instance.Part.Notes = updated.Notes
	return true
}

// OnTake is a no-op for the builtin style.
func (d *DefaultShowStyle) OnTake(context.Context, models.RundownPlaylist, models.PartInstance) error {
	return nil
}

// OnPostTake is a no-op for the builtin style.
func (d *DefaultShowStyle) OnPostTake(context.Context, models.RundownPlaylist, models.PartInstance) error {
	return nil
}
