// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package blueprint

import (
	"context"
	"testing"

	"github.com/onairhq/showrunner/internal/models"
)

func testRundown() models.Rundown {
	return models.Rundown{
		ID:         models.RundownID("studio0", "RO1"),
		ExternalID: "RO1",
		StudioID:   "studio0",
		Name:       "Morning Show",
	}
}

func TestDefaultShowStyle_GenerateSegment(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	in := models.IngestSegment{
		ExternalID: "seg1",
		Name:       "Headlines",
		Rank:       1,
		Parts: []models.IngestPart{
			{
				ExternalID: "part1",
				Name:       "Opener",
				Rank:       0,
				Payload: map[string]any{
					"expectedDuration": float64(30000),
					"autoNext":         true,
					"pieces": []any{
						map[string]any{
							"externalId":    "cam1",
							"name":          "Camera 1",
							"sourceLayerId": "camera",
							"outputLayerId": "pgm",
						},
						map[string]any{
							"externalId":    "lower-third",
							"name":          "Name Strap",
							"sourceLayerId": "gfx",
							"lifespan":      "segment-end",
							"extendOnHold":  true,
							"enableStart":   float64(2000),
						},
					},
					"adLibs": []any{
						map[string]any{
							"externalId":    "breaking",
							"name":          "Breaking Banner",
							"sourceLayerId": "gfx",
							"toBeQueued":    false,
						},
					},
				},
			},
			{
				ExternalID: "part2",
				Name:       "VT",
				Rank:       1,
				Payload: map[string]any{
					"float": true,
				},
			},
		},
	}

	out, err := style.GenerateSegment(context.Background(), testRundown(), in)
	if err != nil {
		t.Fatalf("GenerateSegment failed: %v", err)
	}

	if out.Segment.Name != "Headlines" {
		t.Errorf("Expected segment name Headlines, got %q", out.Segment.Name)
	}
	if out.Segment.ID != models.SegmentID(testRundown().ID, "seg1") {
		t.Errorf("Segment id not derived from external id")
	}

	if len(out.Parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(out.Parts))
	}
	opener := out.Parts[0]
	if opener.Title != "Opener" || opener.ExpectedDurationMs != 30000 || !opener.AutoNext {
		t.Errorf("Part flags not honored: %+v", opener)
	}
	if !out.Parts[1].Floated {
		t.Errorf("Expected part2 to be floated")
	}

	if len(out.Pieces) != 2 {
		t.Fatalf("Expected 2 pieces, got %d", len(out.Pieces))
	}
	strap := out.Pieces[1]
	if strap.LifeSpan != models.LifeSpanOnSegmentEnd {
		t.Errorf("Expected segment-end lifespan, got %q", strap.LifeSpan)
	}
	if !strap.ExtendOnHold || strap.EnableStartMs != 2000 {
		t.Errorf("Piece payload fields not honored: %+v", strap)
	}
	if strap.PartID != opener.ID || strap.SegmentID != out.Segment.ID {
		t.Errorf("Piece parent ids wrong: %+v", strap)
	}

	if len(out.AdLibPieces) != 1 || out.AdLibPieces[0].Name != "Breaking Banner" {
		t.Errorf("Expected 1 ad-lib piece, got %+v", out.AdLibPieces)
	}
}

func TestDefaultShowStyle_GenerateSegmentDeterministic(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	in := models.IngestSegment{
		ExternalID: "seg1",
		Rank:       2,
		Parts: []models.IngestPart{
			{ExternalID: "p1", Payload: map[string]any{
				"pieces": []any{map[string]any{"externalId": "x", "sourceLayerId": "cam"}},
			}},
		},
	}

	a, err := style.GenerateSegment(context.Background(), testRundown(), in)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	b, err := style.GenerateSegment(context.Background(), testRundown(), in)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if a.Segment.ID != b.Segment.ID || a.Parts[0].ID != b.Parts[0].ID || a.Pieces[0].ID != b.Pieces[0].ID {
		t.Error("Regenerating an unchanged segment must yield identical ids")
	}
}

func TestDefaultShowStyle_MissingSourceLayerNote(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	in := models.IngestSegment{
		ExternalID: "seg1",
		Parts: []models.IngestPart{
			{ExternalID: "p1", Payload: map[string]any{
				"pieces": []any{map[string]any{"externalId": "orphan", "name": "No Layer"}},
			}},
		},
	}

	out, err := style.GenerateSegment(context.Background(), testRundown(), in)
	if err != nil {
		t.Fatalf("GenerateSegment failed: %v", err)
	}
	if len(out.Notes) != 1 {
		t.Fatalf("Expected 1 warning note, got %d", len(out.Notes))
	}
	if out.Notes[0].Severity != models.NoteSeverityWarning {
		t.Errorf("Expected warning severity, got %q", out.Notes[0].Severity)
	}
	if out.Notes[0].Origin.PieceExternalID != "orphan" {
		t.Errorf("Note origin should reference the piece, got %+v", out.Notes[0].Origin)
	}
}

func TestDefaultShowStyle_MissingExternalIDRejected(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	if _, err := style.GenerateSegment(context.Background(), testRundown(), models.IngestSegment{}); err == nil {
		t.Error("Expected error for segment without externalId")
	}
	in := models.IngestSegment{ExternalID: "seg1", Parts: []models.IngestPart{{}}}
	if _, err := style.GenerateSegment(context.Background(), testRundown(), in); err == nil {
		t.Error("Expected error for part without externalId")
	}
}

func TestDefaultShowStyle_GetEndStateForPart(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	instance := models.PartInstance{ID: "pi1", TakeCount: 3}
	pieces := []models.PieceInstance{
		{Piece: models.Piece{SourceLayerID: "gfx"}, StartedPlayback: 1000},
		{Piece: models.Piece{SourceLayerID: "camera"}, StartedPlayback: 1000, StoppedPlayback: 4000},
		{Piece: models.Piece{SourceLayerID: "vt"}, StartedPlayback: 1000},
	}

	state := style.GetEndStateForPart(context.Background(), nil, instance, pieces, 5000)
	layers, ok := state["activeLayers"].([]string)
	if !ok {
		t.Fatalf("Expected activeLayers in end state, got %+v", state)
	}
	if len(layers) != 2 || layers[0] != "gfx" || layers[1] != "vt" {
		t.Errorf("Expected [gfx vt], got %v", layers)
	}
}

func TestDefaultShowStyle_SyncIngestUpdate(t *testing.T) {
	t.Parallel()

	style := NewDefaultShowStyle()
	instance := &models.PartInstance{
		ID: "pi1",
		Part: models.Part{
			ID:    "part1",
			Title: "Old Title",
			Rank:  5,
		},
	}
	updated := models.Part{
		ID:                 "part1",
		Title:              "New Title",
		Rank:               9,
		ExpectedDurationMs: 15000,
		AutoNext:           true,
	}

	if !style.SyncIngestUpdateToPartInstance(context.Background(), instance, updated) {
		t.Fatal("Expected sync to apply")
	}
	if instance.Part.Title != "New Title" || instance.Part.ExpectedDurationMs != 15000 || !instance.Part.AutoNext {
		t.Errorf("Safe fields not synced: %+v", instance.Part)
	}
	if instance.Part.Rank != 5 {
		t.Errorf("Rank must not move on sync, got %v", instance.Part.Rank)
	}

	finished := &models.PartInstance{
		IsTaken: true,
		Timings: models.PartInstanceTimings{StoppedPlayback: 1234},
	}
	if style.SyncIngestUpdateToPartInstance(context.Background(), finished, updated) {
		t.Error("Finished instances must not be synced")
	}
}
