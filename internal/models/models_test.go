// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package models

import (
	"testing"
)

func TestHashIDStable(t *testing.T) {
	a := HashID("studio0", "rundown_abcde")
	b := HashID("studio0", "rundown_abcde")
	if a != b {
		t.Errorf("HashID not stable: %q vs %q", a, b)
	}
	if len(a) != hashIDLength {
		t.Errorf("HashID length = %d, want %d", len(a), hashIDLength)
	}
}

func TestHashIDDistinctInputs(t *testing.T) {
	pairs := [][2]string{
		{"studio0", "rundown_a"},
		{"studio0", "rundown_b"},
		{"studio1", "rundown_a"},
	}
	seen := map[string]string{}
	for _, p := range pairs {
		id := HashID(p[0], p[1])
		if prev, ok := seen[id]; ok {
			t.Errorf("collision: %v and %s map to %s", p, prev, id)
		}
		seen[id] = p[0] + "/" + p[1]
	}
}

func TestLifeSpanClassification(t *testing.T) {
	tests := []struct {
		lifespan PieceLifeSpan
		infinite bool
		virtual  bool
	}{
		{LifeSpanWithinPart, false, false},
		{LifeSpanOnSegmentChange, true, false},
		{LifeSpanOnSegmentEnd, true, true},
		{LifeSpanOnRundownChange, true, false},
		{LifeSpanOnRundownEnd, true, true},
	}
	for _, tt := range tests {
		if got := tt.lifespan.IsInfinite(); got != tt.infinite {
			t.Errorf("%s.IsInfinite() = %v, want %v", tt.lifespan, got, tt.infinite)
		}
		if got := tt.lifespan.StopsOnVirtualPiece(); got != tt.virtual {
			t.Errorf("%s.StopsOnVirtualPiece() = %v, want %v", tt.lifespan, got, tt.virtual)
		}
	}
}

func TestPieceInstanceIsActiveAt(t *testing.T) {
	base := PieceInstance{StartedPlayback: 1000}

	if base.IsActiveAt(999) {
		t.Error("piece should not be active before startedPlayback")
	}
	if !base.IsActiveAt(1000) {
		t.Error("piece should be active at startedPlayback")
	}

	stopped := base
	stopped.StoppedPlayback = 2000
	if stopped.IsActiveAt(2000) {
		t.Error("piece should not be active at stoppedPlayback")
	}
	if !stopped.IsActiveAt(1999) {
		t.Error("piece should be active before stoppedPlayback")
	}

	truncated := base
	truncated.UserDurationMs = 500
	if truncated.IsActiveAt(1500) {
		t.Error("piece should not be active past its user duration")
	}
	if !truncated.IsActiveAt(1499) {
		t.Error("piece should be active within its user duration")
	}

	var never PieceInstance
	if never.IsActiveAt(1000) {
		t.Error("piece without startedPlayback should never be active")
	}
}

func TestIngestRundownSegmentHelpers(t *testing.T) {
	r := IngestRundown{
		ExternalID: "abcde",
		Segments: []IngestSegment{
			{ExternalID: "segment0", Parts: []IngestPart{{ExternalID: "part0"}, {ExternalID: "part1"}}},
			{ExternalID: "segment1", Parts: []IngestPart{{ExternalID: "part2"}}},
		},
	}

	if s := r.FindSegment("segment1"); s == nil || s.ExternalID != "segment1" {
		t.Fatalf("FindSegment(segment1) = %v", s)
	}
	if s := r.FindSegment("nope"); s != nil {
		t.Errorf("FindSegment(nope) = %v, want nil", s)
	}

	if !r.RemoveSegment("segment0") {
		t.Error("RemoveSegment(segment0) = false, want true")
	}
	if len(r.Segments) != 1 || r.Segments[0].ExternalID != "segment1" {
		t.Errorf("after removal segments = %v", r.Segments)
	}
	if r.RemoveSegment("segment0") {
		t.Error("RemoveSegment of absent segment should return false")
	}

	seg := r.FindSegment("segment1")
	if p := seg.FindPart("part2"); p == nil {
		t.Error("FindPart(part2) = nil")
	}
	if !seg.RemovePart("part2") {
		t.Error("RemovePart(part2) = false, want true")
	}
	if len(seg.Parts) != 0 {
		t.Errorf("after removal parts = %v", seg.Parts)
	}
}

func TestPartFlags(t *testing.T) {
	p := Part{}
	if !p.IsPlayable() {
		t.Error("plain part should be playable")
	}
	if p.IsDynamicallyInserted() {
		t.Error("plain part should not be dynamically inserted")
	}

	p.Floated = true
	if p.IsPlayable() {
		t.Error("floated part should not be playable")
	}

	q := Part{DynamicallyInsertedAfterPartID: "part0"}
	if !q.IsDynamicallyInserted() {
		t.Error("queued part should report dynamically inserted")
	}
}
