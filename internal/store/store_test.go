// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/onairhq/showrunner/internal/models"
)

// capturedChanges is a test Publisher capturing change notifications.
type capturedChanges struct {
	mu      sync.Mutex
	changes []DocChange
}

func (c *capturedChanges) PublishDocChanges(_ context.Context, changes []DocChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, changes...)
}

func (c *capturedChanges) all() []DocChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DocChange, len(c.changes))
	copy(out, c.changes)
	return out
}

func openTestStore(t *testing.T) (*Store, *capturedChanges) {
	t.Helper()
	s, err := Open(Options{Path: ""})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	captured := &capturedChanges{}
	s.SetPublisher(captured)
	return s, captured
}

func TestCollectionCRUD(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	segments := NewCollection[models.Segment](s, CollSegments)

	seg := models.Segment{ID: "seg1", RundownID: "ro1", ExternalID: "segment0", Name: "Opening", Rank: 1}
	if err := segments.Insert(ctx, seg); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := segments.Insert(ctx, seg); err == nil {
		t.Error("second insert of same id should fail")
	}

	got, err := segments.FindOne(ctx, "seg1")
	if err != nil {
		t.Fatalf("findOne: %v", err)
	}
	if got.Name != "Opening" || got.Rank != 1 {
		t.Errorf("findOne = %+v", got)
	}

	if err := segments.Update(ctx, "seg1", func(s models.Segment) models.Segment {
		s.Rank = 2
		return s
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = segments.FindOne(ctx, "seg1")
	if got.Rank != 2 {
		t.Errorf("rank after update = %v, want 2", got.Rank)
	}

	if err := segments.Update(ctx, "missing", func(s models.Segment) models.Segment { return s }); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}

	if err := segments.Remove(ctx, "seg1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := segments.FindOne(ctx, "seg1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("findOne after remove = %v, want ErrNotFound", err)
	}
	// Removing again is a no-op.
	if err := segments.Remove(ctx, "seg1"); err != nil {
		t.Errorf("remove of absent doc = %v, want nil", err)
	}
}

func TestCollectionFindFilters(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	parts := NewCollection[models.Part](s, CollParts)

	for _, p := range []models.Part{
		{ID: "p1", SegmentID: "segA", Rank: 1},
		{ID: "p2", SegmentID: "segB", Rank: 2},
		{ID: "p3", SegmentID: "segA", Rank: 3},
	} {
		if err := parts.Insert(ctx, p); err != nil {
			t.Fatalf("insert %s: %v", p.ID, err)
		}
	}

	segA, err := parts.Find(ctx, func(p models.Part) bool { return p.SegmentID == "segA" })
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(segA) != 2 {
		t.Fatalf("find segA returned %d parts, want 2", len(segA))
	}
	// Sorted by id.
	if segA[0].ID != "p1" || segA[1].ID != "p3" {
		t.Errorf("find order = %s,%s", segA[0].ID, segA[1].ID)
	}

	all, _ := parts.Find(ctx, nil)
	if len(all) != 3 {
		t.Errorf("find nil filter returned %d, want 3", len(all))
	}
}

func TestBulkWriteAndNotifications(t *testing.T) {
	s, captured := openTestStore(t)
	ctx := context.Background()
	segments := NewCollection[models.Segment](s, CollSegments)

	if err := segments.Insert(ctx, models.Segment{ID: "keep", Rank: 0}); err != nil {
		t.Fatal(err)
	}
	if err := segments.Insert(ctx, models.Segment{ID: "gone", Rank: 1}); err != nil {
		t.Fatal(err)
	}

	err := segments.BulkWrite(ctx, BulkChanges[models.Segment]{
		Upserts: []models.Segment{
			{ID: "keep", Rank: 5},  // update
			{ID: "fresh", Rank: 2}, // insert
		},
		Removals: []string{"gone", "never-existed"},
	})
	if err != nil {
		t.Fatalf("bulk write: %v", err)
	}

	if _, err := segments.FindOne(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Error("bulk removal did not delete document")
	}
	keep, _ := segments.FindOne(ctx, "keep")
	if keep.Rank != 5 {
		t.Errorf("bulk upsert rank = %v, want 5", keep.Rank)
	}

	kinds := map[string]ChangeKind{}
	for _, ch := range captured.all() {
		kinds[ch.ID] = ch.Kind
	}
	if kinds["keep"] != ChangeUpdated {
		t.Errorf("keep notification = %v, want updated", kinds["keep"])
	}
	if kinds["fresh"] != ChangeInserted {
		t.Errorf("fresh notification = %v, want inserted", kinds["fresh"])
	}
	if kinds["gone"] != ChangeRemoved {
		t.Errorf("gone notification = %v, want removed", kinds["gone"])
	}
	if _, ok := kinds["never-existed"]; ok {
		t.Error("removal of absent id should not notify")
	}
}

func TestBulkWriteEmptyIsNoop(t *testing.T) {
	s, captured := openTestStore(t)
	segments := NewCollection[models.Segment](s, CollSegments)

	if err := segments.BulkWrite(context.Background(), BulkChanges[models.Segment]{}); err != nil {
		t.Fatalf("empty bulk write: %v", err)
	}
	if len(captured.all()) != 0 {
		t.Error("empty bulk write should not notify")
	}
}

func TestCollectionsWiring(t *testing.T) {
	s, _ := openTestStore(t)
	cols := NewCollections(s)

	if cols.Playlists.Name() != CollPlaylists {
		t.Errorf("playlists collection name = %q", cols.Playlists.Name())
	}
	if cols.PeripheralCommands.Name() != CollPeripheralCommands {
		t.Errorf("commands collection name = %q", cols.PeripheralCommands.Name())
	}
}
