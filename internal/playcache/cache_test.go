// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playcache

import (
	"context"
	"errors"
	"testing"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/store"
)

func testCollections(t *testing.T) *store.Collections {
	t.Helper()
	s, err := store.Open(store.Options{Path: ""})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return store.NewCollections(s)
}

func seedPlaylist(t *testing.T, cols *store.Collections) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(cols.Playlists.Insert(ctx, models.RundownPlaylist{ID: "pl1", StudioID: "studio0", RundownIDsInOrder: []string{"ro1"}}))
	must(cols.Rundowns.Insert(ctx, models.Rundown{ID: "ro1", PlaylistID: "pl1", ExternalID: "abcde"}))
	must(cols.Rundowns.Insert(ctx, models.Rundown{ID: "other", PlaylistID: "plX", ExternalID: "zzz"}))
	must(cols.Segments.Insert(ctx, models.Segment{ID: "seg1", RundownID: "ro1", ExternalID: "segment0", Rank: 1}))
	must(cols.Segments.Insert(ctx, models.Segment{ID: "segX", RundownID: "other", ExternalID: "foreign", Rank: 1}))
	must(cols.Parts.Insert(ctx, models.Part{ID: "p1", RundownID: "ro1", SegmentID: "seg1", ExternalID: "part0", Rank: 1}))
	must(cols.Pieces.Insert(ctx, models.Piece{ID: "pc1", RundownID: "ro1", PartID: "p1", SourceLayerID: "cam"}))
}

func TestLoadScopesToOwnedRundowns(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)

	cache, err := Load(context.Background(), cols, "pl1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cache.Rundowns.Len() != 1 {
		t.Errorf("rundowns in cache = %d, want 1", cache.Rundowns.Len())
	}
	if _, ok := cache.Segments.FindOne("segX"); ok {
		t.Error("cache must not include segments of foreign playlists")
	}
	if _, ok := cache.Segments.FindOne("seg1"); !ok {
		t.Error("cache missing owned segment")
	}
}

func TestLoadMissingPlaylist(t *testing.T) {
	cols := testCollections(t)
	_, err := Load(context.Background(), cols, "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load of missing playlist = %v, want ErrNotFound", err)
	}
}

func TestSaveAllWritesOnlyDeltas(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)
	ctx := context.Background()

	cache, err := Load(ctx, cols, "pl1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Mutate one segment, insert a part, remove a piece; leave the rest.
	cache.Segments.Update("seg1", func(s models.Segment) models.Segment {
		s.Rank = 42
		return s
	})
	if err := cache.Parts.Insert(models.Part{ID: "p2", RundownID: "ro1", SegmentID: "seg1", ExternalID: "part1", Rank: 2}); err != nil {
		t.Fatalf("insert part: %v", err)
	}
	cache.Pieces.Remove("pc1")

	if err := cache.SaveAll(ctx); err != nil {
		t.Fatalf("saveAll: %v", err)
	}

	seg, err := cols.Segments.FindOne(ctx, "seg1")
	if err != nil || seg.Rank != 42 {
		t.Errorf("segment after flush = %+v, %v", seg, err)
	}
	if _, err := cols.Parts.FindOne(ctx, "p2"); err != nil {
		t.Errorf("inserted part not flushed: %v", err)
	}
	if _, err := cols.Pieces.FindOne(ctx, "pc1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("removed piece still present: %v", err)
	}
}

func TestSaveAllIsIdempotentAfterFlush(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)
	ctx := context.Background()

	cache, _ := Load(ctx, cols, "pl1")
	cache.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		p.Active = true
		return p
	})
	if err := cache.SaveAll(ctx); err != nil {
		t.Fatalf("first saveAll: %v", err)
	}

	// After a flush the snapshot moves forward: an immediate second flush
	// must find no deltas.
	changes, err := cache.Playlists.Changes()
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if !changes.IsEmpty() {
		t.Errorf("expected empty delta after flush, got %+v", changes)
	}
}

func TestDeferAfterSaveRunsOnlyOnSuccess(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)
	ctx := context.Background()

	cache, _ := Load(ctx, cols, "pl1")
	ran := false
	cache.DeferAfterSave(func(context.Context) { ran = true })

	if err := cache.SaveAll(ctx); err != nil {
		t.Fatalf("saveAll: %v", err)
	}
	if !ran {
		t.Error("deferred side effect did not run after successful flush")
	}
}

func TestDiscardPreventsSave(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)
	ctx := context.Background()

	cache, _ := Load(ctx, cols, "pl1")
	ran := false
	cache.DeferAfterSave(func(context.Context) { ran = true })
	cache.UpdatePlaylist(func(p models.RundownPlaylist) models.RundownPlaylist {
		p.Active = true
		return p
	})
	cache.Discard()

	if err := cache.SaveAll(ctx); err == nil {
		t.Error("saveAll after discard should fail")
	}
	if ran {
		t.Error("deferred side effect ran despite discard")
	}

	stored, _ := cols.Playlists.FindOne(ctx, "pl1")
	if stored.Active {
		t.Error("discarded mutation leaked to store")
	}
}

func TestPointerAccessors(t *testing.T) {
	cols := testCollections(t)
	seedPlaylist(t, cols)
	ctx := context.Background()

	if err := cols.PartInstances.Insert(ctx, models.PartInstance{ID: "pi1", RundownID: "ro1", SegmentID: "seg1"}); err != nil {
		t.Fatal(err)
	}
	if err := cols.Playlists.Update(ctx, "pl1", func(p models.RundownPlaylist) models.RundownPlaylist {
		p.CurrentPartInstanceID = "pi1"
		return p
	}); err != nil {
		t.Fatal(err)
	}

	cache, _ := Load(ctx, cols, "pl1")

	if cur, ok := cache.CurrentPartInstance(); !ok || cur.ID != "pi1" {
		t.Errorf("CurrentPartInstance = %v %v", cur, ok)
	}
	if _, ok := cache.NextPartInstance(); ok {
		t.Error("NextPartInstance should be absent")
	}
	if _, ok := cache.PreviousPartInstance(); ok {
		t.Error("PreviousPartInstance should be absent")
	}
}
