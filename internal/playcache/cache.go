// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package playcache implements the per-playlist unit of work.
//
// An operation loads a consistent snapshot of one playlist and everything it
// owns, mutates the in-memory tables, then flushes only the deltas back to
// the store in a fixed dependency order. A failed operation discards the
// cache unsaved; no partial on-air state change escapes.
//
// The flush is atomic per collection, not across collections. Each
// collection's write set is an idempotent replay of the cache's final desired
// state, so a mid-flush failure is recovered by the next operation's reload
// rather than by a rollback log.
package playcache

import (
	"context"
	"fmt"

	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/store"
)

// Cache is the unit of work for one playlist.
type Cache struct {
	PlaylistID string

	cols *store.Collections

	Playlists      *Table[models.RundownPlaylist]
	Rundowns       *Table[models.Rundown]
	Segments       *Table[models.Segment]
	Parts          *Table[models.Part]
	PartInstances  *Table[models.PartInstance]
	Pieces         *Table[models.Piece]
	PieceInstances *Table[models.PieceInstance]
	AdLibPieces    *Table[models.AdLibPiece]
	AdLibActions   *Table[models.AdLibAction]

	deferred  []func(ctx context.Context)
	discarded bool
}

// Load pulls the playlist and every document it owns into memory. Returns
// store.ErrNotFound when the playlist does not exist.
func Load(ctx context.Context, cols *store.Collections, playlistID string) (*Cache, error) {
	playlist, err := cols.Playlists.FindOne(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	rundowns, err := cols.Rundowns.Find(ctx, func(r models.Rundown) bool {
		return r.PlaylistID == playlistID
	})
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool, len(rundowns))
	for _, r := range rundowns {
		owned[r.ID] = true
	}

	segments, err := cols.Segments.Find(ctx, func(s models.Segment) bool { return owned[s.RundownID] })
	if err != nil {
		return nil, err
	}
	parts, err := cols.Parts.Find(ctx, func(p models.Part) bool { return owned[p.RundownID] })
	if err != nil {
		return nil, err
	}
	partInstances, err := cols.PartInstances.Find(ctx, func(p models.PartInstance) bool { return owned[p.RundownID] })
	if err != nil {
		return nil, err
	}
	pieces, err := cols.Pieces.Find(ctx, func(p models.Piece) bool { return owned[p.RundownID] })
	if err != nil {
		return nil, err
	}
	pieceInstances, err := cols.PieceInstances.Find(ctx, func(p models.PieceInstance) bool { return owned[p.RundownID] })
	if err != nil {
		return nil, err
	}
	adLibPieces, err := cols.AdLibPieces.Find(ctx, func(a models.AdLibPiece) bool { return owned[a.RundownID] })
	if err != nil {
		return nil, err
	}
	adLibActions, err := cols.AdLibActions.Find(ctx, func(a models.AdLibAction) bool { return owned[a.RundownID] })
	if err != nil {
		return nil, err
	}

	c := &Cache{PlaylistID: playlistID, cols: cols}
	build := func() error {
		var err error
		if c.Playlists, err = newTable(store.CollPlaylists, []models.RundownPlaylist{playlist}); err != nil {
			return err
		}
		if c.Rundowns, err = newTable(store.CollRundowns, rundowns); err != nil {
			return err
		}
		if c.Segments, err = newTable(store.CollSegments, segments); err != nil {
			return err
		}
		if c.Parts, err = newTable(store.CollParts, parts); err != nil {
			return err
		}
		if c.PartInstances, err = newTable(store.CollPartInstances, partInstances); err != nil {
			return err
		}
		if c.Pieces, err = newTable(store.CollPieces, pieces); err != nil {
			return err
		}
		if c.PieceInstances, err = newTable(store.CollPieceInstances, pieceInstances); err != nil {
			return err
		}
		if c.AdLibPieces, err = newTable(store.CollAdLibPieces, adLibPieces); err != nil {
			return err
		}
		if c.AdLibActions, err = newTable(store.CollAdLibActions, adLibActions); err != nil {
			return err
		}
		return nil
	}
	if err := build(); err != nil {
		return nil, err
	}
	return c, nil
}

// Playlist returns the cached playlist document.
func (c *Cache) Playlist() models.RundownPlaylist {
	p, _ := c.Playlists.FindOne(c.PlaylistID)
	return p
}

// UpdatePlaylist mutates the cached playlist document.
func (c *Cache) UpdatePlaylist(fn func(models.RundownPlaylist) models.RundownPlaylist) {
	c.Playlists.Update(c.PlaylistID, fn)
}

// CurrentPartInstance returns the on-air part instance, if any.
func (c *Cache) CurrentPartInstance() (models.PartInstance, bool) {
	id := c.Playlist().CurrentPartInstanceID
	if id == "" {
		var zero models.PartInstance
		return zero, false
	}
	return c.PartInstances.FindOne(id)
}

// NextPartInstance returns the cued part instance, if any.
func (c *Cache) NextPartInstance() (models.PartInstance, bool) {
	id := c.Playlist().NextPartInstanceID
	if id == "" {
		var zero models.PartInstance
		return zero, false
	}
	return c.PartInstances.FindOne(id)
}

// PreviousPartInstance returns the previously on-air part instance, if any.
func (c *Cache) PreviousPartInstance() (models.PartInstance, bool) {
	id := c.Playlist().PreviousPartInstanceID
	if id == "" {
		var zero models.PartInstance
		return zero, false
	}
	return c.PartInstances.FindOne(id)
}

// DeferAfterSave registers a side effect to run only after a successful
// flush: store writes to non-cached collections, notifications, follow-up
// queue submissions. Deferred functions are best-effort; they must do their
// own error logging.
func (c *Cache) DeferAfterSave(fn func(ctx context.Context)) {
	c.deferred = append(c.deferred, fn)
}

// Discard drops the cache without writing. Any later SaveAll fails.
func (c *Cache) Discard() {
	c.discarded = true
	c.deferred = nil
}

// SaveAll flushes every table's delta to the store, collection by collection,
// in dependency order: instances and pieces before parts, parts before
// segments, segments before rundowns, the playlist last. After a successful
// flush the deferred side effects run in registration order.
func (c *Cache) SaveAll(ctx context.Context) error {
	if c.discarded {
		return fmt.Errorf("cache for playlist %s was discarded", c.PlaylistID)
	}

	if err := flushTable(ctx, c.PieceInstances, c.cols.PieceInstances); err != nil {
		return err
	}
	if err := flushTable(ctx, c.Pieces, c.cols.Pieces); err != nil {
		return err
	}
	if err := flushTable(ctx, c.AdLibPieces, c.cols.AdLibPieces); err != nil {
		return err
	}
	if err := flushTable(ctx, c.AdLibActions, c.cols.AdLibActions); err != nil {
		return err
	}
	if err := flushTable(ctx, c.Parts, c.cols.Parts); err != nil {
		return err
	}
	if err := flushTable(ctx, c.PartInstances, c.cols.PartInstances); err != nil {
		return err
	}
	if err := flushTable(ctx, c.Segments, c.cols.Segments); err != nil {
		return err
	}
	if err := flushTable(ctx, c.Rundowns, c.cols.Rundowns); err != nil {
		return err
	}
	if err := flushTable(ctx, c.Playlists, c.cols.Playlists); err != nil {
		return err
	}

	deferred := c.deferred
	c.deferred = nil
	for _, fn := range deferred {
		fn(ctx)
	}
	return nil
}

// flushTable writes one table's delta and re-snapshots it.
func flushTable[T store.Doc](ctx context.Context, table *Table[T], col *store.Collection[T]) error {
	changes, err := table.Changes()
	if err != nil {
		return err
	}
	if changes.IsEmpty() {
		return nil
	}
	logging.Ctx(ctx).Debug().
		Str("collection", col.Name()).
		Int("upserts", len(changes.Upserts)).
		Int("removals", len(changes.Removals)).
		Msg("cache flush")
	if err := col.BulkWrite(ctx, changes); err != nil {
		return fmt.Errorf("flush %s: %w", col.Name(), err)
	}
	return table.markFlushed()
}
