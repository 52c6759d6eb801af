// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playcache

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/onairhq/showrunner/internal/store"
)

// Table buffers one collection's documents in memory. All mutations stay in
// the table until the owning Cache flushes; the snapshot taken at load time
// is kept for delta computation.
type Table[T store.Doc] struct {
	name string

	// snapshot holds the marshaled load-time state per id. Deltas are
	// computed by re-marshaling current docs and comparing bytes, so only
	// genuinely changed documents are written back.
	snapshot map[string][]byte

	docs map[string]T
}

// newTable builds a table over the loaded documents.
func newTable[T store.Doc](name string, loaded []T) (*Table[T], error) {
	t := &Table[T]{
		name:     name,
		snapshot: make(map[string][]byte, len(loaded)),
		docs:     make(map[string]T, len(loaded)),
	}
	for _, doc := range loaded {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%s: %w", name, doc.DocID(), err)
		}
		t.snapshot[doc.DocID()] = data
		t.docs[doc.DocID()] = doc
	}
	return t, nil
}

// FindOne returns the document with the given id.
func (t *Table[T]) FindOne(id string) (T, bool) {
	doc, ok := t.docs[id]
	return doc, ok
}

// FindAll returns every document matching pred, sorted by id. A nil pred
// matches everything. Callers needing rank order sort the result themselves.
func (t *Table[T]) FindAll(pred func(T) bool) []T {
	out := make([]T, 0, len(t.docs))
	for _, doc := range t.docs {
		if pred == nil || pred(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID() < out[j].DocID() })
	return out
}

// Len returns the number of live documents.
func (t *Table[T]) Len() int { return len(t.docs) }

// Insert adds a new document. Fails when the id already exists.
func (t *Table[T]) Insert(doc T) error {
	if _, exists := t.docs[doc.DocID()]; exists {
		return fmt.Errorf("%s/%s: document exists", t.name, doc.DocID())
	}
	t.docs[doc.DocID()] = doc
	return nil
}

// Replace stores a document regardless of prior existence.
func (t *Table[T]) Replace(doc T) {
	t.docs[doc.DocID()] = doc
}

// Update mutates the document with the given id through fn. Returns false
// when the document is absent.
func (t *Table[T]) Update(id string, fn func(T) T) bool {
	doc, ok := t.docs[id]
	if !ok {
		return false
	}
	t.docs[id] = fn(doc)
	return true
}

// UpdateAll mutates every document matching pred through fn and returns the
// number of documents touched.
func (t *Table[T]) UpdateAll(pred func(T) bool, fn func(T) T) int {
	n := 0
	for id, doc := range t.docs {
		if pred == nil || pred(doc) {
			t.docs[id] = fn(doc)
			n++
		}
	}
	return n
}

// Remove deletes the document with the given id from the table.
func (t *Table[T]) Remove(id string) {
	delete(t.docs, id)
}

// Changes computes the delta between the load snapshot and the current table
// state as an idempotent upsert/removal set.
func (t *Table[T]) Changes() (store.BulkChanges[T], error) {
	var changes store.BulkChanges[T]
	for id, doc := range t.docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return changes, fmt.Errorf("marshal %s/%s: %w", t.name, id, err)
		}
		if orig, ok := t.snapshot[id]; !ok || string(orig) != string(data) {
			changes.Upserts = append(changes.Upserts, doc)
		}
	}
	for id := range t.snapshot {
		if _, ok := t.docs[id]; !ok {
			changes.Removals = append(changes.Removals, id)
		}
	}
	// Deterministic flush order.
	sort.Slice(changes.Upserts, func(i, j int) bool {
		return changes.Upserts[i].DocID() < changes.Upserts[j].DocID()
	})
	sort.Strings(changes.Removals)
	return changes, nil
}

// markFlushed re-snapshots the current state after a successful flush so a
// reused cache does not rewrite already-persisted documents.
func (t *Table[T]) markFlushed() error {
	t.snapshot = make(map[string][]byte, len(t.docs))
	for id, doc := range t.docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("snapshot %s/%s: %w", t.name, id, err)
		}
		t.snapshot[id] = data
	}
	return nil
}
