// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package ingest

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/onairhq/showrunner/internal/store"
)

// PreparedChanges is the per-collection diff between the materialized ingest
// output and the currently stored documents.
type PreparedChanges[T store.Doc] struct {
	Inserted  []T
	Changed   []T
	Removed   []T
	Unchanged []T
}

// Empty reports whether applying the changes would be a no-op.
func (p PreparedChanges[T]) Empty() bool {
	return len(p.Inserted) == 0 && len(p.Changed) == 0 && len(p.Removed) == 0
}

// diffDocs compares generated documents against existing ones by id and
// canonical JSON encoding. Existing documents absent from generated become
// removals; byte-identical documents land in Unchanged.
func diffDocs[T store.Doc](existing, generated []T) (PreparedChanges[T], error) {
	var out PreparedChanges[T]

	existingByID := make(map[string][]byte, len(existing))
	existingDoc := make(map[string]T, len(existing))
	for _, doc := range existing {
		raw, err := json.Marshal(doc)
		if err != nil {
			return out, fmt.Errorf("marshal existing %s: %w", doc.DocID(), err)
		}
		existingByID[doc.DocID()] = raw
		existingDoc[doc.DocID()] = doc
	}

	seen := make(map[string]bool, len(generated))
	for _, doc := range generated {
		id := doc.DocID()
		seen[id] = true
		prev, ok := existingByID[id]
		if !ok {
			out.Inserted = append(out.Inserted, doc)
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return out, fmt.Errorf("marshal generated %s: %w", id, err)
		}
		if string(raw) == string(prev) {
			out.Unchanged = append(out.Unchanged, existingDoc[id])
		} else {
			out.Changed = append(out.Changed, doc)
		}
	}

	for _, doc := range existing {
		if !seen[doc.DocID()] {
			out.Removed = append(out.Removed, doc)
		}
	}
	return out, nil
}

// dropForIDs filters every prepared insert/change/removal whose document (or
// parent, via key) matches ids, moving suppressed changes/removals back to
// Unchanged so the stored document survives untouched.
func dropForIDs[T store.Doc](p PreparedChanges[T], ids map[string]bool, key func(T) string) PreparedChanges[T] {
	if len(ids) == 0 {
		return p
	}
	out := PreparedChanges[T]{Unchanged: p.Unchanged}
	for _, doc := range p.Inserted {
		if !ids[key(doc)] {
			out.Inserted = append(out.Inserted, doc)
		}
	}
	for _, doc := range p.Changed {
		if ids[key(doc)] {
			out.Unchanged = append(out.Unchanged, doc)
		} else {
			out.Changed = append(out.Changed, doc)
		}
	}
	for _, doc := range p.Removed {
		if ids[key(doc)] {
			out.Unchanged = append(out.Unchanged, doc)
		} else {
			out.Removed = append(out.Removed, doc)
		}
	}
	return out
}
