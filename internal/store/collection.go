// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Collection provides typed access to one document collection.
type Collection[T Doc] struct {
	store *Store
	name  string
}

// NewCollection creates a typed collection bound to the store.
func NewCollection[T Doc](s *Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) key(id string) []byte {
	return []byte(c.name + ":" + id)
}

func (c *Collection[T]) prefix() []byte {
	return []byte(c.name + ":")
}

// FindOne retrieves a document by id. Returns ErrNotFound when absent.
func (c *Collection[T]) FindOne(ctx context.Context, id string) (T, error) {
	var doc T
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s/%s: %w", c.name, id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return doc, nil
}

// Find returns every document matching the filter, sorted by id for
// determinism. A nil filter matches everything.
func (c *Collection[T]) Find(ctx context.Context, filter func(T) bool) ([]T, error) {
	var docs []T
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(c.prefix()); it.ValidForPrefix(c.prefix()); it.Next() {
			var doc T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("decode %s/%s: %w", c.name, it.Item().Key(), err)
			}
			if filter == nil || filter(doc) {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID() < docs[j].DocID() })
	return docs, nil
}

// Insert stores a new document. Fails when the id already exists.
func (c *Collection[T]) Insert(ctx context.Context, doc T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.name, err)
	}
	err = c.store.db.Update(func(txn *badger.Txn) error {
		key := c.key(doc.DocID())
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("insert %s/%s: document exists", c.name, doc.DocID())
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	c.store.notify(ctx, []DocChange{{Collection: c.name, ID: doc.DocID(), Kind: ChangeInserted}})
	return nil
}

// Upsert stores a document, replacing any existing one with the same id.
func (c *Collection[T]) Upsert(ctx context.Context, doc T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.name, err)
	}
	kind := ChangeUpdated
	err = c.store.db.Update(func(txn *badger.Txn) error {
		key := c.key(doc.DocID())
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			kind = ChangeInserted
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	c.store.notify(ctx, []DocChange{{Collection: c.name, ID: doc.DocID(), Kind: kind}})
	return nil
}

// Update mutates an existing document through fn. Returns ErrNotFound when
// the document is absent.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(T) T) error {
	var updated T
	err := c.store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var doc T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}
		updated = fn(doc)
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", c.name, err)
		}
		return txn.Set(c.key(id), data)
	})
	if err != nil {
		return err
	}
	c.store.notify(ctx, []DocChange{{Collection: c.name, ID: id, Kind: ChangeUpdated}})
	return nil
}

// Remove deletes a document by id. Removing an absent document is a no-op.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	removed := false
	err := c.store.db.Update(func(txn *badger.Txn) error {
		key := c.key(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		removed = true
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	if removed {
		c.store.notify(ctx, []DocChange{{Collection: c.name, ID: id, Kind: ChangeRemoved}})
	}
	return nil
}

// BulkChanges is one collection's prepared write set: the cache flush shape.
// Upserts replay the final desired state of each document; Removals name ids
// to delete. Both are idempotent.
type BulkChanges[T Doc] struct {
	Upserts  []T
	Removals []string
}

// IsEmpty reports whether the change set does nothing.
func (b BulkChanges[T]) IsEmpty() bool {
	return len(b.Upserts) == 0 && len(b.Removals) == 0
}

// BulkWrite applies a prepared change set in a single transaction, then
// notifies. Failure leaves this collection partially unapplied; callers rely
// on upsert idempotence and reload-on-next-operation for recovery.
func (c *Collection[T]) BulkWrite(ctx context.Context, changes BulkChanges[T]) error {
	if changes.IsEmpty() {
		return nil
	}

	notifications := make([]DocChange, 0, len(changes.Upserts)+len(changes.Removals))
	err := c.store.db.Update(func(txn *badger.Txn) error {
		for _, doc := range changes.Upserts {
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal %s/%s: %w", c.name, doc.DocID(), err)
			}
			kind := ChangeUpdated
			if _, err := txn.Get(c.key(doc.DocID())); errors.Is(err, badger.ErrKeyNotFound) {
				kind = ChangeInserted
			} else if err != nil {
				return err
			}
			if err := txn.Set(c.key(doc.DocID()), data); err != nil {
				return err
			}
			notifications = append(notifications, DocChange{Collection: c.name, ID: doc.DocID(), Kind: kind})
		}
		for _, id := range changes.Removals {
			if _, err := txn.Get(c.key(id)); errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}
			if err := txn.Delete(c.key(id)); err != nil {
				return err
			}
			notifications = append(notifications, DocChange{Collection: c.name, ID: id, Kind: ChangeRemoved})
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.store.notify(ctx, notifications)
	return nil
}
