// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package store implements the reactive document store backing Showrunner.
//
// Documents live in BadgerDB under "<collection>:<id>" keys with goccy-JSON
// values. Every committed write produces DocChange notifications, delivered
// to an optional Publisher; this is the change-notification mechanism the
// rest of the system (websocket hub, device command channel) subscribes to.
//
// The store itself has no knowledge of the domain; typed access goes through
// Collection[T] wrappers, wired up once in Collections.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/onairhq/showrunner/internal/logging"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ChangeKind classifies a document change.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
)

// DocChange describes one committed document change.
type DocChange struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
}

// Publisher receives committed document changes. Implementations must not
// block for long; delivery happens on the writer's goroutine.
type Publisher interface {
	PublishDocChanges(ctx context.Context, changes []DocChange)
}

// Doc is the constraint for stored documents.
type Doc interface {
	DocID() string
}

// Options configures the store.
type Options struct {
	// Path is the Badger directory. Empty opens an in-memory store (tests).
	Path string

	// GCInterval is how often value-log GC runs. Zero disables GC.
	GCInterval time.Duration
}

// Store wraps a Badger database and fans out change notifications.
type Store struct {
	db        *badger.DB
	publisher Publisher
	gcStop    chan struct{}
	gcDone    chan struct{}
}

// Open opens (or creates) the store at opts.Path.
func Open(opts Options) (*Store, error) {
	var badgerOpts badger.Options
	if opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(badgerLogger{})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}

	if opts.GCInterval > 0 && opts.Path != "" {
		go s.runGC(opts.GCInterval)
	} else {
		close(s.gcDone)
	}

	return s, nil
}

// SetPublisher wires the change-notification sink. Must be called before
// concurrent use; changes committed with no publisher are silently dropped.
func (s *Store) SetPublisher(p Publisher) {
	s.publisher = p
}

// Close stops background work and closes the database.
func (s *Store) Close() error {
	close(s.gcStop)
	<-s.gcDone
	return s.db.Close()
}

// DB exposes the underlying Badger handle for collections.
func (s *Store) DB() *badger.DB { return s.db }

// notify delivers committed changes to the publisher, if any.
func (s *Store) notify(ctx context.Context, changes []DocChange) {
	if s.publisher == nil || len(changes) == 0 {
		return
	}
	s.publisher.PublishDocChanges(ctx, changes)
}

// runGC runs periodic value-log garbage collection until Close.
func (s *Store) runGC(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// Badger asks for repeated calls while it keeps finding garbage.
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Err(err).Msg("badger value log GC")
					}
					break
				}
			}
		}
	}
}

// badgerLogger adapts Badger's logger interface onto zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Trace().Str("component", "badger").Msgf(format, args...)
}
