// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package store

import (
	"github.com/onairhq/showrunner/internal/models"
)

// Collection names. These are the key prefixes inside Badger and the
// collection field of change notifications.
const (
	CollPlaylists            = "rundownPlaylists"
	CollRundowns             = "rundowns"
	CollSegments             = "segments"
	CollParts                = "parts"
	CollPartInstances        = "partInstances"
	CollPieces               = "pieces"
	CollPieceInstances       = "pieceInstances"
	CollAdLibPieces          = "adLibPieces"
	CollAdLibActions         = "adLibActions"
	CollBucketAdLibs         = "bucketAdLibs"
	CollExpectedPlayoutItems = "expectedPlayoutItems"
	CollIngestDataCache      = "ingestDataCache"
	CollPeripheralCommands   = "peripheralDeviceCommands"
)

// Collections bundles every typed collection of the system. Constructed once
// per process and passed by reference into operations; there is no ambient
// global store state.
type Collections struct {
	Playlists            *Collection[models.RundownPlaylist]
	Rundowns             *Collection[models.Rundown]
	Segments             *Collection[models.Segment]
	Parts                *Collection[models.Part]
	PartInstances        *Collection[models.PartInstance]
	Pieces               *Collection[models.Piece]
	PieceInstances       *Collection[models.PieceInstance]
	AdLibPieces          *Collection[models.AdLibPiece]
	AdLibActions         *Collection[models.AdLibAction]
	BucketAdLibs         *Collection[models.BucketAdLib]
	ExpectedPlayoutItems *Collection[models.ExpectedPlayoutItem]
	IngestDataCache      *Collection[models.IngestDataCache]
	PeripheralCommands   *Collection[models.PeripheralCommand]
}

// NewCollections wires every collection onto the store.
func NewCollections(s *Store) *Collections {
	return &Collections{
		Playlists:            NewCollection[models.RundownPlaylist](s, CollPlaylists),
		Rundowns:             NewCollection[models.Rundown](s, CollRundowns),
		Segments:             NewCollection[models.Segment](s, CollSegments),
		Parts:                NewCollection[models.Part](s, CollParts),
		PartInstances:        NewCollection[models.PartInstance](s, CollPartInstances),
		Pieces:               NewCollection[models.Piece](s, CollPieces),
		PieceInstances:       NewCollection[models.PieceInstance](s, CollPieceInstances),
		AdLibPieces:          NewCollection[models.AdLibPiece](s, CollAdLibPieces),
		AdLibActions:         NewCollection[models.AdLibAction](s, CollAdLibActions),
		BucketAdLibs:         NewCollection[models.BucketAdLib](s, CollBucketAdLibs),
		ExpectedPlayoutItems: NewCollection[models.ExpectedPlayoutItem](s, CollExpectedPlayoutItems),
		IngestDataCache:      NewCollection[models.IngestDataCache](s, CollIngestDataCache),
		PeripheralCommands:   NewCollection[models.PeripheralCommand](s, CollPeripheralCommands),
	}
}
