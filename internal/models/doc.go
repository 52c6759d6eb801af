// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package models defines the document types shared across Showrunner.
//
// The document model mirrors the shape of a running show:
//
//   - RundownPlaylist: the aggregate root, the ordered group of rundowns
//     currently loaded for broadcast, plus the live playout pointers
//     (previous/current/next part instance).
//   - Rundown: one externally-sourced show script, keyed by the external
//     system's stable externalId.
//   - Segment / Part: a titled block of the show / a cue-able unit inside it,
//     ordered by sparse float ranks.
//   - PartInstance / PieceInstance: one playback occurrence of a Part/Piece,
//     distinct from its ingest-sourced template. Instances are reset, never
//     deleted, so playback history survives.
//   - AdLibPiece / AdLibAction / BucketAdLib: operator-triggerable templates.
//
// Ingest payload types (IngestRundown/IngestSegment/IngestPart) describe the
// tree the newsroom system pushes; they never reach the store directly, the
// ingest reconciler materializes documents from them.
//
// All types are plain structs with JSON tags. Derived views are produced by
// free functions, not by methods with hidden store access.
package models
