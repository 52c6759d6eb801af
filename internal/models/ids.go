// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package models

import (
	"crypto/sha256"
	"math/big"
	"strings"
)

// hashIDLength is the number of base36 characters kept from the digest.
// 17 base36 chars ≈ 88 bits, comfortably collision-free per studio.
const hashIDLength = 17

// HashID derives a stable internal document id from the studio and the
// external system's stable key. The same (studioID, externalID) pair always
// maps to the same id, so re-ingesting a rundown hits the same documents.
func HashID(studioID, externalID string) string {
	sum := sha256.Sum256([]byte(studioID + "_" + externalID))
	n := new(big.Int).SetBytes(sum[:])
	enc := n.Text(36)
	if len(enc) > hashIDLength {
		enc = enc[:hashIDLength]
	}
	return enc
}

// SegmentID derives the internal id of a segment.
func SegmentID(rundownID, segmentExternalID string) string {
	return HashID(rundownID, "segment_"+segmentExternalID)
}

// PartID derives the internal id of a part.
func PartID(rundownID, partExternalID string) string {
	return HashID(rundownID, "part_"+partExternalID)
}

// PieceID derives the internal id of an ingest-sourced piece.
func PieceID(partID, pieceExternalID string) string {
	return HashID(partID, "piece_"+pieceExternalID)
}

// RundownID derives the internal id of a rundown.
func RundownID(studioID, rundownExternalID string) string {
	return HashID(studioID, "rundown_"+rundownExternalID)
}

// PlaylistID derives the internal id of the playlist grouping a rundown.
func PlaylistID(studioID, playlistExternalID string) string {
	return HashID(studioID, "playlist_"+playlistExternalID)
}

// SanitizeExternalID normalizes an external id for case-insensitive matching
// of playlist grouping keys.
func SanitizeExternalID(externalID string) string {
	return strings.TrimSpace(strings.ToLower(externalID))
}
