// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package playout

import (
	"errors"
	"fmt"
)

// Precondition failures. All of them abort the operation before any
// mutation; the API layer maps them to 412-class responses.
var (
	ErrNotActive          = errors.New("playlist is not active")
	ErrAlreadyActive      = errors.New("playlist is already active")
	ErrNoNextPart         = errors.New("no next part set")
	ErrTakeWhileTransition = errors.New("take rejected: previous part transition still in progress")
	ErrTakeCloseToAutoNext = errors.New("take rejected: too close to an auto-next")
	ErrNotCurrentPart      = errors.New("part instance is not the current part")
	ErrHoldNotAllowed      = errors.New("hold not allowed in this state")
	ErrResetWhileOnAir     = errors.New("reset requires an inactive or rehearsal playlist")
	ErrPartNotPlayable     = errors.New("part cannot be set as next")
)

// ActivationConflictError reports the rundowns already on air in the studio,
// letting the caller offer a forced override. The API layer maps it to a
// structured 409.
type ActivationConflictError struct {
	ConflictingRundowns []ConflictingRundown
}

// ConflictingRundown names one rundown blocking activation.
type ConflictingRundown struct {
	RundownID  string `json:"rundownId"`
	Name       string `json:"name"`
	PlaylistID string `json:"playlistId"`
}

func (e *ActivationConflictError) Error() string {
	return fmt.Sprintf("another playlist is active in this studio (%d conflicting rundowns)", len(e.ConflictingRundowns))
}
