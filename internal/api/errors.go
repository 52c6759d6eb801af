// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"errors"
	"net/http"

	"github.com/onairhq/showrunner/internal/devices"
	"github.com/onairhq/showrunner/internal/ingest"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/playout"
	"github.com/onairhq/showrunner/internal/store"
)

// writeDomainError maps domain errors onto the response envelope.
//
//   - missing documents        -> 404
//   - unsynced rundown         -> 409 (resync required before further ingest)
//   - activation conflicts     -> 409 with the conflicting rundowns as details
//   - playout preconditions    -> 412 (state machine rejected the operation)
//   - gateway command timeouts -> 504, gateway-reported failures -> 502
func writeDomainError(rw *responder, r *http.Request, err error) {
	var conflict *playout.ActivationConflictError
	switch {
	case errors.Is(err, store.ErrNotFound):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)

	case errors.Is(err, ingest.ErrRundownUnsynced):
		rw.Error(http.StatusConflict, ErrCodeRundownUnsynced, err.Error(), nil)

	case errors.As(err, &conflict):
		rw.Error(http.StatusConflict, ErrCodeConflict, conflict.Error(), map[string]any{
			"conflictingRundowns": conflict.ConflictingRundowns,
		})

	case isPreconditionError(err):
		rw.Error(http.StatusPreconditionFailed, ErrCodePrecondition, err.Error(), nil)

	case errors.Is(err, devices.ErrCommandTimeout):
		rw.Error(http.StatusGatewayTimeout, ErrCodeGatewayTimeout, err.Error(), nil)

	case errors.Is(err, devices.ErrCommandFailed):
		rw.Error(http.StatusBadGateway, ErrCodeGatewayFailed, err.Error(), nil)

	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("api: unhandled domain error")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "internal error", nil)
	}
}

func isPreconditionError(err error) bool {
	for _, target := range []error{
		playout.ErrNotActive,
		playout.ErrAlreadyActive,
		playout.ErrNoNextPart,
		playout.ErrTakeWhileTransition,
		playout.ErrTakeCloseToAutoNext,
		playout.ErrNotCurrentPart,
		playout.ErrHoldNotAllowed,
		playout.ErrResetWhileOnAir,
		playout.ErrPartNotPlayable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
