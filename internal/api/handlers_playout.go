// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onairhq/showrunner/internal/validation"
)

// Playout handlers. Every operation is serialized by the engine on the
// playlist's queue lane at user priority, so two operators mashing take at
// the same moment still resolve to one winner.

type activateRequest struct {
	Rehearsal bool `json:"rehearsal"`
}

func (router *Router) handleActivate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req activateRequest
	if r.ContentLength > 0 && !decodeBody(rw, r, &req) {
		return
	}

	if err := router.engine.Activate(r.Context(), playlistID, req.Rehearsal); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"playlistId": playlistID, "rehearsal": req.Rehearsal})
}

func (router *Router) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	if err := router.engine.Deactivate(r.Context(), playlistID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID})
}

func (router *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	if err := router.engine.ResetPlaylist(r.Context(), playlistID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID})
}

func (router *Router) handleTake(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	if err := router.engine.Take(r.Context(), playlistID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID})
}

type setNextRequest struct {
	PartID   string `json:"partId" validate:"required"`
	OffsetMs int64  `json:"offsetMs" validate:"gte=0"`
}

func (router *Router) handleSetNext(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req setNextRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.engine.SetNextPart(r.Context(), playlistID, req.PartID, req.OffsetMs); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID, "partId": req.PartID})
}

func (router *Router) handleHoldActivate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	if err := router.engine.ActivateHold(r.Context(), playlistID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID})
}

func (router *Router) handleHoldDeactivate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	if err := router.engine.DeactivateHold(r.Context(), playlistID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID})
}

type adLibRequest struct {
	AdLibID        string `json:"adLibId" validate:"required"`
	PartInstanceID string `json:"partInstanceId" validate:"required"`
	Queued         bool   `json:"queued"`

	// Baseline selects the show-style global ad-libs instead of the
	// part-scoped pool.
	Baseline bool `json:"baseline"`
}

func (router *Router) handleAdLib(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req adLibRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	var err error
	if req.Baseline {
		err = router.engine.BaselineAdLibStart(r.Context(), playlistID, req.PartInstanceID, req.AdLibID, req.Queued)
	} else {
		err = router.engine.AdLibPieceStart(r.Context(), playlistID, req.PartInstanceID, req.AdLibID, req.Queued)
	}
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"playlistId": playlistID, "adLibId": req.AdLibID, "queued": req.Queued})
}

type stickyRequest struct {
	SourceLayerID string `json:"sourceLayerId" validate:"required"`
}

func (router *Router) handleSticky(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req stickyRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.engine.StickySourceLayer(r.Context(), playlistID, req.SourceLayerID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID, "sourceLayerId": req.SourceLayerID})
}

type stopLayersRequest struct {
	PartInstanceID string   `json:"partInstanceId" validate:"required"`
	SourceLayerIDs []string `json:"sourceLayerIds" validate:"required,min=1"`
}

func (router *Router) handleStopLayers(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req stopLayersRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	stopped, err := router.engine.StopPiecesOnLayers(r.Context(), playlistID, req.PartInstanceID, req.SourceLayerIDs)
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"stopped": stopped})
}

type pieceTakeNowRequest struct {
	PartInstanceID string `json:"partInstanceId" validate:"required"`
	PieceID        string `json:"pieceId" validate:"required"`
}

func (router *Router) handlePieceTakeNow(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")

	var req pieceTakeNowRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.engine.PieceTakeNow(r.Context(), playlistID, req.PartInstanceID, req.PieceID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"playlistId": playlistID, "pieceId": req.PieceID})
}
