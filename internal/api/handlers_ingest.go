// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/validation"
)

// Ingest push handlers. Each decodes the gateway payload, validates it at
// the edge, and hands it to the reconciler, which serializes the mutation
// on the playlist's queue lane.

func (router *Router) handleRundownCreate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)

	var data models.IngestRundown
	if !decodeBody(rw, r, &data) {
		return
	}
	if verr := validation.ValidateStruct(&data); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.reconciler.HandleRundownCreate(r.Context(), data); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.SuccessStatus(http.StatusCreated, map[string]string{"externalId": data.ExternalID})
}

func (router *Router) handleRundownUpdate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")

	var data models.IngestRundown
	if !decodeBody(rw, r, &data) {
		return
	}
	// The path owns the identity.
	data.ExternalID = externalID
	if verr := validation.ValidateStruct(&data); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.reconciler.HandleRundownUpdate(r.Context(), data); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"externalId": externalID})
}

func (router *Router) handleRundownDelete(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")

	if err := router.reconciler.HandleRundownDelete(r.Context(), externalID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"externalId": externalID})
}

func (router *Router) handleRundownRegenerate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")

	if err := router.reconciler.RegenerateRundown(r.Context(), externalID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"externalId": externalID})
}

func (router *Router) handleSegmentCreate(w http.ResponseWriter, r *http.Request) {
	router.segmentUpsert(w, r, true)
}

func (router *Router) handleSegmentUpdate(w http.ResponseWriter, r *http.Request) {
	router.segmentUpsert(w, r, false)
}

func (router *Router) segmentUpsert(w http.ResponseWriter, r *http.Request, create bool) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")

	var seg models.IngestSegment
	if !decodeBody(rw, r, &seg) {
		return
	}
	if !create {
		seg.ExternalID = chi.URLParam(r, "segmentExternalID")
	}
	if verr := validation.ValidateStruct(&seg); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	var err error
	if create {
		err = router.reconciler.HandleSegmentCreate(r.Context(), externalID, seg)
	} else {
		err = router.reconciler.HandleSegmentUpdate(r.Context(), externalID, seg)
	}
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}

	status := http.StatusOK
	if create {
		status = http.StatusCreated
	}
	rw.SuccessStatus(status, map[string]string{"externalId": seg.ExternalID})
}

func (router *Router) handleSegmentDelete(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")
	segmentExternalID := chi.URLParam(r, "segmentExternalID")

	if err := router.reconciler.HandleSegmentDelete(r.Context(), externalID, segmentExternalID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"externalId": segmentExternalID})
}

// segmentRanksRequest is the dataSegmentRanksUpdate payload: new ranks keyed
// by segment external id. Unmentioned segments keep their order.
type segmentRanksRequest struct {
	Ranks map[string]float64 `json:"ranks" validate:"required,min=1"`
}

func (router *Router) handleSegmentRanksUpdate(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")

	var req segmentRanksRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.reconciler.HandleSegmentRanksUpdate(r.Context(), externalID, req.Ranks); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]int{"updated": len(req.Ranks)})
}

func (router *Router) handlePartCreate(w http.ResponseWriter, r *http.Request) {
	router.partUpsert(w, r, true)
}

func (router *Router) handlePartUpdate(w http.ResponseWriter, r *http.Request) {
	router.partUpsert(w, r, false)
}

func (router *Router) partUpsert(w http.ResponseWriter, r *http.Request, create bool) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")
	segmentExternalID := chi.URLParam(r, "segmentExternalID")

	var part models.IngestPart
	if !decodeBody(rw, r, &part) {
		return
	}
	if !create {
		part.ExternalID = chi.URLParam(r, "partExternalID")
	}
	if verr := validation.ValidateStruct(&part); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	var err error
	if create {
		err = router.reconciler.HandlePartCreate(r.Context(), externalID, segmentExternalID, part)
	} else {
		err = router.reconciler.HandlePartUpdate(r.Context(), externalID, segmentExternalID, part)
	}
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}

	status := http.StatusOK
	if create {
		status = http.StatusCreated
	}
	rw.SuccessStatus(status, map[string]string{"externalId": part.ExternalID})
}

func (router *Router) handlePartDelete(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	externalID := chi.URLParam(r, "externalID")
	segmentExternalID := chi.URLParam(r, "segmentExternalID")
	partExternalID := chi.URLParam(r, "partExternalID")

	if err := router.reconciler.HandlePartDelete(r.Context(), externalID, segmentExternalID, partExternalID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"externalId": partExternalID})
}
