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

// commandReplyRequest is a gateway's answer to a pending peripheral
// command. Error and Reply are mutually exclusive.
type commandReplyRequest struct {
	Reply any    `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

func (router *Router) handleCommandReply(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	commandID := chi.URLParam(r, "commandID")

	var req commandReplyRequest
	if !decodeBody(rw, r, &req) {
		return
	}

	if err := router.commands.HandleReply(r.Context(), commandID, req.Reply, req.Error); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"commandId": commandID})
}

// playbackStartedRequest reports the on-air timestamp observed by the
// playout gateway.
type playbackStartedRequest struct {
	Time int64 `json:"time" validate:"required,gt=0"`
}

func (router *Router) handlePlaybackStarted(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	playlistID := chi.URLParam(r, "playlistID")
	instanceID := chi.URLParam(r, "instanceID")

	var req playbackStartedRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if err := router.engine.OnPartPlaybackStarted(r.Context(), playlistID, instanceID, req.Time); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"partInstanceId": instanceID})
}

// deviceExecuteRequest asks a device gateway to run a function and waits
// for the reply.
type deviceExecuteRequest struct {
	FunctionName string `json:"functionName" validate:"required"`
	Args         []any  `json:"args"`
}

func (router *Router) handleDeviceExecute(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	deviceID := chi.URLParam(r, "deviceID")

	var req deviceExecuteRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	reply, err := router.commands.Execute(r.Context(), deviceID, req.FunctionName, req.Args...)
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"reply": reply})
}
