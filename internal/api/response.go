// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package api is the HTTP surface of Showrunner: ingest push endpoints for
// newsroom gateways, playout operations for operator UIs, device callback
// endpoints for playout gateways, and the live WebSocket feed.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/models"
)

// Machine-readable error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeRundownUnsynced    = "RUNDOWN_UNSYNCED"
	ErrCodePrecondition       = "PRECONDITION_FAILED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	ErrCodeGatewayFailed      = "GATEWAY_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// responder writes the standard response envelope for one request.
type responder struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

func respond(w http.ResponseWriter, r *http.Request) *responder {
	return &responder{w: w, r: r, start: time.Now()}
}

// Success writes a 200 with the payload.
func (rw *responder) Success(data any) {
	rw.SuccessStatus(http.StatusOK, data)
}

// SuccessStatus writes a success envelope with an explicit status code.
func (rw *responder) SuccessStatus(status int, data any) {
	rw.write(status, models.APIResponse{
		Success: true,
		Data:    data,
		Meta: &models.APIMeta{
			RequestID:  logging.RequestIDFromContext(rw.r.Context()),
			Timestamp:  time.Now().UTC(),
			DurationMs: time.Since(rw.start).Milliseconds(),
		},
	})
}

// Error writes an error envelope.
func (rw *responder) Error(status int, code, message string, details any) {
	rw.write(status, models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: logging.RequestIDFromContext(rw.r.Context()),
		},
	})
}

func (rw *responder) write(status int, body models.APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(body); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("api: response encode failed")
	}
}

// decodeBody decodes a JSON request body into dst. Writes a 400 and returns
// false when the body is unreadable or malformed.
func decodeBody(rw *responder, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed request body: "+err.Error(), nil)
		return false
	}
	return true
}
