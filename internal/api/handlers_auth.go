// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"net/http"

	"github.com/onairhq/showrunner/internal/auth"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/validation"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// handleLogin exchanges admin credentials for an operator JWT.
func (router *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)

	if router.creds == nil || router.authn.JWT() == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "login is not configured", nil)
		return
	}

	var req loginRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields)
		return
	}

	if !router.creds.Verify(req.Username, req.Password) {
		logging.Ctx(r.Context()).Warn().Str("username", req.Username).Msg("login rejected")
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "invalid username or password", nil)
		return
	}

	token, err := router.authn.JWT().GenerateToken(req.Username, auth.RoleAdmin)
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"token": token})
}
