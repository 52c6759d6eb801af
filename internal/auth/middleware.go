// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/onairhq/showrunner/internal/config"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/models"
)

type contextKey string

const (
	claimsKey   contextKey = "auth_claims"
	deviceIDKey contextKey = "auth_device_id"
)

// Headers used by machine peers.
const (
	HeaderDeviceID    = "X-Device-Id"
	HeaderDeviceToken = "X-Device-Token"
)

// Authenticator guards the HTTP surface. Operator routes require a JWT
// bearer token; device routes require a per-device shared secret. AuthMode
// "none" disables both checks (development only).
type Authenticator struct {
	mode    string
	jwt     *JWTManager
	devices *DeviceTokens
}

// NewAuthenticator wires the authenticator from config. In "jwt" mode a
// JWT secret is mandatory; device tokens may be empty, which locks out all
// device routes until tokens are configured.
func NewAuthenticator(cfg *config.SecurityConfig) (*Authenticator, error) {
	devices, err := NewDeviceTokens(cfg.DeviceTokens)
	if err != nil {
		return nil, err
	}

	a := &Authenticator{mode: cfg.AuthMode, devices: devices}
	if cfg.AuthMode != "none" {
		jwtManager, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		a.jwt = jwtManager
	}
	return a, nil
}

// JWT returns the token manager, nil when auth mode is "none".
func (a *Authenticator) JWT() *JWTManager { return a.jwt }

// RequireOperator rejects requests without a valid operator bearer token.
func (a *Authenticator) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == "none" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeUnauthorized(w, r, "missing bearer token")
			return
		}

		claims, err := a.jwt.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("operator token rejected")
			writeUnauthorized(w, r, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDevice rejects requests without a valid device id/token pair.
func (a *Authenticator) RequireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == "none" {
			next.ServeHTTP(w, r)
			return
		}

		deviceID := r.Header.Get(HeaderDeviceID)
		token := r.Header.Get(HeaderDeviceToken)
		if deviceID == "" || token == "" || !a.devices.Verify(deviceID, token) {
			logging.Ctx(r.Context()).Debug().Str("device_id", deviceID).Msg("device token rejected")
			writeUnauthorized(w, r, "invalid device credentials")
			return
		}

		ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the operator claims set by RequireOperator.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// DeviceIDFromContext returns the device id set by RequireDevice.
func DeviceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey).(string)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}
