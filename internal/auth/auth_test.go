// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onairhq/showrunner/internal/config"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:       "jwt",
		JWTSecret:      strings.Repeat("s", 32),
		SessionTimeout: time.Hour,
		DeviceTokens:   []string{"mos-gateway:secret-a", "playout-gateway:secret-b"},
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	t.Parallel()

	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, err := m.GenerateToken("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "alice" || claims.Role != RoleAdmin {
		t.Errorf("claims = %q/%q, want alice/admin", claims.Username, claims.Role)
	}
}

func TestJWTManager_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	cfg := testSecurityConfig()
	cfg.JWTSecret = "short"
	if _, err := NewJWTManager(cfg); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestJWTManager_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	token, err := m.GenerateToken("alice", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	cfg := testSecurityConfig()
	m, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	m.timeout = -time.Minute

	token, err := m.GenerateToken("alice", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestCredentials_Verify(t *testing.T) {
	t.Parallel()

	creds, err := NewCredentials("admin", "correct horse battery")
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	if !creds.Verify("admin", "correct horse battery") {
		t.Error("valid credentials rejected")
	}
	if creds.Verify("admin", "wrong") {
		t.Error("wrong password accepted")
	}
	if creds.Verify("eve", "correct horse battery") {
		t.Error("wrong username accepted")
	}
}

func TestCredentials_RejectsWeakPassword(t *testing.T) {
	t.Parallel()

	if _, err := NewCredentials("admin", "short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestDeviceTokens_Verify(t *testing.T) {
	t.Parallel()

	tokens, err := NewDeviceTokens([]string{"mos-gateway:secret-a"})
	if err != nil {
		t.Fatalf("NewDeviceTokens: %v", err)
	}

	if !tokens.Verify("mos-gateway", "secret-a") {
		t.Error("valid device token rejected")
	}
	if tokens.Verify("mos-gateway", "secret-b") {
		t.Error("wrong token accepted")
	}
	if tokens.Verify("unknown", "secret-a") {
		t.Error("unknown device accepted")
	}
}

func TestDeviceTokens_MalformedEntry(t *testing.T) {
	t.Parallel()

	if _, err := NewDeviceTokens([]string{"no-colon"}); err == nil {
		t.Fatal("expected error for malformed entry")
	}
	if _, err := NewDeviceTokens([]string{":token-only"}); err == nil {
		t.Fatal("expected error for empty device id")
	}
}

func TestAuthenticator_RequireOperator(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	var gotClaims *Claims
	handler := a.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/take", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	// Valid token.
	token, err := a.JWT().GenerateToken("alice", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/take", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d, want 204", rec.Code)
	}
	if gotClaims == nil || gotClaims.Username != "alice" {
		t.Errorf("claims not propagated: %+v", gotClaims)
	}
}

func TestAuthenticator_RequireDevice(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	var gotDevice string
	handler := a.RequireDevice(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDevice, _ = DeviceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set(HeaderDeviceID, "mos-gateway")
	req.Header.Set(HeaderDeviceToken, "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set(HeaderDeviceID, "mos-gateway")
	req.Header.Set(HeaderDeviceToken, "secret-a")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d, want 204", rec.Code)
	}
	if gotDevice != "mos-gateway" {
		t.Errorf("device id not propagated: %q", gotDevice)
	}
}

func TestAuthenticator_ModeNoneAllowsAll(t *testing.T) {
	t.Parallel()

	cfg := testSecurityConfig()
	cfg.AuthMode = "none"
	cfg.JWTSecret = ""
	a, err := NewAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	handler := a.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/take", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("mode none: status = %d, want 204", rec.Code)
	}
}
