// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairhq/showrunner/internal/auth"
	"github.com/onairhq/showrunner/internal/blueprint"
	"github.com/onairhq/showrunner/internal/config"
	"github.com/onairhq/showrunner/internal/devices"
	"github.com/onairhq/showrunner/internal/ingest"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/playout"
	"github.com/onairhq/showrunner/internal/queue"
	"github.com/onairhq/showrunner/internal/store"
	"github.com/onairhq/showrunner/internal/websocket"
)

type testServer struct {
	srv  *httptest.Server
	cols *store.Collections
}

func newTestServer(t *testing.T, security config.SecurityConfig) *testServer {
	t.Helper()

	st, err := store.Open(store.Options{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	cols := store.NewCollections(st)

	log := logging.NewTestLogger(io.Discard)
	q := queue.New(log, time.Second)
	t.Cleanup(q.Close)

	style := blueprint.NewDefaultShowStyle()
	reconciler := ingest.New(log, cols, q, style, nil, "studio0", true)
	engine := playout.NewEngine(log, cols, q, style, nil, config.PlayoutConfig{}, "studio0")
	commands := devices.New(log, cols, nil, 200*time.Millisecond)

	authn, err := auth.NewAuthenticator(&security)
	require.NoError(t, err)

	var creds *auth.Credentials
	if security.AdminUsername != "" {
		creds, err = auth.NewCredentials(security.AdminUsername, security.AdminPassword)
		require.NoError(t, err)
	}

	cfg := &config.Config{Security: security}
	router := New(Options{
		Log:         log,
		Config:      cfg,
		Collections: cols,
		Reconciler:  reconciler,
		Engine:      engine,
		Commands:    commands,
		Hub:         websocket.NewHub(nil),
		Auth:        authn,
		Creds:       creds,
	})

	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, cols: cols}
}

func openSecurity() config.SecurityConfig {
	return config.SecurityConfig{AuthMode: "none", RateLimitReqs: 10000, RateLimitWindow: time.Minute}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, models.APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope models.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func sampleRundown(externalID string) models.IngestRundown {
	return models.IngestRundown{
		ExternalID: externalID,
		Name:       "Evening Show",
		Type:       "external",
		Segments: []models.IngestSegment{
			{ExternalID: "segment0", Name: "Headlines", Rank: 0, Parts: []models.IngestPart{
				{ExternalID: "segment0-part0", Name: "Opener", Rank: 0},
				{ExternalID: "segment0-part1", Name: "Lead", Rank: 1},
			}},
			{ExternalID: "segment1", Name: "Weather", Rank: 1, Parts: []models.IngestPart{
				{ExternalID: "segment1-part0", Name: "Forecast", Rank: 0},
			}},
		},
	}
}

func TestAPI_IngestRundownLifecycle(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)

	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/playlists", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope.Data.(map[string]any)
	playlists := data["playlists"].([]any)
	require.Len(t, playlists, 1)

	playlistID := playlists[0].(map[string]any)["_id"].(string)
	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/playlists/"+playlistID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := envelope.Data.(map[string]any)
	assert.Len(t, state["segments"].([]any), 2)
	assert.Len(t, state["parts"].([]any), 3)

	// Delete while inactive removes everything.
	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/ingest/rundowns/abcde", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/playlists/"+playlistID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_IngestValidationFailure(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	bad := map[string]any{"name": "No ID"}
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", bad, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrCodeValidationFailed, envelope.Error.Code)
}

func TestAPI_SegmentRanksUpdate(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := map[string]any{"ranks": map[string]float64{"segment0": 5}}
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns/abcde/segments/ranks", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	// Empty ranks payload is rejected at the edge.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns/abcde/segments/ranks",
		map[string]any{"ranks": map[string]float64{}}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeValidationFailed, envelope.Error.Code)
}

func TestAPI_PlayoutFlow(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, envelope := ts.do(t, http.MethodGet, "/api/v1/playlists", nil, nil)
	playlists := envelope.Data.(map[string]any)["playlists"].([]any)
	playlistID := playlists[0].(map[string]any)["_id"].(string)

	// Take before activation is a precondition failure.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/take", nil, nil)
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, ErrCodePrecondition, envelope.Error.Code)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/activate",
		map[string]any{"rehearsal": true}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Double activation is rejected.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/activate",
		map[string]any{"rehearsal": true}, nil)
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/take", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, envelope = ts.do(t, http.MethodGet, "/api/v1/playlists/"+playlistID, nil, nil)
	state := envelope.Data.(map[string]any)
	require.NotNil(t, state["currentPartInstance"], "take should set a current part instance")
	require.NotNil(t, state["nextPartInstance"], "take should select the following part as next")

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/deactivate", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ActivationConflict(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("show-a"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("show-b"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, envelope := ts.do(t, http.MethodGet, "/api/v1/playlists", nil, nil)
	playlists := envelope.Data.(map[string]any)["playlists"].([]any)
	require.Len(t, playlists, 2)
	idA := playlists[0].(map[string]any)["_id"].(string)
	idB := playlists[1].(map[string]any)["_id"].(string)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/playlists/"+idA+"/activate", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/playlists/"+idB+"/activate", nil, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrCodeConflict, envelope.Error.Code)
	details := envelope.Error.Details.(map[string]any)
	assert.NotEmpty(t, details["conflictingRundowns"])
}

func TestAPI_SetNextValidation(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, envelope := ts.do(t, http.MethodGet, "/api/v1/playlists", nil, nil)
	playlists := envelope.Data.(map[string]any)["playlists"].([]any)
	playlistID := playlists[0].(map[string]any)["_id"].(string)

	// Missing partId fails validation before touching the engine.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/playlists/"+playlistID+"/next",
		map[string]any{"offsetMs": 1000}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeValidationFailed, envelope.Error.Code)
}

func TestAPI_DeviceCommandReplyUnknown(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/devices/commands/nope/reply",
		map[string]any{"reply": "ok"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeNotFound, envelope.Error.Code)
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t, openSecurity())

	resp, envelope := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	resp, envelope = ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
}

func TestAPI_JWTModeEnforcesAuth(t *testing.T) {
	security := config.SecurityConfig{
		AuthMode:        "jwt",
		JWTSecret:       strings.Repeat("k", 32),
		SessionTimeout:  time.Hour,
		AdminUsername:   "admin",
		AdminPassword:   "hunter2hunter2",
		DeviceTokens:    []string{"mos-gateway:gw-secret"},
		RateLimitReqs:   10000,
		RateLimitWindow: time.Minute,
	}
	ts := newTestServer(t, security)

	// Operator route without token.
	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/playlists", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)

	// Device route with bad token.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"),
		map[string]string{auth.HeaderDeviceID: "mos-gateway", auth.HeaderDeviceToken: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Login, then use the token.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]any{"username": "admin", "password": "hunter2hunter2"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := envelope.Data.(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/playlists", nil,
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Device route with the right token.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/ingest/rundowns", sampleRundown("abcde"),
		map[string]string{auth.HeaderDeviceID: "mos-gateway", auth.HeaderDeviceToken: "gw-secret"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Wrong password is rejected.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]any{"username": "admin", "password": "wrong-password"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
