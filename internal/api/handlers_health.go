// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"net/http"

	"github.com/onairhq/showrunner/internal/models"
)

// handleHealthLive answers as soon as the process serves HTTP.
func (router *Router) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respond(w, r).Success(map[string]string{"status": "alive"})
}

// handleHealthReady reports readiness of the store and, when JetStream
// forwarding is on, the embedded NATS server. A probing load balancer
// should only route traffic once both are up.
func (router *Router) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)

	checks := map[string]string{"store": "ok"}
	ready := true

	// A cheap store read proves Badger is open and responsive.
	if _, err := router.cols.Playlists.Find(r.Context(), func(models.RundownPlaylist) bool { return false }); err != nil {
		checks["store"] = "error: " + err.Error()
		ready = false
	}

	if router.nats != nil {
		if router.nats.IsRunning() {
			checks["nats"] = "ok"
		} else {
			checks["nats"] = "not running"
			ready = false
		}
	}

	if !ready {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready", checks)
		return
	}
	rw.Success(map[string]any{"status": "ready", "checks": checks})
}
