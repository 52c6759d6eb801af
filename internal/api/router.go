// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/auth"
	"github.com/onairhq/showrunner/internal/config"
	"github.com/onairhq/showrunner/internal/devices"
	"github.com/onairhq/showrunner/internal/eventbus"
	"github.com/onairhq/showrunner/internal/ingest"
	"github.com/onairhq/showrunner/internal/middleware"
	"github.com/onairhq/showrunner/internal/playout"
	"github.com/onairhq/showrunner/internal/store"
	"github.com/onairhq/showrunner/internal/websocket"
)

// Router wires the HTTP surface together.
type Router struct {
	log  zerolog.Logger
	cfg  *config.Config
	cols *store.Collections

	reconciler *ingest.Reconciler
	engine     *playout.Engine
	commands   *devices.Commands
	hub        *websocket.Hub
	authn      *auth.Authenticator
	creds      *auth.Credentials

	// nats is nil when JetStream forwarding is disabled.
	nats *eventbus.EmbeddedServer
}

// Options carries Router dependencies.
type Options struct {
	Log         zerolog.Logger
	Config      *config.Config
	Collections *store.Collections
	Reconciler  *ingest.Reconciler
	Engine      *playout.Engine
	Commands    *devices.Commands
	Hub         *websocket.Hub
	Auth        *auth.Authenticator
	Creds       *auth.Credentials
	NATS        *eventbus.EmbeddedServer
}

// New creates the router.
func New(opts Options) *Router {
	return &Router{
		log:        opts.Log.With().Str("component", "api").Logger(),
		cfg:        opts.Config,
		cols:       opts.Collections,
		reconciler: opts.Reconciler,
		engine:     opts.Engine,
		commands:   opts.Commands,
		hub:        opts.Hub,
		authn:      opts.Auth,
		creds:      opts.Creds,
		nats:       opts.NATS,
	}
}

// Routes builds the chi handler tree.
func (router *Router) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)

	rateReqs := router.cfg.Security.RateLimitReqs
	rateWindow := router.cfg.Security.RateLimitWindow
	if rateReqs <= 0 {
		rateReqs = 100
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	// Health and metrics: unauthenticated, permissively rate limited so
	// monitoring can probe often.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/health/live", router.handleHealthLive)
		r.Get("/health/ready", router.handleHealthReady)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Login: strict rate limit against brute forcing.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(5, 5*time.Minute))
		r.Post("/api/v1/auth/login", router.handleLogin)
	})

	// Ingest push surface for newsroom gateways.
	r.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(httprate.Limit(rateReqs, rateWindow, httprate.WithKeyFuncs(deviceKey)))
		r.Use(router.authn.RequireDevice)

		r.Post("/rundowns", router.handleRundownCreate)
		r.Route("/rundowns/{externalID}", func(r chi.Router) {
			r.Put("/", router.handleRundownUpdate)
			r.Delete("/", router.handleRundownDelete)
			r.Post("/regenerate", router.handleRundownRegenerate)
			r.Post("/segments/ranks", router.handleSegmentRanksUpdate)

			r.Post("/segments", router.handleSegmentCreate)
			r.Route("/segments/{segmentExternalID}", func(r chi.Router) {
				r.Put("/", router.handleSegmentUpdate)
				r.Delete("/", router.handleSegmentDelete)

				r.Post("/parts", router.handlePartCreate)
				r.Put("/parts/{partExternalID}", router.handlePartUpdate)
				r.Delete("/parts/{partExternalID}", router.handlePartDelete)
			})
		})
	})

	// Device gateway callbacks.
	r.Route("/api/v1/devices", func(r chi.Router) {
		r.Use(httprate.Limit(rateReqs, rateWindow, httprate.WithKeyFuncs(deviceKey)))
		r.Use(router.authn.RequireDevice)

		r.Post("/commands/{commandID}/reply", router.handleCommandReply)
		r.Post("/playlists/{playlistID}/part-instances/{instanceID}/playback-started", router.handlePlaybackStarted)
	})

	// Operator surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateReqs, rateWindow))
		r.Use(router.authn.RequireOperator)

		r.Get("/playlists", router.handlePlaylists)

		r.Route("/playlists/{playlistID}", func(r chi.Router) {
			r.Get("/", router.handlePlaylistState)

			r.Post("/activate", router.handleActivate)
			r.Post("/deactivate", router.handleDeactivate)
			r.Post("/reset", router.handleReset)
			r.Post("/take", router.handleTake)
			r.Post("/next", router.handleSetNext)
			r.Post("/hold", router.handleHoldActivate)
			r.Delete("/hold", router.handleHoldDeactivate)
			r.Post("/adlib", router.handleAdLib)
			r.Post("/sticky", router.handleSticky)
			r.Post("/stop-layers", router.handleStopLayers)
			r.Post("/piece-take-now", router.handlePieceTakeNow)
		})

		r.Post("/devices/{deviceID}/execute", router.handleDeviceExecute)
		r.Get("/ws", router.handleWebSocket)
	})

	return r
}

// deviceKey rate-limits machine peers per device id rather than per IP;
// several gateways can sit behind one NAT.
func deviceKey(r *http.Request) (string, error) {
	if id := r.Header.Get(auth.HeaderDeviceID); id != "" {
		return id, nil
	}
	return httprate.KeyByIP(r)
}
