// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Command server runs the Showrunner rundown automation engine: the ingest
// reconciler, the playout state machine, the device command channel, and
// the HTTP/WebSocket surface in front of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onairhq/showrunner/internal/api"
	"github.com/onairhq/showrunner/internal/auth"
	"github.com/onairhq/showrunner/internal/blueprint"
	"github.com/onairhq/showrunner/internal/config"
	"github.com/onairhq/showrunner/internal/devices"
	"github.com/onairhq/showrunner/internal/eventbus"
	"github.com/onairhq/showrunner/internal/ingest"
	"github.com/onairhq/showrunner/internal/logging"
	"github.com/onairhq/showrunner/internal/playout"
	"github.com/onairhq/showrunner/internal/queue"
	"github.com/onairhq/showrunner/internal/store"
	"github.com/onairhq/showrunner/internal/supervisor"
	"github.com/onairhq/showrunner/internal/timeline"
	"github.com/onairhq/showrunner/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	log := logging.Logger()
	log.Info().Str("studio_id", cfg.Server.StudioID).Str("environment", cfg.Server.Environment).Msg("showrunner starting")

	// Document store.
	st, err := store.Open(store.Options{
		Path:       cfg.Store.Path,
		GCInterval: cfg.Store.GCInterval,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()
	cols := store.NewCollections(st)

	// Event bus; committed store changes fan out through it.
	bus := eventbus.New()
	defer func() { _ = bus.Close() }()
	st.SetPublisher(bus)

	// Optional NATS JetStream for gateway-facing topics.
	var natsServer *eventbus.EmbeddedServer
	var forwarder *eventbus.Forwarder
	if cfg.Bus.Enabled {
		url := cfg.Bus.URL
		if cfg.Bus.EmbeddedServer {
			natsServer, err = eventbus.NewEmbeddedServer(eventbus.ServerConfig{
				StoreDir:  cfg.Bus.StoreDir,
				MaxMemory: cfg.Bus.MaxMemory,
				MaxStore:  cfg.Bus.MaxStore,
			})
			if err != nil {
				return fmt.Errorf("start embedded nats: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = natsServer.Shutdown(shutdownCtx)
			}()
			url = natsServer.ClientURL()
		}

		natsPub, err := eventbus.NewNATSPublisher(eventbus.NATSConfig{
			URL:                url,
			MaxReconnects:      cfg.Bus.MaxReconnects,
			ReconnectWait:      cfg.Bus.ReconnectWait,
			ReconnectBuffer:    cfg.Bus.ReconnectBuffer,
			BreakerMaxRequests: cfg.Bus.BreakerMaxRequests,
			BreakerInterval:    cfg.Bus.BreakerInterval,
			BreakerTimeout:     cfg.Bus.BreakerTimeout,
		}, nil)
		if err != nil {
			return fmt.Errorf("connect nats publisher: %w", err)
		}
		defer func() { _ = natsPub.Close() }()
		forwarder = eventbus.NewForwarder(bus, natsPub, nil)
	}

	// Serialization queue and the engines on top of it.
	q := queue.New(log, cfg.Ingest.QueueIdleGrace)
	defer q.Close()

	tl := timeline.NewPublisher(log, bus, cfg.Playout.TimelineDebounce)
	defer tl.Flush()

	style := blueprint.NewDefaultShowStyle()
	reconciler := ingest.New(log, cols, q, style, tl, cfg.Server.StudioID, cfg.Ingest.AllowUnsyncedSegments)
	engine := playout.NewEngine(log, cols, q, style, tl, cfg.Playout, cfg.Server.StudioID)
	commands := devices.New(log, cols, bus, cfg.Devices.CommandTimeout)

	// Authentication.
	authn, err := auth.NewAuthenticator(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}
	var creds *auth.Credentials
	if cfg.Security.AdminUsername != "" {
		creds, err = auth.NewCredentials(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			return fmt.Errorf("configure admin credentials: %w", err)
		}
	}

	hub := websocket.NewHub(bus)

	router := api.New(api.Options{
		Log:         log,
		Config:      cfg,
		Collections: cols,
		Reconciler:  reconciler,
		Engine:      engine,
		Commands:    commands,
		Hub:         hub,
		Auth:        authn,
		Creds:       creds,
		NATS:        natsServer,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// Supervision.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(hub)
	if forwarder != nil {
		tree.AddMessagingService(forwarder)
	}
	tree.AddAPIService(&supervisor.HTTPService{Server: httpServer})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	log.Info().Str("addr", httpServer.Addr).Msg("showrunner ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			log.Warn().Str("service", svc.Name).Msg("service missed shutdown timeout")
		}
	}

	log.Info().Msg("showrunner stopped")
	return nil
}
