// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onairhq/showrunner/internal/logging"
)

// HTTPService adapts an *http.Server to suture.Service. When the context is
// canceled it shuts the server down gracefully within the grace period,
// letting in-flight takes and ingest pushes finish.
type HTTPService struct {
	Server *http.Server

	// ShutdownGrace defaults to 10s.
	ShutdownGrace time.Duration
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Server.ListenAndServe()
	}()

	logging.Info().Str("addr", s.Server.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		// ListenAndServe never returns nil; http.ErrServerClosed only
		// follows a Shutdown call, which we did not make on this path.
		return err

	case <-ctx.Done():
		grace := s.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http server shutdown failed")
			_ = s.Server.Close()
		}
		serveErr := <-errCh
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "api.HTTPServer" }
