// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/onairhq/showrunner/internal/models"
	"github.com/onairhq/showrunner/internal/store"
)

func (router *Router) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)

	playlists, err := router.cols.Playlists.Find(r.Context(), nil)
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"playlists": playlists})
}

// playlistState is the full snapshot an operator UI needs to render one
// playlist. It reads committed state directly; the queue lane only guards
// mutations.
type playlistState struct {
	Playlist models.RundownPlaylist `json:"playlist"`
	Rundowns []models.Rundown       `json:"rundowns"`
	Segments []models.Segment       `json:"segments"`
	Parts    []models.Part          `json:"parts"`

	CurrentPartInstance  *models.PartInstance `json:"currentPartInstance,omitempty"`
	NextPartInstance     *models.PartInstance `json:"nextPartInstance,omitempty"`
	PreviousPartInstance *models.PartInstance `json:"previousPartInstance,omitempty"`

	// PieceInstances carries the pieces of the three pointer instances.
	PieceInstances []models.PieceInstance `json:"pieceInstances"`
}

func (router *Router) handlePlaylistState(w http.ResponseWriter, r *http.Request) {
	rw := respond(w, r)
	ctx := r.Context()
	playlistID := chi.URLParam(r, "playlistID")

	playlist, err := router.cols.Playlists.FindOne(ctx, playlistID)
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}

	inPlaylist := func(rundownID string) bool {
		for _, id := range playlist.RundownIDsInOrder {
			if id == rundownID {
				return true
			}
		}
		return false
	}

	rundowns, err := router.cols.Rundowns.Find(ctx, func(ro models.Rundown) bool {
		return ro.PlaylistID == playlistID
	})
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	// Present rundowns in playout order, not doc-id order.
	order := make(map[string]int, len(playlist.RundownIDsInOrder))
	for i, id := range playlist.RundownIDsInOrder {
		order[id] = i
	}
	sort.SliceStable(rundowns, func(i, j int) bool {
		return order[rundowns[i].ID] < order[rundowns[j].ID]
	})

	segments, err := router.cols.Segments.Find(ctx, func(s models.Segment) bool {
		return inPlaylist(s.RundownID)
	})
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].RundownID != segments[j].RundownID {
			return order[segments[i].RundownID] < order[segments[j].RundownID]
		}
		return segments[i].Rank < segments[j].Rank
	})

	parts, err := router.cols.Parts.Find(ctx, func(p models.Part) bool {
		return inPlaylist(p.RundownID)
	})
	if err != nil {
		writeDomainError(rw, r, err)
		return
	}

	state := playlistState{
		Playlist:       playlist,
		Rundowns:       rundowns,
		Segments:       segments,
		Parts:          parts,
		PieceInstances: []models.PieceInstance{},
	}

	pointerIDs := make(map[string]bool, 3)
	loadInstance := func(id string) (*models.PartInstance, error) {
		if id == "" {
			return nil, nil
		}
		instance, err := router.cols.PartInstances.FindOne(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		pointerIDs[id] = true
		return &instance, nil
	}

	if state.CurrentPartInstance, err = loadInstance(playlist.CurrentPartInstanceID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	if state.NextPartInstance, err = loadInstance(playlist.NextPartInstanceID); err != nil {
		writeDomainError(rw, r, err)
		return
	}
	if state.PreviousPartInstance, err = loadInstance(playlist.PreviousPartInstanceID); err != nil {
		writeDomainError(rw, r, err)
		return
	}

	if len(pointerIDs) > 0 {
		pieces, err := router.cols.PieceInstances.Find(ctx, func(pi models.PieceInstance) bool {
			return pointerIDs[pi.PartInstanceID] && !pi.Reset
		})
		if err != nil {
			writeDomainError(rw, r, err)
			return
		}
		state.PieceInstances = pieces
	}

	rw.Success(state)
}
