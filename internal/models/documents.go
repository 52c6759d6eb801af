// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package models

// HoldState tracks the hold choreography of a playlist, independently of the
// active/rehearsal state.
type HoldState int

const (
	// HoldNone means no hold is in progress.
	HoldNone HoldState = iota
	// HoldPending means a hold has been armed; the next take starts it.
	HoldPending
	// HoldActive means the hold overlap is on air.
	HoldActive
	// HoldComplete means the hold has been finished and its extended pieces cropped.
	HoldComplete
)

// SegmentUnsyncedReason records why a segment was frozen against ingest.
type SegmentUnsyncedReason string

const (
	// SegmentUnsyncedRemoved: the external system removed the segment while it
	// was unsafe to apply (on air).
	SegmentUnsyncedRemoved SegmentUnsyncedReason = "removed"
	// SegmentUnsyncedChanged: the external system changed the segment while it
	// was unsafe to apply.
	SegmentUnsyncedChanged SegmentUnsyncedReason = "changed"
)

// PieceLifeSpan defines how long a piece stays on air relative to part and
// segment boundaries.
type PieceLifeSpan string

const (
	LifeSpanWithinPart      PieceLifeSpan = "within-part"
	LifeSpanOnSegmentChange PieceLifeSpan = "segment-change"
	LifeSpanOnSegmentEnd    PieceLifeSpan = "segment-end"
	LifeSpanOnRundownChange PieceLifeSpan = "rundown-change"
	LifeSpanOnRundownEnd    PieceLifeSpan = "rundown-end"
)

// IsInfinite reports whether pieces with this lifespan continue across part
// boundaries and therefore participate in infinite-continuation tracking.
func (l PieceLifeSpan) IsInfinite() bool {
	return l != LifeSpanWithinPart && l != ""
}

// StopsOnVirtualPiece reports whether stopping a piece of this lifespan needs
// a zero-content virtual continuation piece instead of a plain user-duration
// crop, so later infinite evaluation still finds a terminator.
func (l PieceLifeSpan) StopsOnVirtualPiece() bool {
	return l == LifeSpanOnSegmentEnd || l == LifeSpanOnRundownEnd
}

// PartInstanceOrphaned marks a part instance whose source part is gone.
type PartInstanceOrphaned string

const (
	// OrphanedAdLibPart: the instance was created for a dynamically inserted
	// (ad-libbed/queued) part that never existed under ingest.
	OrphanedAdLibPart PartInstanceOrphaned = "adlib-part"
	// OrphanedDeletedPart: ingest removed the part while the instance lived.
	OrphanedDeletedPart PartInstanceOrphaned = "deleted-part"
)

// NoteSeverity grades a blueprint note.
type NoteSeverity string

const (
	NoteSeverityWarning NoteSeverity = "warning"
	NoteSeverityError   NoteSeverity = "error"
)

// NoteOrigin points a note at the entity it concerns.
type NoteOrigin struct {
	SegmentExternalID string `json:"segmentExternalId,omitempty"`
	PartExternalID    string `json:"partExternalId,omitempty"`
	PieceExternalID   string `json:"pieceExternalId,omitempty"`
}

// Note is a persisted warning/error raised during ingest, surfaced by the UI
// layer against the segment or part it references.
type Note struct {
	Severity NoteSeverity `json:"severity"`
	Message  string       `json:"message"`
	Origin   NoteOrigin   `json:"origin"`
}

// RundownPlaylist is the aggregate root: the ordered group of rundowns loaded
// for broadcast plus the live playout pointers. Ingest creates and removes
// playlists; only the playout state machine moves the part-instance pointers.
type RundownPlaylist struct {
	ID       string `json:"_id"`
	StudioID string `json:"studioId"`
	Name     string `json:"name"`

	// ExternalID groups rundowns into this playlist; derived from the first
	// rundown's externalId unless the blueprint overrides it.
	ExternalID string `json:"externalId"`

	Active       bool      `json:"active"`
	Rehearsal    bool      `json:"rehearsal"`
	ActivationID string    `json:"activationId,omitempty"`
	Hold         HoldState `json:"holdState"`

	CurrentPartInstanceID  string `json:"currentPartInstanceId,omitempty"`
	NextPartInstanceID     string `json:"nextPartInstanceId,omitempty"`
	PreviousPartInstanceID string `json:"previousPartInstanceId,omitempty"`

	// NextTimeOffset is the operator-requested start offset (ms) within the
	// next part, set by setNext and consumed by the timeline compiler.
	NextTimeOffset int64 `json:"nextTimeOffset,omitempty"`

	// NextPartManual marks the next pointer as explicitly operator-chosen, so
	// automatic next selection after ingest does not override it.
	NextPartManual bool `json:"nextPartManual,omitempty"`

	// RundownIDsInOrder is the playout order of the owned rundowns.
	RundownIDsInOrder []string `json:"rundownIdsInOrder"`

	// PreviousPartEndState carries the blueprint's end-state snapshot of the
	// outgoing part, computed at take time for continuity decisions.
	PreviousPartEndState map[string]any `json:"previousPartEndState,omitempty"`

	StartedPlayback int64 `json:"startedPlayback,omitempty"`
	ResetTime       int64 `json:"resetTime,omitempty"`
	CreatedAt       int64 `json:"created"`
	ModifiedAt      int64 `json:"modified"`
}

// DocID implements store.Doc.
func (p RundownPlaylist) DocID() string { return p.ID }

// Rundown is one externally-sourced show container.
type Rundown struct {
	ID         string `json:"_id"`
	ExternalID string `json:"externalId"`
	StudioID   string `json:"studioId"`
	PlaylistID string `json:"playlistId"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`

	// Unsynced freezes the rundown against ingest until an explicit resync.
	Unsynced   bool  `json:"unsynced,omitempty"`
	UnsyncedAt int64 `json:"unsyncedTime,omitempty"`

	Notes      []Note `json:"notes,omitempty"`
	CreatedAt  int64  `json:"created"`
	ModifiedAt int64  `json:"modified"`
}

// DocID implements store.Doc.
func (r Rundown) DocID() string { return r.ID }

// Segment is an ordered block of parts within a rundown. Rank is a sparse
// float; ordering is by rank, ties broken by id.
type Segment struct {
	ID         string  `json:"_id"`
	RundownID  string  `json:"rundownId"`
	ExternalID string  `json:"externalId"`
	Name       string  `json:"name"`
	Rank       float64 `json:"_rank"`

	Unsynced       bool                  `json:"unsynced,omitempty"`
	UnsyncedReason SegmentUnsyncedReason `json:"unsyncedReason,omitempty"`

	Notes []Note `json:"notes,omitempty"`
}

// DocID implements store.Doc.
func (s Segment) DocID() string { return s.ID }

// Part is a schedulable unit of a segment.
type Part struct {
	ID         string  `json:"_id"`
	SegmentID  string  `json:"segmentId"`
	RundownID  string  `json:"rundownId"`
	ExternalID string  `json:"externalId"`
	Title      string  `json:"title"`
	Rank       float64 `json:"_rank"`

	// Invalid parts render but cannot be taken; Floated parts are skipped by
	// next-part selection without being removed from the script.
	Invalid bool `json:"invalid,omitempty"`
	Floated bool `json:"floated,omitempty"`

	ExpectedDurationMs int64 `json:"expectedDuration,omitempty"`
	AutoNext           bool  `json:"autoNext,omitempty"`
	AutoNextOverlapMs  int64 `json:"autoNextOverlap,omitempty"`

	// InTransitionDurationMs blocks take while the incoming transition of the
	// current part is still running.
	InTransitionDurationMs int64 `json:"inTransitionDuration,omitempty"`
	DisableNextInTransition bool `json:"disableNextInTransition,omitempty"`

	// DynamicallyInsertedAfterPartID marks the part as ad-lib/queued rather
	// than ingest-sourced; it names the part this one was inserted after.
	DynamicallyInsertedAfterPartID string `json:"dynamicallyInsertedAfterPartId,omitempty"`

	Notes []Note `json:"notes,omitempty"`
}

// DocID implements store.Doc.
func (p Part) DocID() string { return p.ID }

// IsDynamicallyInserted reports whether the part is ad-lib/queued rather than
// ingest-sourced.
func (p Part) IsDynamicallyInserted() bool { return p.DynamicallyInsertedAfterPartID != "" }

// IsPlayable reports whether the part may be set as next / taken.
func (p Part) IsPlayable() bool { return !p.Invalid && !p.Floated }

// PartInstanceTimings records the playback lifecycle of one part instance.
// All values are unix milliseconds; zero means "not happened".
type PartInstanceTimings struct {
	Take            int64 `json:"take,omitempty"`
	PlayOffset      int64 `json:"playOffset,omitempty"`
	StartedPlayback int64 `json:"startedPlayback,omitempty"`
	StoppedPlayback int64 `json:"stoppedPlayback,omitempty"`
	TakeDone        int64 `json:"takeDone,omitempty"`
}

// PartInstance is one playback occurrence of a part. The Part is copied in at
// creation time so later ingest edits cannot rewrite playback history.
type PartInstance struct {
	ID           string `json:"_id"`
	ActivationID string `json:"playlistActivationId"`
	RundownID    string `json:"rundownId"`
	SegmentID    string `json:"segmentId"`

	Part Part `json:"part"`

	// TakeCount is the ordinal of this instance within the activation.
	TakeCount int `json:"takeCount"`

	IsTaken  bool                 `json:"isTaken,omitempty"`
	Reset    bool                 `json:"reset,omitempty"`
	Orphaned PartInstanceOrphaned `json:"orphaned,omitempty"`

	// ConsumesNextTimeOffset preserves the operator's setNext offset through take.
	ConsumesNextTimeOffset int64 `json:"consumesNextTimeOffset,omitempty"`

	Timings PartInstanceTimings `json:"timings"`
}

// DocID implements store.Doc.
func (p PartInstance) DocID() string { return p.ID }

// Piece is an ingest-sourced playable element within a part.
type Piece struct {
	ID         string `json:"_id"`
	PartID     string `json:"startPartId"`
	SegmentID  string `json:"startSegmentId"`
	RundownID  string `json:"startRundownId"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`

	SourceLayerID string `json:"sourceLayerId"`
	OutputLayerID string `json:"outputLayerId"`

	// EnableStartMs is the piece's start offset within its part (ms).
	EnableStartMs int64 `json:"enableStart"`
	// DurationMs is the planned duration; zero means open-ended.
	DurationMs int64 `json:"enableDuration,omitempty"`

	LifeSpan     PieceLifeSpan `json:"lifespan"`
	ExtendOnHold bool          `json:"extendOnHold,omitempty"`

	// Virtual pieces carry no content; they exist to terminate infinites.
	Virtual bool `json:"virtual,omitempty"`

	// AllowStickyResume lets sourceLayerStickyPieceStart reuse this piece.
	AllowStickyResume bool `json:"allowStickyResume,omitempty"`

	Content map[string]any `json:"content,omitempty"`
}

// DocID implements store.Doc.
func (p Piece) DocID() string { return p.ID }

// PieceInstanceInfinite tracks continuity of an infinite piece across part
// instance boundaries. Every continuation of the same on-air infinite shares
// the InfiniteInstanceID.
type PieceInstanceInfinite struct {
	InfiniteInstanceID string `json:"infiniteInstanceId"`
	InfinitePieceID    string `json:"infinitePieceId"`
	FromPreviousPart   bool   `json:"fromPreviousPart,omitempty"`
	FromHold           bool   `json:"fromHold,omitempty"`
}

// PieceInstance is one playback occurrence of a piece within a part instance.
type PieceInstance struct {
	ID             string `json:"_id"`
	ActivationID   string `json:"playlistActivationId"`
	RundownID      string `json:"rundownId"`
	PartInstanceID string `json:"partInstanceId"`

	Piece Piece `json:"piece"`

	// AdLibSourceID references the AdLibPiece/BucketAdLib that produced this
	// instance, empty for ingest-sourced pieces.
	AdLibSourceID string `json:"adLibSourceId,omitempty"`
	FromAdLib     bool   `json:"dynamicallyInserted,omitempty"`

	StartedPlayback int64 `json:"startedPlayback,omitempty"`
	StoppedPlayback int64 `json:"stoppedPlayback,omitempty"`

	// UserDurationMs truncates the piece manually; zero means untruncated.
	UserDurationMs int64 `json:"userDuration,omitempty"`

	Reset bool `json:"reset,omitempty"`

	Infinite *PieceInstanceInfinite `json:"infinite,omitempty"`
}

// DocID implements store.Doc.
func (p PieceInstance) DocID() string { return p.ID }

// IsActiveAt reports whether the instance has started by ts and has not been
// stopped or manually truncated before ts.
func (p PieceInstance) IsActiveAt(ts int64) bool {
	if p.StartedPlayback == 0 || p.StartedPlayback > ts {
		return false
	}
	if p.StoppedPlayback != 0 && p.StoppedPlayback <= ts {
		return false
	}
	if p.UserDurationMs != 0 && p.StartedPlayback+p.UserDurationMs <= ts {
		return false
	}
	return true
}

// AdLibPiece is an operator-triggerable piece template attached to a part.
type AdLibPiece struct {
	ID        string  `json:"_id"`
	RundownID string  `json:"rundownId"`
	PartID    string  `json:"partId,omitempty"`
	Name      string  `json:"name"`
	Rank      float64 `json:"_rank"`

	SourceLayerID string `json:"sourceLayerId"`
	OutputLayerID string `json:"outputLayerId"`

	LifeSpan   PieceLifeSpan `json:"lifespan"`
	ToBeQueued bool          `json:"toBeQueued,omitempty"`

	ExpectedDurationMs int64          `json:"expectedDuration,omitempty"`
	Content            map[string]any `json:"content,omitempty"`
}

// DocID implements store.Doc.
func (a AdLibPiece) DocID() string { return a.ID }

// AdLibAction is a parameterized operator-triggerable action template.
type AdLibAction struct {
	ID        string `json:"_id"`
	RundownID string `json:"rundownId"`
	PartID    string `json:"partId,omitempty"`
	ActionID  string `json:"actionId"`
	Name      string `json:"display"`

	UserData map[string]any `json:"userData,omitempty"`
}

// DocID implements store.Doc.
func (a AdLibAction) DocID() string { return a.ID }

// BucketAdLib is a studio-scoped ad-lib template kept outside any rundown.
// Immutable under ingest; user edits are allowed.
type BucketAdLib struct {
	ID       string  `json:"_id"`
	BucketID string  `json:"bucketId"`
	StudioID string  `json:"studioId"`
	Name     string  `json:"name"`
	Rank     float64 `json:"_rank"`

	SourceLayerID string `json:"sourceLayerId"`
	OutputLayerID string `json:"outputLayerId"`

	LifeSpan   PieceLifeSpan `json:"lifespan"`
	ToBeQueued bool          `json:"toBeQueued,omitempty"`

	ExpectedDurationMs int64          `json:"expectedDuration,omitempty"`
	Content            map[string]any `json:"content,omitempty"`
}

// DocID implements store.Doc.
func (b BucketAdLib) DocID() string { return b.ID }

// ExpectedPlayoutItem is a derived document recomputed after ingest apply,
// telling device gateways which media/content must be prepared.
type ExpectedPlayoutItem struct {
	ID            string         `json:"_id"`
	RundownID     string         `json:"rundownId"`
	PartID        string         `json:"partId,omitempty"`
	PieceID       string         `json:"pieceId"`
	DeviceSubType string         `json:"deviceSubType"`
	Content       map[string]any `json:"content,omitempty"`
}

// DocID implements store.Doc.
func (e ExpectedPlayoutItem) DocID() string { return e.ID }

// PeripheralCommand is the persisted request/reply record of the device
// command channel. The caller polls until HasReply or a fixed timeout.
type PeripheralCommand struct {
	ID           string `json:"_id"`
	DeviceID     string `json:"deviceId"`
	FunctionName string `json:"functionName"`
	Args         []any  `json:"args"`
	HasReply     bool   `json:"hasReply"`
	Reply        any    `json:"reply,omitempty"`
	ReplyError   string `json:"replyError,omitempty"`
	Time         int64  `json:"time"`
}

// DocID implements store.Doc.
func (c PeripheralCommand) DocID() string { return c.ID }
