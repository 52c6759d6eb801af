// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package models

// IngestRundown is the story tree pushed by the newsroom system. It is the
// wire shape for dataRundownCreate/Update and is cached verbatim per rundown
// so segment- and part-level updates can be applied against it.
type IngestRundown struct {
	ExternalID string          `json:"externalId" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	Type       string          `json:"type"`
	Segments   []IngestSegment `json:"segments" validate:"dive"`
	Payload    map[string]any  `json:"payload,omitempty"`
}

// IngestSegment is one ordered segment of an IngestRundown.
type IngestSegment struct {
	ExternalID string         `json:"externalId" validate:"required"`
	Name       string         `json:"name"`
	Rank       float64        `json:"rank"`
	Parts      []IngestPart   `json:"parts" validate:"dive"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// IngestPart is one ordered part of an IngestSegment.
type IngestPart struct {
	ExternalID string         `json:"externalId" validate:"required"`
	Name       string         `json:"name"`
	Rank       float64        `json:"rank"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// IngestDataCache persists the last applied IngestRundown per rundown so
// partial updates (segment/part level) regenerate from a complete tree.
type IngestDataCache struct {
	ID        string        `json:"_id"` // rundown id
	RundownID string        `json:"rundownId"`
	Data      IngestRundown `json:"data"`
	Modified  int64         `json:"modified"`
}

// DocID implements store.Doc.
func (c IngestDataCache) DocID() string { return c.ID }

// FindSegment returns a pointer to the segment with the given externalId, or
// nil when absent.
func (r *IngestRundown) FindSegment(externalID string) *IngestSegment {
	for i := range r.Segments {
		if r.Segments[i].ExternalID == externalID {
			return &r.Segments[i]
		}
	}
	return nil
}

// RemoveSegment deletes the segment with the given externalId. Returns true
// when a segment was removed.
func (r *IngestRundown) RemoveSegment(externalID string) bool {
	for i := range r.Segments {
		if r.Segments[i].ExternalID == externalID {
			r.Segments = append(r.Segments[:i], r.Segments[i+1:]...)
			return true
		}
	}
	return false
}

// FindPart returns a pointer to the part with the given externalId, or nil.
func (s *IngestSegment) FindPart(externalID string) *IngestPart {
	for i := range s.Parts {
		if s.Parts[i].ExternalID == externalID {
			return &s.Parts[i]
		}
	}
	return nil
}

// RemovePart deletes the part with the given externalId. Returns true when a
// part was removed.
func (s *IngestSegment) RemovePart(externalID string) bool {
	for i := range s.Parts {
		if s.Parts[i].ExternalID == externalID {
			s.Parts = append(s.Parts[:i], s.Parts[i+1:]...)
			return true
		}
	}
	return false
}
