// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package validation

import (
	"strings"
	"testing"

	"github.com/onairhq/showrunner/internal/models"
)

func TestValidateStruct_IngestRundown(t *testing.T) {
	t.Parallel()

	ok := models.IngestRundown{
		ExternalID: "abcde",
		Name:       "Evening Show",
		Segments: []models.IngestSegment{
			{ExternalID: "segment0", Name: "Headlines"},
		},
	}
	if err := ValidateStruct(&ok); err != nil {
		t.Fatalf("valid rundown rejected: %v", err)
	}

	missing := models.IngestRundown{Name: "Evening Show"}
	err := ValidateStruct(&missing)
	if err == nil {
		t.Fatal("rundown without externalId accepted")
	}
	if len(err.Fields) != 1 || err.Fields[0].Field != "ExternalID" {
		t.Errorf("unexpected fields: %+v", err.Fields)
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("message %q does not mention required", err.Error())
	}
}

func TestValidateStruct_NestedSegment(t *testing.T) {
	t.Parallel()

	// A segment missing its externalId deep in the tree must still fail.
	bad := models.IngestRundown{
		ExternalID: "abcde",
		Name:       "Evening Show",
		Segments: []models.IngestSegment{
			{Name: "Headlines", Parts: []models.IngestPart{{ExternalID: "p0"}}},
		},
	}
	err := ValidateStruct(&bad)
	if err == nil {
		t.Fatal("segment without externalId accepted")
	}
	if err.Fields[0].Tag != "required" {
		t.Errorf("tag = %q, want required", err.Fields[0].Tag)
	}
}

func TestValidateStruct_MultipleFailures(t *testing.T) {
	t.Parallel()

	bad := models.IngestRundown{}
	err := ValidateStruct(&bad)
	if err == nil {
		t.Fatal("empty rundown accepted")
	}
	if len(err.Fields) != 2 {
		t.Fatalf("got %d field errors, want 2 (ExternalID, Name): %+v", len(err.Fields), err.Fields)
	}
}
