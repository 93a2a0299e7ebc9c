// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cursor

import (
	"testing"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// TestEncodeParse_RoundTrip tests that a token decodes back to the position
// it was minted from.
func TestEncodeParse_RoundTrip(t *testing.T) {
	token := Encode(&datatypes.CopilotEvent{ID: "ev-7", CreatedAt: 1712000000123})

	c := Parse(token)
	if c == nil {
		t.Fatal("round-trip token parsed as nil")
	}
	if c.CreatedAt != 1712000000123 || c.ID != "ev-7" {
		t.Errorf("parsed cursor = %+v", c)
	}
}

// TestParse_MalformedTokensYieldNil tests that bad tokens degrade to a full
// replay instead of an error.
func TestParse_MalformedTokensYieldNil(t *testing.T) {
	cases := []string{
		"",
		"not-base64!!!",
		"aGVsbG8=",   // decodes, no separator
		"LTU6ZXYtMQ", // negative timestamp
	}
	for _, token := range cases {
		if c := Parse(token); c != nil {
			t.Errorf("Parse(%q) = %+v, want nil", token, c)
		}
	}
}

// TestRefine_DropsBoundaryDuplicates tests that events sharing the cursor's
// timestamp but already delivered are excluded.
func TestRefine_DropsBoundaryDuplicates(t *testing.T) {
	events := []datatypes.CopilotEvent{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 100},
		{ID: "c", CreatedAt: 100},
		{ID: "d", CreatedAt: 200},
	}

	got := Refine(events, &Cursor{CreatedAt: 100, ID: "b"})
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "d" {
		t.Errorf("refined = %+v, want [c d]", got)
	}
}

// TestRefine_NilCursorPassesThrough tests that no cursor means full replay.
func TestRefine_NilCursorPassesThrough(t *testing.T) {
	events := []datatypes.CopilotEvent{{ID: "a", CreatedAt: 1}}
	if got := Refine(events, nil); len(got) != 1 {
		t.Errorf("refined = %+v, want all events", got)
	}
}

// TestRefine_CursorPastEnd tests that a cursor at the newest event yields
// nothing.
func TestRefine_CursorPastEnd(t *testing.T) {
	events := []datatypes.CopilotEvent{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 200},
	}
	if got := Refine(events, &Cursor{CreatedAt: 200, ID: "b"}); len(got) != 0 {
		t.Errorf("refined = %+v, want empty", got)
	}
}
