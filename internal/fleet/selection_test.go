// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

func TestSelect_PicksClosestRegion(t *testing.T) {
	candidates := []Candidate{
		{ServerID: 1, Region: "eu-west-1"},
		{ServerID: 2, Region: "us-east-1"},
		{ServerID: 3, Region: "us-west-1"},
	}
	req := SelectionRequest{IdealRegion: "us-east-1"}

	id, ok := Select(req, candidates)
	if !ok || id != 2 {
		t.Fatalf("expected server 2 (exact region match), got %v ok=%v", id, ok)
	}
}

func TestSelect_RequestedServerBonusCanWinOverRegion(t *testing.T) {
	requested := session.ServerID(3)
	candidates := []Candidate{
		{ServerID: 2, Region: "us-east-1"}, // distance 0
		{ServerID: 3, Region: "us-west-1"}, // distance 1, but requested: net 0
	}
	req := SelectionRequest{IdealRegion: "us-east-1", RequestedServer: &requested}

	id, ok := Select(req, candidates)
	if !ok {
		t.Fatalf("expected a selection")
	}
	// Both now tie at priority 0; first-encountered wins without load
	// distribution, so either is acceptable as long as it's one of the two.
	if id != 2 && id != 3 {
		t.Fatalf("expected server 2 or 3, got %v", id)
	}
}

func TestSelect_InvitationServerBonusOffsetsRegionDistance(t *testing.T) {
	invitation := session.ServerID(5)
	candidates := []Candidate{
		{ServerID: 2, Region: "us-east-1"}, // distance 0
		{ServerID: 5, Region: "eu-west-1"}, // distance 2, invitation bonus -2: net 0
	}
	req := SelectionRequest{IdealRegion: "us-east-1", InvitationServer: &invitation}

	// Still a tie at 0; confirm the invitation server is at least always
	// in the tied (winnable) set by asserting priority equality directly.
	if priority(req, candidates[0]) != priority(req, candidates[1]) {
		t.Fatalf("expected invitation bonus to equalize priority across a 2-distance gap")
	}
}

func TestSelect_LoadDistributePrefersFewestPlayers(t *testing.T) {
	candidates := []Candidate{
		{ServerID: 1, Region: "us-east-1", PlayerCount: 50},
		{ServerID: 2, Region: "us-east-1", PlayerCount: 5},
	}
	req := SelectionRequest{IdealRegion: "us-east-1", LoadDistribute: true}

	id, ok := Select(req, candidates)
	if !ok || id != 2 {
		t.Fatalf("expected the less-loaded tied server 2, got %v ok=%v", id, ok)
	}
}

func TestSelect_EmptyCandidatesReturnsFalse(t *testing.T) {
	if _, ok := Select(SelectionRequest{}, nil); ok {
		t.Fatalf("expected no selection from an empty candidate list")
	}
}
