// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func TestTeamRepo_CreateJoinAcceptMakesMember(t *testing.T) {
	r := newTeamRepo()
	captain := world.PlayerID(1)
	joiner := world.PlayerID(2)

	teamID, err := r.Create(captain, "  Wolfpack  ", 10)
	if err != nil {
		t.Fatalf("unexpected error creating team: %v", err)
	}
	if r.Get(teamID).Name != "Wolfpack" {
		t.Fatalf("expected sanitized name %q, got %q", "Wolfpack", r.Get(teamID).Name)
	}

	if err := r.Join(joiner, teamID); err != nil {
		t.Fatalf("unexpected error joining: %v", err)
	}
	if !r.Get(teamID).IsClosed() && len(r.Get(teamID).Joiners) != 1 {
		t.Fatalf("expected one pending joiner, got %v", r.Get(teamID).Joiners)
	}

	if err := r.AcceptOrReject(captain, joiner, true, 10); err != nil {
		t.Fatalf("unexpected error accepting: %v", err)
	}
	if !r.Get(teamID).IsMember(joiner) {
		t.Fatalf("expected joiner to become a member")
	}
	if r.TeamOf(joiner) != teamID {
		t.Fatalf("expected TeamOf(joiner) == %v, got %v", teamID, r.TeamOf(joiner))
	}
}

func TestTeamRepo_CreateRejectsDuplicateName(t *testing.T) {
	r := newTeamRepo()
	if _, err := r.Create(1, "Same", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Create(2, "Same", 10); err != errTeamNameInUse {
		t.Fatalf("expected errTeamNameInUse, got %v", err)
	}
}

func TestTeamRepo_JoinEvictsOldestWhenOverJoinsMax(t *testing.T) {
	r := newTeamRepo()
	joiner := world.PlayerID(99)
	var teamIDs []world.TeamID
	for i := 0; i < TeamJoinsMax+1; i++ {
		id, err := r.Create(world.PlayerID(100+i), string(rune('A'+i)), 10)
		if err != nil {
			t.Fatalf("unexpected error creating team %d: %v", i, err)
		}
		teamIDs = append(teamIDs, id)
	}

	for _, id := range teamIDs {
		if err := r.Join(joiner, id); err != nil {
			t.Fatalf("unexpected error joining %v: %v", id, err)
		}
	}

	if len(r.joins[joiner]) != TeamJoinsMax {
		t.Fatalf("expected %d pending joins, got %d", TeamJoinsMax, len(r.joins[joiner]))
	}
	firstTeam := r.teams[teamIDs[0]]
	if indexOf(firstTeam.Joiners, joiner) >= 0 {
		t.Fatalf("expected the oldest join request to have been evicted")
	}
}

func TestTeamRepo_LeaveDeletesEmptyTeamAndClearsJoiners(t *testing.T) {
	r := newTeamRepo()
	captain := world.PlayerID(1)
	joiner := world.PlayerID(2)

	teamID, _ := r.Create(captain, "solo-team", 10)
	if err := r.Join(joiner, teamID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Leave(captain); err != nil {
		t.Fatalf("unexpected error leaving: %v", err)
	}
	if r.Get(teamID) != nil {
		t.Fatalf("expected team to be deleted once its last member left")
	}
	if len(r.joins[joiner]) != 0 {
		t.Fatalf("expected joiner's pending join to be cleared, got %v", r.joins[joiner])
	}
}

func TestTeamRepo_KickAndPromoteRequireCaptain(t *testing.T) {
	r := newTeamRepo()
	captain := world.PlayerID(1)
	member := world.PlayerID(2)
	teamID, _ := r.Create(captain, "team", 10)
	_ = r.Join(member, teamID)
	_ = r.AcceptOrReject(captain, member, true, 10)

	if err := r.Kick(member, captain); err != errNotCaptain {
		t.Fatalf("expected errNotCaptain, got %v", err)
	}
	if err := r.Promote(captain, member); err != nil {
		t.Fatalf("unexpected error promoting: %v", err)
	}
	if !r.Get(teamID).IsCaptain(member) {
		t.Fatalf("expected %v to be captain after promotion", member)
	}
}
