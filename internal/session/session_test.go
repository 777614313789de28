// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func newTestRepoWithArena(t *testing.T) (*Repo, ArenaID) {
	t.Helper()
	r := NewRepo()
	arena := r.NewArena(1, "mk48", 7)
	return r, arena.ID
}

func TestCreateSession_RejectsSpider(t *testing.T) {
	r, _ := newTestRepoWithArena(t)
	_, _, _, _, ok := r.CreateSession("mk48", nil, "", nil, UserAgentSpider)
	if ok {
		t.Fatalf("expected spider user agent to be rejected")
	}
}

func TestCreateSession_AllocatesFreshSessionInCompatibleArena(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	gotArena, sessionID, playerID, serverID, ok := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)
	if !ok {
		t.Fatalf("expected session creation to succeed")
	}
	if gotArena != arenaID {
		t.Fatalf("expected arena %v, got %v", arenaID, gotArena)
	}
	if sessionID == SessionIDInvalid || playerID == 0 {
		t.Fatalf("expected valid session/player ids, got %v/%v", sessionID, playerID)
	}
	if serverID != 7 {
		t.Fatalf("expected server id 7, got %v", serverID)
	}
}

func TestCreateSession_RenewsCompatibleExistingSession(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, playerID, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)

	saved := &struct {
		ArenaID   ArenaID
		SessionID SessionID
	}{ArenaID: arenaID, SessionID: sessionID}

	gotArena, gotSession, gotPlayer, _, ok := r.CreateSession("mk48", nil, "some-referrer", saved, UserAgentBrowser)
	if !ok {
		t.Fatalf("expected renewal to succeed")
	}
	if gotArena != arenaID || gotSession != sessionID || gotPlayer != playerID {
		t.Fatalf("expected the exact same credentials back on renewal, got arena=%v session=%v player=%v", gotArena, gotSession, gotPlayer)
	}
	if r.Arena(arenaID).Sessions[sessionID].Referrer != "some-referrer" {
		t.Fatalf("expected referrer to be updated on renewal")
	}
}

func TestCreateSession_TerminatesIncompatibleGameAndAllocatesFresh(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	r.NewArena(2, "other-game", 7)

	_, oldSessionID, _, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)
	saved := &struct {
		ArenaID   ArenaID
		SessionID SessionID
	}{ArenaID: arenaID, SessionID: oldSessionID}

	newArena, newSessionID, _, _, ok := r.CreateSession("other-game", nil, "", saved, UserAgentBrowser)
	if !ok {
		t.Fatalf("expected fresh session creation to succeed")
	}
	if newArena != 2 {
		t.Fatalf("expected a fresh session in arena 2, got %v", newArena)
	}
	if newSessionID == oldSessionID {
		t.Fatalf("expected a new session id, not the reused old one")
	}
	if r.Arena(arenaID).Sessions[oldSessionID].DateTerminated.IsZero() {
		t.Fatalf("expected the old, game-incompatible session to be terminated")
	}
}

func TestStartPlayThenStopPlay(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, playerID, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)

	gotPlayer, ok := r.StartPlay(arenaID, sessionID, nil, 1)
	if !ok || gotPlayer != playerID {
		t.Fatalf("expected StartPlay to succeed for player %v, got %v/%v", playerID, gotPlayer, ok)
	}
	s := r.Arena(arenaID).Sessions[sessionID]
	if !s.Live {
		t.Fatalf("expected session to become live")
	}
	play := s.LastPlay()
	if play == nil || !play.Renewed {
		t.Fatalf("expected first play to be marked renewed")
	}

	r.StopPlay(arenaID, sessionID)
	if play.DateStop.IsZero() {
		t.Fatalf("expected StopPlay to set DateStop")
	}
	if !s.Live {
		t.Fatalf("expected session to remain live after StopPlay")
	}
}

func TestIdentifySession_SanitizesAlias(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, _, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)

	ok := r.IdentifySession(arenaID, sessionID, "  Nelson  ", func(s string) string { return trimSpaceForTest(s) })
	if !ok {
		t.Fatalf("expected identify to succeed")
	}
	if r.Arena(arenaID).Sessions[sessionID].Alias != "Nelson" {
		t.Fatalf("expected sanitized alias %q, got %q", "Nelson", r.Arena(arenaID).Sessions[sessionID].Alias)
	}
}

func trimSpaceForTest(s string) string { return sanitizeTeamName(s) }

func TestValidateSession_ValidatesEvenTerminatedSession(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, _, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)
	r.TerminateSession(arenaID, sessionID)

	_, _, _, _, ok := r.ValidateSession(arenaID, sessionID)
	if !ok {
		t.Fatalf("expected even a terminated session to validate")
	}
}

func TestPruneSessions_SoftTerminatesStaleSession(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, _, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)

	s := r.Arena(arenaID).Sessions[sessionID]
	s.DateRenewed = s.DateRenewed.Add(-TwoDays - 1)

	r.PruneSessions()
	if s.DateTerminated.IsZero() {
		t.Fatalf("expected a session inactive for over two days to be soft-terminated")
	}
}

func TestPruneSessions_FinalRemovalCleansUpOutstandingTeamJoins(t *testing.T) {
	r, arenaID := newTestRepoWithArena(t)
	_, sessionID, playerID, _, _ := r.CreateSession("mk48", nil, "", nil, UserAgentBrowser)

	arena := r.Arena(arenaID)
	teamID, err := arena.Teams.Create(world.PlayerID(999), "Wolfpack", 10)
	if err != nil {
		t.Fatalf("unexpected error creating team: %v", err)
	}
	if err := arena.Teams.Join(playerID, teamID); err != nil {
		t.Fatalf("unexpected error joining: %v", err)
	}
	if len(arena.Teams.Get(teamID).Joiners) != 1 {
		t.Fatalf("expected one pending joiner before removal")
	}

	s := arena.Sessions[sessionID]
	s.DateTerminated = time.Now().Add(-TerminatedRetention - time.Second)

	r.PruneSessions()

	if _, ok := arena.Sessions[sessionID]; ok {
		t.Fatalf("expected the session to be fully removed")
	}
	if len(arena.Teams.Get(teamID).Joiners) != 0 {
		t.Fatalf("expected CleanupPlayer to drop the removed player from every team's Joiners, got %v", arena.Teams.Get(teamID).Joiners)
	}
}
