// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// newUnspawnedTestLoop builds a Loop with one authenticated, not-yet-spawned
// player in its world and session repo, mirroring chat_test.go's
// newLiveTestSession but stopping short of StartPlay (the method under test
// calls it).
func newUnspawnedTestLoop(t *testing.T) (*Loop, world.PlayerID) {
	t.Helper()
	w := world.New(1000, terrain.New(terrain.NewDefaultGenerator(), 1000))

	sessions := session.NewRepo()
	arena := sessions.NewArena(1, "mk48arena", 7)
	_, _, playerID, _, ok := sessions.CreateSession("mk48arena", nil, "", nil, session.UserAgentBrowser)
	if !ok {
		t.Fatalf("expected session creation to succeed")
	}

	w.AddPlayer(&world.Player{ID: playerID, EntityID: world.EntityIDInvalid})

	registry := NewRegistry(100, 10)
	lb := NewLeaderboard(newFakeDatabase(), "mk48arena")
	return NewLoop(w, sessions, registry, arena.ID, lb, nil), playerID
}

func TestLoop_SpawnPlacesEntityAndMarksPlayerAlive(t *testing.T) {
	l, playerID := newUnspawnedTestLoop(t)

	if !l.Spawn(playerID, "fairmileD") {
		t.Fatalf("expected spawn of a known level-1 boat to succeed")
	}

	p := l.World.Player(playerID)
	if p.EntityID == world.EntityIDInvalid {
		t.Fatalf("expected player to own a live entity after spawn")
	}
	var found bool
	l.World.EntityByID(p.EntityID, func(e *world.Entity) { found = true })
	if !found {
		t.Fatalf("expected the spawned entity to be in the world")
	}
}

func TestLoop_SpawnRejectsUnknownType(t *testing.T) {
	l, playerID := newUnspawnedTestLoop(t)
	if l.Spawn(playerID, "not-a-real-type") {
		t.Fatalf("expected spawn of an unknown type name to fail")
	}
}

func TestLoop_SpawnRejectsAlreadyAliveSecondSpawn(t *testing.T) {
	l, playerID := newUnspawnedTestLoop(t)
	if !l.Spawn(playerID, "fairmileD") {
		t.Fatalf("expected first spawn to succeed")
	}
	if l.Spawn(playerID, "fairmileD") {
		t.Fatalf("expected a second spawn while already alive to be rejected")
	}
}
