// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

func TestPlayersFriendly(t *testing.T) {
	a := &Player{ID: 1, TeamID: 5}
	b := &Player{ID: 2, TeamID: 5}
	c := &Player{ID: 3, TeamID: 6}

	if !playersFriendly(a, a) {
		t.Fatalf("expected a player to be friendly with itself")
	}
	if !playersFriendly(a, b) {
		t.Fatalf("expected same-team players to be friendly")
	}
	if playersFriendly(a, c) {
		t.Fatalf("expected different-team players to be unfriendly")
	}
	if playersFriendly(nil, nil) {
		t.Fatalf("expected two nil owners to never be friendly (unlike Player.Friendly)")
	}
	if playersFriendly(a, nil) {
		t.Fatalf("expected a nil owner to never be friendly")
	}
}

func TestOwner_PrefersPlayerOverCreator(t *testing.T) {
	pilot := &Player{ID: 1}
	creator := &Player{ID: 2}

	boat := newTestEntity(t, "fairmileD")
	boat.Player = pilot
	boat.Creator = creator
	if owner(boat) != pilot {
		t.Fatalf("expected owner to prefer Player over Creator when both are set")
	}

	torpedo := newTestEntity(t, "mark18")
	torpedo.Creator = creator
	if owner(torpedo) != creator {
		t.Fatalf("expected owner to fall back to Creator for an un-piloted entity")
	}
}

func TestPairJitter_DeterministicAndOrderIndependent(t *testing.T) {
	a, b := EntityID(10), EntityID(20)
	j1 := pairJitter(a, b)
	j2 := pairJitter(b, a)
	if j1 != j2 {
		t.Fatalf("expected pairJitter to be symmetric in its arguments, got %f vs %f", j1, j2)
	}
	if j1 < -0.5 || j1 >= 0.5 {
		t.Fatalf("expected pairJitter in [-0.5, 0.5), got %f", j1)
	}

	j3 := pairJitter(a, EntityID(21))
	if j1 == j3 {
		t.Fatalf("expected different pairs to (almost certainly) jitter differently")
	}
}

func TestCollisionMultiplier_ClampsToRange(t *testing.T) {
	if m := collisionMultiplier(0, 100); m != 1.5 {
		t.Fatalf("expected center hit to clamp to 1.5, got %f", m)
	}
	if m := collisionMultiplier(1e9, 100); m != 0.5 {
		t.Fatalf("expected far miss to clamp to 0.5, got %f", m)
	}
}

func TestNonContact_CollectibleGravitatesTowardNonCreatorBoat(t *testing.T) {
	w := newTestWorld()

	boat := newTestEntity(t, "fairmileD")
	boat.ID = 1
	boat.Player = &Player{ID: 1}
	boat.Transform.Position = flat.Vec2{X: 100, Y: 0}

	crate := newTestEntity(t, "crate")
	crate.ID = 2
	crate.Transform.Position = flat.Vec2{X: 0, Y: 0}

	var bestGuidance *GuidanceMutation
	var bestStrength float32 = -1e18
	w.nonContact(flat.Seconds(0.1), boat.ID, boat, crate.ID, crate, &bestGuidance, &bestStrength)

	if len(w.queue) != 1 {
		t.Fatalf("expected exactly one queued Attraction mutation, got %d", len(w.queue))
	}
	attr, ok := w.queue[0].(Attraction)
	if !ok {
		t.Fatalf("expected an Attraction mutation, got %T", w.queue[0])
	}
	if attr.Target() != crate.ID {
		t.Fatalf("expected the crate to be the Attraction target")
	}
}

func TestNonContact_PaymentCollectibleIgnoresPlainGravitation(t *testing.T) {
	w := newTestWorld()

	boat := newTestEntity(t, "fairmileD")
	boat.ID = 1
	boat.Player = &Player{ID: 1}
	boat.Transform.Position = flat.Vec2{X: 100, Y: 0}

	coin := newTestEntity(t, "coin")
	coin.ID = 2

	var bestGuidance *GuidanceMutation
	var bestStrength float32 = -1e18
	w.nonContact(flat.Seconds(0.1), boat.ID, boat, coin.ID, coin, &bestGuidance, &bestStrength)

	if len(w.queue) != 0 {
		t.Fatalf("expected a coin to never gravitate toward a boat directly, got %d mutations", len(w.queue))
	}
}
