// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
)

func newTestWorld() *World {
	return New(1000, terrain.New(terrain.NewDefaultGenerator(), 1000))
}

func TestApplyMutations_HigherAbsolutePriorityWins(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD")
	w.Spawn(e)

	w.queueMutation(NewRepair(e.ID, flat.Seconds(1)))
	w.queueMutation(NewRemove(e.ID, DeathReason{Type: DeathTypeBorder}))

	w.applyMutations()

	w.EntityByID(e.ID, func(found *Entity) {
		t.Fatalf("expected Remove (higher absolute priority) to delete the entity, found it still alive: %+v", found)
	})
}

func TestApplyMutations_RelativePriorityOrdersWithinClass(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD")
	w.Spawn(e)

	// Two HitBy mutations: the queue should apply the higher-damage one
	// first by relative priority, but since neither kills the boat on its
	// own, both should still apply (order only matters once one kills).
	w.queueMutation(NewHitBy(e.ID, nil, e.Type, 1))
	w.queueMutation(NewHitBy(e.ID, nil, e.Type, 2))

	w.applyMutations()

	w.EntityByID(e.ID, func(found *Entity) {
		if found.Damage != flat.DamageToTicks(3) {
			t.Fatalf("expected both hits to apply, got damage %v", found.Damage)
		}
	})
}

func TestApplyMutations_RemoveSkipsLowerPriorityMutationsOnSameEntity(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD")
	w.Spawn(e)

	w.queueMutation(NewRemove(e.ID, DeathReason{Type: DeathTypeSinking}))
	w.queueMutation(NewRepair(e.ID, flat.Seconds(1)))

	w.applyMutations()

	found := false
	w.EntityByID(e.ID, func(*Entity) { found = true })
	if found {
		t.Fatalf("expected entity removed by the higher-priority mutation to stay removed")
	}
}

func TestApplyMutations_DifferentEntitiesBothApply(t *testing.T) {
	w := newTestWorld()
	a := newTestEntity(t, "fairmileD")
	a.ID = 1
	b := newTestEntity(t, "fairmileD")
	b.ID = 2
	w.Spawn(a)
	w.Spawn(b)

	w.queueMutation(NewRepair(a.ID, flat.Seconds(1)))
	w.queueMutation(NewRepair(b.ID, flat.Seconds(1)))

	w.applyMutations()

	for _, id := range []EntityID{a.ID, b.ID} {
		seen := false
		w.EntityByID(id, func(*Entity) { seen = true })
		if !seen {
			t.Fatalf("expected entity %v to still exist", id)
		}
	}
}

func TestHitBy_KillAttributesToAttacker(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD")
	e.Player = &Player{ID: 1, Alias: "victim"}
	w.Spawn(e)

	attacker := &Player{ID: 2, Alias: "attacker"}
	w.queueMutation(NewHitBy(e.ID, attacker, e.Type, e.MaxHealth().Float()*10))
	w.applyMutations()

	if attacker.Score != 1 {
		t.Fatalf("expected attacker score to increment on a kill, got %d", attacker.Score)
	}
	if e.Player.DeathReason.Player != attacker.Alias {
		t.Fatalf("expected death reason to attribute the attacker, got %q", e.Player.DeathReason.Player)
	}
}

func TestApplyMutations_RemoveOfPilotedEntityRecordsDeathEvent(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD")
	e.Player = &Player{ID: 1, Alias: "victim"}
	w.Spawn(e)

	w.queueMutation(NewRemove(e.ID, DeathReason{Type: DeathTypeSinking, Player: "attacker"}))
	w.applyMutations()

	deaths := w.DrainDeathEvents()
	if len(deaths) != 1 || deaths[0].Entity != e.ID || deaths[0].Reason.Player != "attacker" {
		t.Fatalf("expected one death event attributing the kill, got %+v", deaths)
	}

	// Draining clears the accumulator.
	if again := w.DrainDeathEvents(); len(again) != 0 {
		t.Fatalf("expected DrainDeathEvents to clear after draining, got %+v", again)
	}
}

func TestApplyMutations_RemoveOfUnpilotedEntityRecordsNoDeathEvent(t *testing.T) {
	w := newTestWorld()
	e := newTestEntity(t, "fairmileD") // no Player: a weapon or collectible
	w.Spawn(e)

	w.queueMutation(NewRemove(e.ID, DeathReason{}))
	w.applyMutations()

	if deaths := w.DrainDeathEvents(); len(deaths) != 0 {
		t.Fatalf("expected no death event for an unpiloted entity, got %+v", deaths)
	}
}

func TestClearSpawnProtection(t *testing.T) {
	w := newTestWorld()
	now := time.Now()
	w.tickStart = now
	e := newTestEntity(t, "fairmileD")
	e.Player = &Player{ID: 1, SpawnedAt: now}
	w.Spawn(e)

	if mult := e.Player.SpawnProtectionMultiplier(now); mult != 0 {
		t.Fatalf("expected fresh spawn to have zero multiplier, got %f", mult)
	}

	w.queueMutation(NewClearSpawnProtection(e.ID))
	w.applyMutations()

	if mult := e.Player.SpawnProtectionMultiplier(now); mult != 1 {
		t.Fatalf("expected ClearSpawnProtection to end the window immediately, got %f", mult)
	}
}
