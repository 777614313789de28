// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func newTestLoop(t *testing.T) (*Loop, *world.Entity) {
	t.Helper()
	w := world.New(1000, terrain.New(terrain.NewDefaultGenerator(), 1000))
	ty := catalog.Current().ParseType("fairmileD")
	e := world.NewEntity(world.EntityID(1), ty)
	w.Spawn(e)

	p := &world.Player{ID: world.PlayerID(1), EntityID: e.ID}
	w.AddPlayer(p)

	sessions := session.NewRepo()
	registry := NewRegistry(100, 10)
	lb := NewLeaderboard(newFakeDatabase(), "mk48arena")
	return NewLoop(w, sessions, registry, session.ArenaID(1), lb, nil), e
}

func TestLoop_DispatchGuidanceAppliesOnNextTick(t *testing.T) {
	l, e := newTestLoop(t)

	target := 10 * flat.MeterPerSecond
	l.Dispatch(world.PlayerID(1), Command{Guidance: &world.Guidance{VelocityTarget: target}})
	l.World.Tick(time.Now(), flat.TickPeriod)

	var got flat.Velocity
	l.World.EntityByID(e.ID, func(found *world.Entity) { got = found.Guidance.VelocityTarget })
	if got != target {
		t.Fatalf("expected dispatched guidance to be applied, got velocity target %v want %v", got, target)
	}
}

func TestLoop_DispatchFireResetsReloadOfAddressedSlot(t *testing.T) {
	l, e := newTestLoop(t)
	if len(e.Reloads) == 0 {
		t.Skip("fixture has no armament slots")
	}
	e.Reloads[0] = e.Data().Slots[0].Reload // mark slot as not yet ready

	l.Dispatch(world.PlayerID(1), Command{FireIndex: intPtr(0)})
	l.World.Tick(time.Now(), flat.TickPeriod)

	var reload flat.Ticks
	l.World.EntityByID(e.ID, func(found *world.Entity) { reload = found.Reloads[0] })
	if reload != 0 {
		t.Fatalf("expected fire command to reset slot 0's reload to 0, got %v", reload)
	}
}

func TestLoop_DispatchDropsOutOfRangeFireIndex(t *testing.T) {
	l, _ := newTestLoop(t)
	l.Dispatch(world.PlayerID(1), Command{FireIndex: intPtr(999)})
	// No panic, no mutation queued for a nonexistent slot: nothing else to
	// assert beyond Dispatch returning normally.
}

func TestLoop_DispatchIgnoresCommandsPastRateBudget(t *testing.T) {
	l, e := newTestLoop(t)
	for i := 0; i < CommandBurst+5; i++ {
		l.Dispatch(world.PlayerID(1), Command{Guidance: &world.Guidance{VelocityTarget: flat.Velocity(i)}})
	}
	l.World.Tick(time.Now(), flat.TickPeriod)

	var got flat.Velocity
	l.World.EntityByID(e.ID, func(found *world.Entity) { got = found.Guidance.VelocityTarget })
	if got == flat.Velocity(CommandBurst+4) {
		t.Fatalf("expected rate limiting to drop the tail of a burst, but the last command still landed")
	}
}

func intPtr(i int) *int { return &i }
