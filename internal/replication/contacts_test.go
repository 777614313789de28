// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func newEntity(t *testing.T, typeName string) *world.Entity {
	t.Helper()
	ty := catalog.Current().ParseType(typeName)
	return world.NewEntity(world.EntityID(1), ty)
}

func TestObserve_OwnerAlwaysKnown(t *testing.T) {
	viewer := &world.Player{ID: 1}
	boat := newEntity(t, "fairmileD")
	boat.ID = 2
	boat.Player = viewer
	boat.Transform.Position = flat.Vec2{X: 1_000_000, Y: 1_000_000} // far outside any sensor range

	cam := EntityCamera(boat)
	contact, ok := Observe(cam, viewer, boat, boat.Transform.Position.DistanceSquared(flat.Vec2{}))
	if !ok {
		t.Fatalf("expected a player to always observe their own boat regardless of distance")
	}
	if contact.Uncertainty != 0 {
		t.Fatalf("expected zero uncertainty for a known contact, got %f", contact.Uncertainty)
	}
}

func TestObserve_FarUnknownContactNotVisible(t *testing.T) {
	viewer := &world.Player{ID: 1}
	viewerBoat := newEntity(t, "fairmileD")
	viewerBoat.ID = 1
	cam := EntityCamera(viewerBoat)

	stranger := newEntity(t, "fairmileD")
	stranger.ID = 2
	stranger.Player = &world.Player{ID: 2}
	dist2 := float32(1_000_000 * 1_000_000)

	_, ok := Observe(cam, viewer, stranger, dist2)
	if ok {
		t.Fatalf("expected a contact far outside every sensor's range to be dropped entirely")
	}
}

func TestObserve_NonBoatNeverRevealsArmament(t *testing.T) {
	viewer := &world.Player{ID: 1}
	viewerBoat := newEntity(t, "fairmileD")
	viewerBoat.ID = 1
	viewerBoat.Player = viewer
	cam := EntityCamera(viewerBoat)

	torpedo := newEntity(t, "mark18")
	torpedo.ID = 2
	torpedo.Creator = viewer // friendly/known to the viewer

	contact, ok := Observe(cam, viewer, torpedo, 0)
	if !ok {
		t.Fatalf("expected a known torpedo to be observed")
	}
	if contact.ArmamentConsumption != nil || contact.TurretAngles != nil {
		t.Fatalf("expected a non-boat contact to never carry armament/turret fields, got %+v", contact)
	}
}

func TestEntityCamera_SonarBlindAboveWater(t *testing.T) {
	torpedo := newEntity(t, "mark18") // carries a sonar sensor
	torpedo.Altitude = 20             // above water
	cam := EntityCamera(torpedo)
	if cam.Sonar != 0 {
		t.Fatalf("expected sonar range to be zero above water, got %f", cam.Sonar)
	}
}

func TestBuildVisibility_FindsSpawnedEntityWithinRange(t *testing.T) {
	w := world.New(1000, nil)

	boat := newEntity(t, "fairmileD")
	boat.ID = 1
	viewer := &world.Player{ID: 1}
	boat.Player = viewer
	w.Spawn(boat)

	other := newEntity(t, "fairmileD")
	other.ID = 2
	other.Player = &world.Player{ID: 2}
	other.Transform.Position = flat.Vec2{X: 50, Y: 0}
	w.Spawn(other)

	state := NewContactState()
	visible := BuildVisibility(w, EntityCamera(boat), viewer, state)

	found := false
	for _, id := range visible {
		if id == other.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the nearby boat to be resolved into visibility, got %v", visible)
	}
}
