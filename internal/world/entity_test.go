// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

func newTestEntity(t *testing.T, typeName string) *Entity {
	t.Helper()
	ty := catalog.Current().ParseType(typeName)
	return NewEntity(EntityID(1), ty)
}

func TestEntity_ApplyDamageAndRepair(t *testing.T) {
	e := newTestEntity(t, "fairmileD")
	max := e.MaxHealth()

	if e.ApplyDamage(max / 2) {
		t.Fatalf("expected entity to survive half damage")
	}
	if f := e.DamageFraction(); f < 0.49 || f > 0.51 {
		t.Fatalf("expected damage fraction ~0.5, got %f", f)
	}

	e.Repair(max)
	if e.Damage != 0 {
		t.Fatalf("expected Repair to floor at zero, got %v", e.Damage)
	}

	if !e.ApplyDamage(max) {
		t.Fatalf("expected entity to die from full damage")
	}
}

func TestEntity_UpdateAccelerates(t *testing.T) {
	e := newTestEntity(t, "fairmileD")
	e.Guidance.VelocityTarget = 10 * flat.MeterPerSecond

	e.Update(flat.Seconds(0.1), 10000, nil)

	if e.Transform.Velocity <= 0 {
		t.Fatalf("expected velocity to ramp up toward guidance target, got %v", e.Transform.Velocity)
	}
	if e.Transform.Position.LengthSquared() <= 0 {
		t.Fatalf("expected entity to have moved")
	}
}

func TestEntity_UpdateExpiresOnLifespan(t *testing.T) {
	e := newTestEntity(t, "mark18")
	data := e.Data()
	if data.Lifespan == 0 {
		t.Fatalf("expected torpedo to have a finite lifespan")
	}

	e.Ticks = data.Lifespan + 1
	if die := e.Update(flat.Seconds(0.1), 10000, nil); !die {
		t.Fatalf("expected entity past its lifespan to die")
	}
}

func TestEntity_UpdateDiesOutsideBorderClearance(t *testing.T) {
	e := newTestEntity(t, "mark18") // weapons die immediately past the border
	e.Transform.Position = flat.Vec2{X: 1000, Y: 0}

	if die := e.Update(flat.Seconds(0.1), 10, nil); !die {
		t.Fatalf("expected non-boat entity far past world radius to die")
	}
}

func TestEntity_AltitudeOverlap(t *testing.T) {
	boat := newTestEntity(t, "gato") // submarine
	torpedo := newTestEntity(t, "mark18")

	boat.Altitude = -1
	if !boat.AltitudeOverlap(torpedo) {
		t.Fatalf("expected submerged boat to overlap a torpedo regardless of its own altitude bucket")
	}

	boat.Altitude = 0
	if overlap := boat.AltitudeOverlap(torpedo); !overlap {
		t.Fatalf("expected surfaced boat to overlap a torpedo at the same nominal altitude")
	}
}
