// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/chewxy/math32"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
)

// maxAcceleration bounds how fast Velocity can approach VelocityTarget, in
// m/s^2. Grounded on server/world/entity.go's inlined `800 * seconds`.
const maxAcceleration = 800

// turnRateBase is the nominal angular rate (radians/sec) a non-aircraft,
// non-shell entity turns at before the slow-while-turning-hard adjustment.
const turnRateBase = math32.Pi / 4

// RadiusClearance is the multiple of worldRadius a boat may reach, taking
// border damage, before it is removed; any other entity is removed as soon
// as it passes worldRadius.
const RadiusClearance = 1.1

// Entity is one simulated object: boat, weapon, aircraft, decoy,
// collectible, obstacle or turret substructure. Grounded on
// server/world/entity.go, re-expressed over this module's own flat/catalog
// primitives (EntityData -> catalog.EntityTypeData, Vec2f/Angle/Velocity ->
// internal/flat, terrain altitude -> internal/terrain.Altitude) instead of
// the teacher's own package-local copies of those types.
type Entity struct {
	Type      catalog.EntityType
	Transform flat.Transform
	Altitude  terrain.Altitude
	Guidance  Guidance

	Ticks    flat.Ticks // age since spawn
	Damage   flat.Ticks // accumulated damage, compared to Data().MaxHealth()
	Reloads  []flat.Ticks
	Turrets  []flat.Angle

	Player  *Player // the pilot; only ever set on boats
	Creator *Player // who fired/dropped this weapon or collectible, if known
	ID      EntityID
}

// NewEntity allocates an Entity of the given type with freshly zeroed
// per-slot/per-turret state sized to match the catalog declaration.
func NewEntity(id EntityID, t catalog.EntityType) *Entity {
	data := t.Data()
	return &Entity{
		Type:    t,
		ID:      id,
		Reloads: make([]flat.Ticks, len(data.Slots)),
		Turrets: make([]flat.Angle, len(data.Turrets)),
	}
}

// Data returns this entity's static catalog row.
func (e *Entity) Data() *catalog.EntityTypeData { return e.Type.Data() }

// Pos implements spatial.Positioned.
func (e *Entity) Pos() flat.Vec2 { return e.Transform.Position }

// MaxHealth is this entity's Data().MaxHealth(), named at the call site for
// readability.
func (e *Entity) MaxHealth() flat.Ticks { return e.Data().MaxHealth() }

// DamageFraction is accumulated damage as a fraction of max health, in
// [0, 1+].
func (e *Entity) DamageFraction() float32 {
	max := e.MaxHealth()
	if max == 0 {
		return 0
	}
	return e.Damage.Float() / max.Float()
}

// ApplyDamage accumulates ticks of damage and reports whether the entity is
// now dead (damage >= max health).
func (e *Entity) ApplyDamage(amount flat.Ticks) (dead bool) {
	e.Damage += amount
	return e.Damage >= e.MaxHealth()
}

// Repair reduces accumulated damage by the given number of ticks (floored
// at zero).
func (e *Entity) Repair(amount flat.Ticks) {
	if amount >= e.Damage {
		e.Damage = 0
	} else {
		e.Damage -= amount
	}
}

// Collider is anything an entity can collide with but which cannot be
// collided back (terrain). Grounded on server/world/collision.go's
// Collider interface.
type Collider interface {
	Collides(e *Entity, seconds float32) bool
}

// altitudeCollisionThreshold is how close two entities' altitudes must be
// to be considered overlapping.
const altitudeCollisionThreshold = 0.25

// AltitudeOverlap reports whether e and other are close enough in altitude
// to interact, special-casing submerged-submarine-vs-underwater-ordnance
// per server/world/collision.go's AltitudeOverlap.
func (e *Entity) AltitudeOverlap(other *Entity) bool {
	data, otherData := e.Data(), other.Data()
	var boat, weapon *Entity
	if data.Kind == catalog.Current().KindBoat {
		boat = e
	} else if otherData.Kind == catalog.Current().KindBoat {
		boat = other
	}
	if data.Kind == catalog.Current().KindWeapon {
		weapon = e
	} else if otherData.Kind == catalog.Current().KindWeapon {
		weapon = other
	}
	if boat != nil && weapon != nil && boat.Altitude <= 0 {
		sub := weapon.Data().SubKind
		c := catalog.Current()
		if sub == c.SubKindDepthCharge || sub == c.SubKindTorpedo || sub == c.SubKindMine {
			return true
		}
	}
	diff := int(e.Altitude) - int(other.Altitude)
	if diff < 0 {
		diff = -diff
	}
	return float32(diff) <= altitudeCollisionThreshold*127
}

// Update integrates one tick of duration ticks for e: turret aim, throttle,
// heading, translation, terrain/border collision and boat-only
// repair/reload bookkeeping. It only ever mutates e itself, so entities may
// be updated concurrently by different goroutines. Grounded on
// server/world/entity.go's Entity.Update.
func (e *Entity) Update(ticks flat.Ticks, worldRadius float32, collider Collider) (die bool) {
	data := e.Data()
	e.Ticks += ticks
	if data.Lifespan != 0 && e.Ticks > data.Lifespan {
		return true
	}

	seconds := ticks.Float()
	maxSpeed := data.Speed

	e.updateTurrets(ticks)

	c := catalog.Current()
	isShellOrRocket := data.SubKind == c.SubKindShell || data.SubKind == c.SubKindRocket
	if !isShellOrRocket {
		deltaAngle := e.Guidance.DirectionTarget.Diff(e.Transform.Direction)
		maxSpeedF := maxSpeed.Float()
		turnRate := float32(turnRateBase)
		if data.SubKind != c.SubKindAircraft {
			maxSpeedF /= maxF(square(deltaAngle.Abs()), 1)
			turnRate *= maxF(0.25, 1-math32.Abs(e.Transform.Velocity.Float())/(maxSpeed.Float()+1))
		}
		maxSpeed = flat.ToVelocity(maxSpeedF)
		e.Transform.Direction += deltaAngle.ClampMagnitude(flat.Radians(seconds * turnRate))
	}

	if e.Guidance.VelocityTarget != 0 || e.Transform.Velocity != 0 {
		deltaVelocity := e.Guidance.VelocityTarget.ClampMagnitude(maxSpeed) - e.Transform.Velocity
		deltaVelocity = deltaVelocity.ClampMagnitude(flat.ToVelocity(maxAcceleration * seconds))
		e.Transform.Velocity += flat.ToVelocity(seconds * deltaVelocity.Float())
		e.Transform.Position = e.Transform.Position.AddScaled(e.Transform.Direction.Unit(), seconds*e.Transform.Velocity.Float())

		if collider != nil && collider.Collides(e, seconds) {
			if data.Kind != catalog.Current().KindBoat {
				return true
			}
			e.Transform.Velocity = e.Transform.Velocity.ClampMagnitude(5 * flat.MeterPerSecond)
			if e.ApplyDamage(flat.DamageToTicks(seconds * e.MaxHealth().Float() * 0.25)) {
				return true
			}
		}
	}

	centerDist2 := e.Transform.Position.LengthSquared()
	if centerDist2 > flat.Square(worldRadius) {
		dead := e.ApplyDamage(flat.DamageToTicks(seconds * e.MaxHealth().Float()))
		inward := e.Transform.Position.Dot(e.Transform.Direction.Unit())
		e.Transform.Velocity += flat.ToVelocity(flat.ClampMagnitude(e.Transform.Velocity.Float()-6*inward, 15))
		if dead || data.Kind != catalog.Current().KindBoat || centerDist2 > flat.Square(worldRadius*RadiusClearance) {
			return true
		}
	}

	return false
}

// updateTurrets rotates every turret toward the guidance aim direction at
// its declared rotation speed, respecting its azimuth arc. Simplified from
// the teacher's updateTurretAim: each turret tracks the entity's own
// DirectionTarget rather than an independently aimed per-turret target,
// since this module has no separate turret-aim guidance channel.
func (e *Entity) updateTurrets(ticks flat.Ticks) {
	data := e.Data()
	seconds := ticks.Float()
	for i := range e.Turrets {
		if i >= len(data.Turrets) {
			break
		}
		t := &data.Turrets[i]
		target := e.Guidance.DirectionTarget - t.Angle
		if !t.CheckAzimuth(e.Turrets[i]) {
			continue
		}
		delta := target.Diff(e.Turrets[i])
		e.Turrets[i] += delta.ClampMagnitude(flat.Radians(seconds * math32.Pi / 2))
	}
}

func square(v float32) float32 { return v * v }

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
