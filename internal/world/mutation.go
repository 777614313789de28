// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
)

// Mutation is a deferred, prioritized effect the interaction pass queues
// against one entity, applied in the single mutation-apply pass so that two
// goroutines scanning the spatial index concurrently never write to an
// Entity directly. Grounded on spec.md §4.4 step 3 and §9's "Mutation
// priority" design note; the teacher has no equivalent (server/update.go
// mutates entities in place during a single-threaded sweep instead).
type Mutation interface {
	// Target is the EntityID this mutation applies to.
	Target() EntityID
	// AbsolutePriority serializes incompatible mutation classes: higher
	// applies first and can cause lower-priority mutations on the same
	// entity this tick to be skipped (e.g. Remove outranks Repair).
	AbsolutePriority() int
	// RelativePriority breaks ties within a class (e.g. higher damage
	// before lower).
	RelativePriority() float32
	// Apply performs the effect against the live entity (already looked
	// up by the queue). remove reports whether the entity should be
	// deleted from the world; skipRest reports whether every remaining
	// mutation queued against this same entity this tick should be
	// skipped (removal always implies skipRest).
	Apply(w *World, e *Entity) (remove, skipRest bool)
}

// Mutation classes, ordered so Remove dominates every other effect and
// Repair/Reload are the lowest-priority "nice to have" bookkeeping.
const (
	PriorityRepair = iota
	PriorityReload
	PriorityAttraction
	PriorityGuidance
	PriorityCollectedBy
	PriorityFireAll
	PriorityClearSpawnProtection
	PriorityUpgradeHq
	PriorityCollidedWithObstacle
	PriorityCollidedWithBoat
	PriorityHitBy
	PriorityRemove
)

// baseMutation centralizes Target/AbsolutePriority/RelativePriority for the
// concrete mutation types below.
type baseMutation struct {
	target   EntityID
	absolute int
	relative float32
}

func (m baseMutation) Target() EntityID          { return m.target }
func (m baseMutation) AbsolutePriority() int     { return m.absolute }
func (m baseMutation) RelativePriority() float32 { return m.relative }

// Remove deletes the entity from the world, recording why for its owner's
// death message (if any).
type Remove struct {
	baseMutation
	Reason DeathReason
}

func NewRemove(target EntityID, reason DeathReason) Remove {
	return Remove{baseMutation{target, PriorityRemove, 0}, reason}
}

func (m Remove) Apply(w *World, e *Entity) (remove, skipRest bool) {
	if e.Player != nil {
		e.Player.DeathReason = m.Reason
	}
	return true, true
}

// HitBy damages e due to a weapon strike, attributing the kill to attacker
// if this hit finishes it off.
type HitBy struct {
	baseMutation
	Attacker *Player
	Weapon   catalog.EntityType
	Damage   float32
}

func NewHitBy(target EntityID, attacker *Player, weapon catalog.EntityType, damage float32) HitBy {
	return HitBy{baseMutation{target, PriorityHitBy, damage}, attacker, weapon, damage}
}

func (m HitBy) Apply(w *World, e *Entity) (remove, skipRest bool) {
	dead := e.ApplyDamage(flat.DamageToTicks(m.Damage))
	if dead {
		reason := DeathReason{Type: DeathTypeSinking, Entity: m.Weapon}
		if m.Attacker != nil {
			reason.Player = m.Attacker.Alias
			m.Attacker.Score++
		}
		if e.Player != nil {
			e.Player.DeathReason = reason
		}
		return true, true
	}
	return false, false
}

// CollidedWithBoat applies symmetric ramming damage and a repulsion impulse.
type CollidedWithBoat struct {
	baseMutation
	Damage  float32
	Impulse flat.Vec2
	Other   *Player
}

func NewCollidedWithBoat(target EntityID, other *Player, damage float32, impulse flat.Vec2) CollidedWithBoat {
	return CollidedWithBoat{baseMutation{target, PriorityCollidedWithBoat, damage}, damage, impulse, other}
}

func (m CollidedWithBoat) Apply(w *World, e *Entity) (remove, skipRest bool) {
	e.Transform.Velocity += flat.ToVelocity(flat.ClampMagnitude(m.Impulse.Dot(e.Transform.Direction.Unit()), 30))
	dead := e.ApplyDamage(flat.DamageToTicks(m.Damage))
	if dead {
		reason := DeathReason{Type: DeathTypeRamming}
		if m.Other != nil {
			reason.Player = m.Other.Alias
			m.Other.Score++
		}
		if e.Player != nil {
			e.Player.DeathReason = reason
		}
		return true, true
	}
	return false, false
}

// CollidedWithObstacle pushes e away from an immovable obstacle and applies
// the obstacle's contact damage.
type CollidedWithObstacle struct {
	baseMutation
	Impulse flat.Vec2
	Damage  float32
	Label   catalog.EntityType
}

func NewCollidedWithObstacle(target EntityID, impulse flat.Vec2, damage float32, label catalog.EntityType) CollidedWithObstacle {
	return CollidedWithObstacle{baseMutation{target, PriorityCollidedWithObstacle, 0}, impulse, damage, label}
}

func (m CollidedWithObstacle) Apply(w *World, e *Entity) (remove, skipRest bool) {
	e.Transform.Velocity += flat.ToVelocity(flat.ClampMagnitude(m.Impulse.Dot(e.Transform.Direction.Unit()), 30))
	if m.Damage <= 0 {
		return false, false
	}
	if e.ApplyDamage(flat.DamageToTicks(m.Damage)) {
		if e.Player != nil {
			e.Player.DeathReason = DeathReason{Type: DeathTypeCollision, Entity: m.Label}
		}
		return true, true
	}
	return false, false
}

// CollectedBy awards score to collector and removes the collectible.
type CollectedBy struct {
	baseMutation
	Collector *Player
	Score     int
}

func NewCollectedBy(target EntityID, collector *Player, score int) CollectedBy {
	return CollectedBy{baseMutation{target, PriorityCollectedBy, 0}, collector, score}
}

func (m CollectedBy) Apply(w *World, e *Entity) (remove, skipRest bool) {
	if m.Collector != nil {
		m.Collector.Score += m.Score
	}
	return true, true
}

// Repair reduces accumulated damage by amount ticks.
type Repair struct {
	baseMutation
	Amount flat.Ticks
}

func NewRepair(target EntityID, amount flat.Ticks) Repair {
	return Repair{baseMutation{target, PriorityRepair, float32(amount)}, amount}
}

func (m Repair) Apply(w *World, e *Entity) (remove, skipRest bool) {
	e.Repair(m.Amount)
	return false, false
}

// Reload reduces every armament slot's remaining reload by amount ticks.
type Reload struct {
	baseMutation
	Amount flat.Ticks
}

func NewReload(target EntityID, amount flat.Ticks) Reload {
	return Reload{baseMutation{target, PriorityReload, float32(amount)}, amount}
}

func (m Reload) Apply(w *World, e *Entity) (remove, skipRest bool) {
	for i := range e.Reloads {
		if e.Reloads[i] > m.Amount {
			e.Reloads[i] -= m.Amount
		} else {
			e.Reloads[i] = 0
		}
	}
	return false, false
}

// Attraction nudges a collectible/decoy toward a gravitating target
// (another entity's position, speed and altitude).
type Attraction struct {
	baseMutation
	Offset       flat.Vec2
	Speed        float32
	AltitudeDiff terrain.Altitude
}

func NewAttraction(target EntityID, offset flat.Vec2, speed float32, altitudeDiff terrain.Altitude) Attraction {
	return Attraction{baseMutation{target, PriorityAttraction, 0}, offset, speed, altitudeDiff}
}

func (m Attraction) Apply(w *World, e *Entity) (remove, skipRest bool) {
	dir := m.Offset.Norm()
	e.Transform.Position = e.Transform.Position.AddScaled(dir, m.Speed*w.tickSeconds)
	if m.AltitudeDiff != 0 {
		e.Altitude += clampAltitudeStep(m.AltitudeDiff)
	}
	return false, false
}

func clampAltitudeStep(diff terrain.Altitude) terrain.Altitude {
	if diff > 1 {
		return 1
	}
	if diff < -1 {
		return -1
	}
	return diff
}

// GuidanceMutation overrides an entity's guidance (e.g. homing lock-on); the
// signal-strength contest in interaction.go only ever keeps the strongest
// one per target per tick.
type GuidanceMutation struct {
	baseMutation
	Guidance       Guidance
	SignalStrength float32
}

func NewGuidanceMutation(target EntityID, guidance Guidance, signalStrength float32) GuidanceMutation {
	return GuidanceMutation{baseMutation{target, PriorityGuidance, signalStrength}, guidance, signalStrength}
}

func (m GuidanceMutation) Apply(w *World, e *Entity) (remove, skipRest bool) {
	e.Guidance = m.Guidance
	return false, false
}

// FireAll instructs every slot of the given sub-kind to fire immediately
// (rocket-torpedo/aircraft weapon deployment), handled by the owning
// arena's spawn logic rather than here.
type FireAll struct {
	baseMutation
	SubKind catalog.EntitySubKind
}

func NewFireAll(target EntityID, subKind catalog.EntitySubKind) FireAll {
	return FireAll{baseMutation{target, PriorityFireAll, 0}, subKind}
}

func (m FireAll) Apply(w *World, e *Entity) (remove, skipRest bool) {
	for i := range e.Reloads {
		slot := e.Data().Slots[i]
		if slot.SubKind == m.SubKind {
			e.Reloads[i] = 0
		}
	}
	return false, false
}

// ClearSpawnProtection ends a boat's spawn-protection window early (e.g.
// after it fires a weapon).
type ClearSpawnProtection struct{ baseMutation }

func NewClearSpawnProtection(target EntityID) ClearSpawnProtection {
	return ClearSpawnProtection{baseMutation{target, PriorityClearSpawnProtection, 0}}
}

func (m ClearSpawnProtection) Apply(w *World, e *Entity) (remove, skipRest bool) {
	if e.Player != nil {
		e.Player.SpawnedAt = w.tickStart.Add(-SpawnProtection)
	}
	return false, false
}

// UpgradeHq is a headquarters-upgrade trigger (handled by the owning
// arena's progression logic; here it's a no-op placeholder target so the
// mutation still participates in priority ordering/testing).
type UpgradeHq struct{ baseMutation }

func NewUpgradeHq(target EntityID) UpgradeHq {
	return UpgradeHq{baseMutation{target, PriorityUpgradeHq, 0}}
}

func (m UpgradeHq) Apply(w *World, e *Entity) (remove, skipRest bool) { return false, false }
