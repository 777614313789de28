// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// Gravitation speeds passed to Attraction's straight-line nudge, replacing
// server/physics.go's `Lerp(..., timeDeltaSeconds*5)` heading lerp, since
// collectibles have no independent Guidance of their own.
const (
	collectibleGravitation = 20 * flat.MeterPerSecond
	paymentGravitation     = 10 * flat.MeterPerSecond
	mineGravitation        = 5 * flat.MeterPerSecond
)

// creatorGrace is how long a collectible ignores its own creator before
// gravitating toward them too.
const creatorGrace = 5 * flat.TicksPerSecond

// owner is the player attribution for e: its pilot if it's a boat,
// otherwise whoever fired or dropped it (may be nil for map-spawned loot).
func owner(e *Entity) *Player {
	if e.Player != nil {
		return e.Player
	}
	return e.Creator
}

// playersFriendly reports whether a and b are the same non-nil player or
// share a non-default team. Unlike Player.Friendly, two nil owners (e.g.
// two un-owned obstacles) are never friendly to each other.
func playersFriendly(a, b *Player) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || (a.TeamID != TeamIDInvalid && a.TeamID == b.TeamID)
}

// resolveInteractions implements §4.4 step 2: for every non-collectible
// entity, scan its minimum scan radius and dispatch non-contact and
// contact behaviors. Grounded on server/physics.go's
// Hub.Physics/ForEntitiesAndOthers pass, restructured so that
// perspective-asymmetric behaviors (homing, anti-aircraft, obstacle
// repair, rocket-torpedo deployment, landing, gravitation) are evaluated
// exactly once — from the entity whose kind/sub-kind triggers them — while
// genuinely symmetric contact behaviors (collisions) are additionally
// gated by the scan-radius/id pair-uniqueness rule so they are resolved
// exactly once per unordered pair.
func (w *World) resolveInteractions(ticks flat.Ticks) {
	c := catalog.Current()

	w.entities.SetParallel(true)
	var wg sync.WaitGroup
	w.entities.ForEachInRadius(flat.Vec2{}, w.Radius*2, func(_ float32, aID EntityID, a *Entity) bool {
		if a.Data().Kind == c.KindCollectible {
			return false // collectibles never iterate; partners discover them
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.interactFrom(ticks, aID, a)
		}()
		return false
	})
	wg.Wait()
	w.entities.SetParallel(false)
}

func (w *World) interactFrom(ticks flat.Ticks, aID EntityID, a *Entity) {
	aRadius := minimumScanRadius(a, ticks)

	var bestGuidance *GuidanceMutation
	var bestStrength float32 = -1e18

	w.entities.ForEachInRadius(a.Pos(), aRadius, func(_ float32, bID EntityID, b *Entity) bool {
		if bID == aID {
			return false
		}
		bRadius := minimumScanRadius(b, ticks)

		w.nonContact(ticks, aID, a, bID, b, &bestGuidance, &bestStrength)

		winner := aRadius > bRadius || (aRadius == bRadius && aID < bID)
		if winner {
			w.contact(ticks, aID, a, bID, b)
		}
		return false
	})

	if bestGuidance != nil {
		w.queueMutation(*bestGuidance)
	}
}

// nonContact dispatches every behavior (§4.4 step 2, "non-contact
// behaviors") that is evaluated from a single side regardless of whether a
// collision actually occurs this tick.
func (w *World) nonContact(ticks flat.Ticks, aID EntityID, a *Entity, bID EntityID, b *Entity, bestGuidance **GuidanceMutation, bestStrength *float32) {
	c := catalog.Current()
	aData, bData := a.Data(), b.Data()
	seconds := ticks.Float()

	// Collectible gravitation toward a non-creator (or any creator after
	// the grace period) boat.
	if aData.Kind == c.KindBoat && bData.Kind == c.KindCollectible {
		if b.Creator != a.Player || b.Ticks > creatorGrace {
			offset := a.Transform.Position.Sub(b.Transform.Position)
			speed := collectibleGravitation
			if bData.SubKind == c.SubKindCoin {
				// payment collectibles only gravitate to oil rigs, below
			} else {
				w.queueMutation(NewAttraction(bID, offset, float32(speed), clampAltitudeStep(a.Altitude-b.Altitude)))
			}
		}
	}

	// Payment collectibles gravitate toward oil rigs.
	if aData.Kind == c.KindObstacle && aData.SubKind == c.SubKindOilPlatform && bData.SubKind == c.SubKindCoin {
		offset := a.Transform.Position.Sub(b.Transform.Position)
		w.queueMutation(NewAttraction(bID, offset, float32(paymentGravitation), 0))
	}

	// Obstacles near non-bot boats get repaired to outpace decay.
	if aData.Kind == c.KindObstacle && bData.Kind == c.KindBoat && b.Player != nil {
		w.queueMutation(NewRepair(aID, flat.Seconds(10*seconds)))
	}

	if !playersFriendly(owner(a), owner(b)) {
		// Mines gravitate toward nearby non-friendly boats, same as the
		// teacher's physics.go attractDist box check.
		if aData.Kind == c.KindWeapon && aData.SubKind == c.SubKindMine && bData.Kind == c.KindBoat && a.AltitudeOverlap(b) {
			const attractDist = 40
			normal := a.Transform.Direction.Unit()
			tangent := normal.Rot90CW()
			normalDist := math32.Abs(normal.Dot(b.Transform.Position) - normal.Dot(a.Transform.Position))
			tangentDist := math32.Abs(tangent.Dot(b.Transform.Position) - tangent.Dot(a.Transform.Position))
			if normalDist < attractDist+bData.Length*0.5 && tangentDist < attractDist+bData.Width*0.5 {
				offset := b.Transform.Position.Sub(a.Transform.Position)
				w.queueMutation(NewAttraction(aID, offset, float32(mineGravitation), 0))
			}
		}

		if aData.Kind == c.KindWeapon && a.AltitudeOverlap(b) && len(aData.Sensors) > 0 {
			w.evaluateHoming(ticks, aID, a, bID, b, bestGuidance, bestStrength)
		}

		// Rocket-torpedo deployment and aircraft weapon-drop window.
		if aData.SubKind == c.SubKindRocket && bData.Kind == c.KindBoat && a.AltitudeOverlap(b) {
			w.queueMutation(NewFireAll(aID, c.SubKindTorpedo))
		}
		if aData.SubKind == c.SubKindAircraft && bData.Kind == c.KindBoat {
			if a.Ticks > 3*flat.TicksPerSecond && a.Collides(b, 1.7+bData.Length*0.01+pairJitter(aID, bID)*0.5) {
				w.queueMutation(NewFireAll(aID, c.SubKindTorpedo))
			}
		}

		// Anti-aircraft.
		if aData.Kind == c.KindBoat && aData.AntiAircraft > 0 && bData.SubKind == c.SubKindAircraft {
			d2 := a.Transform.Position.DistanceSquared(b.Transform.Position)
			r2 := flat.Square(aData.Radius * 1.5)
			if d2 < r2 {
				p := (1 - d2/r2*0.75) * aData.AntiAircraft * seconds
				if p > rand.Float32() {
					w.queueMutation(NewRemove(bID, DeathReason{Type: DeathTypeCollision, Entity: a.Type}))
				}
			}
		}
	}

	// Landing: a friendly, mature aircraft overlapping its owner's boat.
	if aData.SubKind == c.SubKindAircraft && bData.Kind == c.KindBoat && a.Creator == b.Player && a.Creator != nil {
		if a.Ticks > 5*flat.TicksPerSecond && a.Collides(b, seconds) {
			w.queueMutation(NewRemove(aID, DeathReason{}))
		}
	}
}

// evaluateHoming implements the signal-strength contest described in §4.4:
// only SAM->aircraft/missile, torpedo->boat/decoy and missile->surfaced-boat
// pairs are eligible; remaining range, heading and lock angle gate the
// candidate before its strength is compared against the best seen so far
// this tick for the weapon a.
func (w *World) evaluateHoming(ticks flat.Ticks, aID EntityID, a *Entity, bID EntityID, b *Entity, bestGuidance **GuidanceMutation, bestStrength *float32) {
	if a.Ticks < flat.TicksPerSecond {
		return
	}
	c := catalog.Current()
	aData, bData := a.Data(), b.Data()

	eligible := false
	isMissile := aData.SubKind == c.SubKindMissile
	switch aData.SubKind {
	case c.SubKindSAM:
		eligible = bData.SubKind == c.SubKindAircraft || bData.SubKind == c.SubKindMissile
	case c.SubKindTorpedo:
		eligible = bData.Kind == c.KindBoat || bData.Kind == c.KindDecoy
	case c.SubKindMissile:
		eligible = bData.Kind == c.KindBoat && b.Altitude >= 0
	}
	if !eligible {
		return
	}

	offset := b.Transform.Position.Sub(a.Transform.Position)
	dist2 := offset.LengthSquared()
	if dist2 > flat.Square(sensorMaxRange(aData)) {
		return
	}

	headingLimit := float32(80 * math32.Pi / 180)
	lockLimit := float32(60 * math32.Pi / 180)
	if isMissile {
		headingLimit = 40 * math32.Pi / 180
		lockLimit = 30 * math32.Pi / 180
	}
	toTarget := offset.Angle()
	headingAngle := math32.Abs(toTarget.Diff(a.Transform.Direction).Float())
	if headingAngle > headingLimit {
		return
	}
	lockAngle := math32.Abs(toTarget.Diff(a.Guidance.DirectionTarget).Float())
	if lockAngle > lockLimit {
		return
	}

	size := bData.Length
	if bData.Kind == c.KindDecoy {
		size += 200
	}
	if bData.Kind == c.KindBoat && len(bData.Sensors) > 0 {
		size += 75
	}

	altitudeDiff := float32(a.Altitude) - float32(b.Altitude)
	strength := size - dist2 - headingAngle*50 - math32.Abs(altitudeDiff) + pairJitter(aID, bID)*4

	if strength > *bestStrength {
		*bestStrength = strength
		guidance := NewGuidanceMutation(aID, Guidance{
			DirectionTarget: toTarget,
			VelocityTarget:  a.Guidance.VelocityTarget,
		}, strength)
		*bestGuidance = &guidance
	}
}

// pairJitter derives a small, deterministic [-0.5, 0.5) value from an
// unordered id pair, standing in for the teacher's per-entity Hash() used
// to perturb aircraft torpedo-drop timing without a shared PRNG.
func pairJitter(a, b EntityID) float32 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	h := fnv.New32a()
	var buf [8]byte
	buf[0], buf[1], buf[2], buf[3] = byte(lo), byte(lo>>8), byte(lo>>16), byte(lo>>24)
	buf[4], buf[5], buf[6], buf[7] = byte(hi), byte(hi>>8), byte(hi>>16), byte(hi>>24)
	h.Write(buf[:])
	return float32(h.Sum32()%1000)/1000 - 0.5
}

// collisionMultiplier scales damage up near an entity's center and down
// near its edge, ported from server/physics.go's collisionMultiplier.
func collisionMultiplier(d2, r2 float32) float32 {
	v := math32Max(r2-d2+90, 0) / r2
	if v < 0.5 {
		return 0.5
	}
	if v > 1.5 {
		return 1.5
	}
	return v
}

func math32Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// contact implements §4.4's "contact behaviors": dispatched only when a
// and b actually collide this tick, altitude overlaps, and (for the
// purposes of this unordered pair) a is the designated winner.
func (w *World) contact(ticks flat.Ticks, aID EntityID, a *Entity, bID EntityID, b *Entity) {
	if !a.AltitudeOverlap(b) || !a.Collides(b, ticks.Float()) {
		return
	}
	c := catalog.Current()
	aData, bData := a.Data(), b.Data()
	friendly := playersFriendly(owner(a), owner(b))

	var boat, otherBoat, collectible, weapon, obstacle *Entity
	var boatID, otherBoatID, collectibleID, weaponID, obstacleID EntityID
	assign := func(kind catalog.EntityKind, subKind catalog.EntitySubKind, e *Entity, id EntityID) {
		_ = subKind
		switch kind {
		case c.KindBoat:
			if boat == nil {
				boat, boatID = e, id
			} else {
				otherBoat, otherBoatID = e, id
			}
		case c.KindCollectible:
			collectible, collectibleID = e, id
		case c.KindWeapon:
			weapon, weaponID = e, id
		case c.KindObstacle:
			obstacle, obstacleID = e, id
		}
	}
	assign(aData.Kind, aData.SubKind, a, aID)
	assign(bData.Kind, bData.SubKind, b, bID)

	switch {
	case boat != nil && collectible != nil:
		w.queueMutation(NewCollectedBy(collectibleID, boat.Player, 1))
		if collectible.Data().SubKind != c.SubKindBarrel {
			w.queueMutation(NewRepair(boatID, flat.Seconds(1.5)))
		}
		w.queueMutation(NewReload(boatID, collectible.Data().Reload))

	case boat != nil && weapon != nil && !friendly:
		mult := boat.SpawnProtectionMultiplierSafe(w.tickStart) * collisionMultiplier(
			a.Transform.Position.DistanceSquared(b.Transform.Position), flat.Square(boat.Data().Radius))
		damage := weapon.Data().Damage * mult * boat.Data().Resistance(weapon.Data().SubKind)
		w.queueMutation(NewHitBy(boatID, owner(weapon), weapon.Type, damage))
		w.queueMutation(NewRemove(weaponID, DeathReason{}))

	case boat != nil && otherBoat != nil:
		w.resolveBoatBoat(ticks, boatID, boat, otherBoatID, otherBoat, friendly)

	case boat != nil && obstacle != nil:
		posDiff := boat.Transform.Position.Sub(obstacle.Transform.Position).Norm()
		impulse := posDiff.Scale(6 * posDiff.Dot(boat.Transform.Direction.Unit()))
		damage := ticks.Float() * boat.MaxHealth().Float() * 0.15
		w.queueMutation(NewCollidedWithObstacle(boatID, impulse, damage, obstacle.Type))

	case collectible != nil && obstacle != nil && obstacle.Data().SubKind == c.SubKindOilPlatform && collectible.Data().SubKind == c.SubKindCoin:
		w.queueMutation(NewRemove(collectibleID, DeathReason{}))
		if rand.Float32() < 0.1 {
			w.queueMutation(NewUpgradeHq(obstacleID))
		}

	case weapon != nil && collectible != nil:
		if weapon.Data().SubKind == c.SubKindTorpedo && collectible.Data().SubKind == c.SubKindCrate {
			w.queueMutation(NewRemove(collectibleID, DeathReason{}))
		}

	case !friendly:
		if aData.Kind != c.KindObstacle && aData.Kind != c.KindBoat {
			w.queueMutation(NewRemove(aID, DeathReason{}))
		}
		if bData.Kind != c.KindObstacle && bData.Kind != c.KindBoat {
			w.queueMutation(NewRemove(bID, DeathReason{}))
		}
	}
}

// resolveBoatBoat implements the symmetric ramming rule from §4.4,
// processing both orderings exactly as server/physics.go's boat-vs-boat
// case does, but emitting CollidedWithBoat mutations instead of mutating
// entities directly.
func (w *World) resolveBoatBoat(ticks flat.Ticks, aID EntityID, a *Entity, bID EntityID, b *Entity, friendly bool) {
	c := catalog.Current()
	seconds := ticks.Float()

	baseDamage := seconds * 1.1 * math32Min(
		(a.DamageFraction()*-0.5+1)*a.MaxHealth().Float(),
		(b.DamageFraction()*-0.5+1)*b.MaxHealth().Float(),
	)
	baseDamage *= a.SpawnProtectionMultiplierSafe(w.tickStart) * b.SpawnProtectionMultiplierSafe(w.tickStart)
	if friendly {
		baseDamage = 0
	}

	type side struct {
		id      EntityID
		e       *Entity
		otherID EntityID
		other   *Entity
	}
	for _, s := range []side{{aID, a, bID, b}, {bID, b, aID, a}} {
		data, otherData := s.e.Data(), s.other.Data()
		posDiff := s.e.Transform.Position.Sub(s.other.Transform.Position).Norm()

		mass := data.Width * data.Length
		otherMass := otherData.Width * otherData.Length
		massDiff := otherMass / mass

		damage := baseDamage
		if baseDamage > 0 {
			frontPos := s.other.Transform.Position.AddScaled(s.other.Transform.Direction.Unit(), otherData.Length*0.5)
			dist2 := frontPos.DistanceSquared(s.e.Transform.Position)
			damage *= collisionMultiplier(dist2, flat.Square(data.Radius))

			isRam := data.SubKind == c.SubKindRam
			isOtherRam := otherData.SubKind == c.SubKindRam
			ramDamage := data.RamDamage
			if ramDamage == 0 {
				ramDamage = 1
			}
			if isRam {
				massDiff *= 0.5
				damage /= ramDamage
			}
			if isOtherRam {
				otherRamDamage := otherData.RamDamage
				if otherRamDamage == 0 {
					otherRamDamage = 1
				}
				massDiff *= 2
				damage *= otherRamDamage
			}
			if data.SubKind == c.SubKindSubmarine {
				damage *= 1.5
			}
			if s.e.Altitude < 0 {
				damage *= 10
			}
		}

		impulse := posDiff.Scale(6 * massDiff)
		w.queueMutation(NewCollidedWithBoat(s.id, owner(s.other), damage, impulse))
		if data.SubKind == c.SubKindRam && damage > 0 {
			w.queueMutation(NewClearSpawnProtection(s.id))
		}
	}
}

func math32Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// SpawnProtectionMultiplierSafe is SpawnProtectionMultiplier for entities
// that may have no owning player (always full damage in that case).
func (e *Entity) SpawnProtectionMultiplierSafe(now time.Time) float32 {
	if e.Player == nil {
		return 1
	}
	return e.Player.SpawnProtectionMultiplier(now)
}
