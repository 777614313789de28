// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import (
	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// Camera is the combined sensor view used to decide what a viewer can see
// and with how much uncertainty. Grounded on server/world/entity.go's
// Entity.Camera and server/world/player.go's Player.Camera.
type Camera struct {
	Position             flat.Vec2
	Visual, Radar, Sonar float32
}

// EntityCamera computes the Camera of a piloted boat: the longest range of
// each sensor type, then scaled by altitude — below the surface radar and
// visual shrink, above it they are unchanged, and sonar is blind out of
// the water entirely. Grounded on server/world/entity.go's Entity.Camera.
func EntityCamera(e *world.Entity) Camera {
	var cam Camera
	c := catalog.Current()
	for _, s := range e.Data().Sensors {
		switch s.Type {
		case c.SensorRadar:
			cam.Radar = maxF(cam.Radar, s.Range)
		case c.SensorSonar:
			cam.Sonar = maxF(cam.Sonar, s.Range)
		case c.SensorVisual:
			cam.Visual = maxF(cam.Visual, s.Range)
		}
	}
	cam.Position = e.Transform.Position

	alt := altitudeFraction(e.Altitude)
	cam.Visual *= clampF(alt+1, 0.5, 1)
	cam.Radar *= minF(alt, 0) + 1
	if alt > 0 {
		cam.Sonar = 0
	}
	return cam
}

// RespawningCamera is the fallback view for a player with no live entity:
// a fixed-radius view of the world center, matching server/world/player.go's
// Player.Camera title-screen branch (this module has no per-player
// death-position/death-visual memory to restore the richer "replay your own
// death" camera the teacher shows a freshly-killed player; internal/session
// owns Player lifecycle and may layer that back in — see DESIGN.md).
func RespawningCamera() Camera {
	return Camera{Visual: 600, Radar: 600, Sonar: 600}
}

func altitudeFraction(a terrain.Altitude) float32 { return float32(a) / 127 }

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func invSquare(v float32) float32 {
	if v == 0 {
		return 0
	}
	return 1 / (v * v)
}

// Contact is one entity's replicated view: the fields every viewer who can
// see it at all receives unconditionally, plus the subset gated behind
// ownership/visibility. Grounded on server/update.go's IDContact, folding
// in the uncertainty value it computes per observer.
type Contact struct {
	EntityID  world.EntityID
	Type      catalog.EntityType
	Transform flat.Transform
	Altitude  terrain.Altitude

	Uncertainty float32 // 0 = exact, >=1 = not visible at all

	// Populated only when Known (owner or teammate) or Visible (resolved
	// well enough by a sensor); zero otherwise.
	ArmamentConsumption []flat.Ticks
	TurretAngles        []flat.Angle
	DamageFraction      float32

	// Populated only when Known.
	Guidance world.Guidance

	// Populated once Uncertainty < 0.75 and the contact has an owner.
	HasOwner bool
	Friendly bool
	OwnerID  world.PlayerID
}

// Observe resolves one entity as seen by a viewer with the given camera and
// owning player (nil if the viewer has none). Grounded on server/update.go's
// per-candidate closure inside Hub.updateClient: known bypasses uncertainty
// entirely (own boat or a nearby teammate); otherwise each sensor narrows
// uncertainty by its own inverse-square falloff, most permissive wins, and
// a contact is dropped once every sensor's uncertainty reaches or exceeds 1.
func Observe(cam Camera, viewer *world.Player, e *world.Entity, distanceSquared float32) (Contact, bool) {
	data := e.Data()
	c := catalog.Current()
	owner := owner(e)

	known := owner == viewer || (distanceSquared < 800*800 && playersFriendly(owner, viewer))

	var uncertainty float32
	var visible bool
	if !known {
		invSize := data.InvSize
		defaultRatio := distanceSquared * invSize
		uncertainty = 1.0

		alt := altitudeFraction(e.Altitude)
		if radarInv := invSquare(cam.Radar); radarInv != 0 && alt >= -0.1 {
			uncertainty = minF(uncertainty, defaultRatio*radarInv*2)
		}
		if sonarInv := invSquare(cam.Sonar); sonarInv != 0 && alt <= 0 {
			uncertainty = minF(uncertainty, defaultRatio*sonarInv*3)
		}
		if visualInv := invSquare(cam.Visual); visualInv != 0 {
			visualRatio := defaultRatio * visualInv
			if alt < 0 {
				visualRatio /= clampF(alt+1, 0.05, 1)
			}
			visible = visualRatio < 1
			uncertainty = minF(uncertainty, visualRatio)
		}

		if uncertainty >= 1.0 {
			return Contact{}, false
		}
	}

	contact := Contact{
		EntityID:    e.ID,
		Type:        e.Type,
		Transform:   e.Transform,
		Altitude:    e.Altitude,
		Uncertainty: uncertainty,
	}

	if known || visible {
		if data.Kind == c.KindBoat {
			contact.ArmamentConsumption = e.Reloads
			contact.TurretAngles = e.Turrets
			contact.DamageFraction = e.DamageFraction()
		}
		if known {
			contact.Guidance = e.Guidance
		}
	}

	if contact.Uncertainty < 0.75 && owner != nil {
		contact.HasOwner = true
		contact.Friendly = playersFriendly(owner, viewer)
		contact.OwnerID = owner.ID
	}

	return contact, true
}

// owner mirrors internal/world's unexported helper of the same name
// (Player for a boat, Creator otherwise) since replication observes
// entities from outside that package.
func owner(e *world.Entity) *world.Player {
	if e.Player != nil {
		return e.Player
	}
	return e.Creator
}

// playersFriendly mirrors internal/world's unexported helper: same-team,
// both non-nil. A viewer with no player (not yet spawned) is never shown
// anything as friendly.
func playersFriendly(a, b *world.Player) bool {
	return a != nil && b != nil && (a == b || (a.TeamID != world.TeamIDInvalid && a.TeamID == b.TeamID))
}
