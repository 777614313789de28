// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// spawnSearchAttempts bounds how many candidate positions Spawn tries
// before giving up, matching server/spawn.go's spawnEntity governor (there
// 128; lowered here since a boat spawn only ever widens within the arena
// radius, never the unbounded obstacle placement that file also handles).
const spawnSearchAttempts = 32

// Spawn places playerID's first boat of entityTypeName into the world and
// marks its session live. Grounded on server/spawn.go's spawnEntity: widen
// a search radius around an initial guess until a position far enough from
// every nearby entity is found, retrying with a larger radius each pass.
// Returns false if entityTypeName doesn't name a spawnable boat, playerID
// is unknown, or no clear position was found in spawnSearchAttempts tries.
func (l *Loop) Spawn(playerID world.PlayerID, entityTypeName string) bool {
	p := l.World.Player(playerID)
	if p == nil || p.EntityID != world.EntityIDInvalid {
		return false
	}

	t, ok := catalog.Current().TryParseType(entityTypeName)
	if !ok {
		return false
	}
	data := t.Data()
	if data.Kind != catalog.Current().KindBoat || data.Level != 1 {
		// Only a level-1 boat may be chosen directly; higher levels are
		// reached in play via score, not a spawn request (see DESIGN.md).
		return false
	}

	sessionID := sessionIDOf(l.Sessions, l.ArenaID, playerID)
	if sessionID == 0 {
		return false
	}
	online := 0
	l.Registry.ForEachConnected(func(*Client) { online++ })
	if _, ok := l.Sessions.StartPlay(l.ArenaID, sessionID, nil, online); !ok {
		return false
	}

	pos, ok := l.findSpawnPosition(data.Radius)
	if !ok {
		return false
	}

	id := world.AllocateEntityID(func(id world.EntityID) bool {
		taken := false
		l.World.EntityByID(id, func(*world.Entity) { taken = true })
		return taken
	})

	e := world.NewEntity(id, t)
	e.Transform.Position = pos
	e.Transform.Direction = flat.Angle(uint16(rand.Uint32()))
	e.Player = p
	l.World.Spawn(e)

	p.EntityID = id
	p.SpawnedAt = time.Now()
	return true
}

// findSpawnPosition searches outward from a uniformly random point for a
// location at least clearance meters from any existing entity, growing the
// search radius each failed attempt. Grounded on server/spawn.go's
// spawnEntity/nearAny pair, collapsed into a single pass since this
// module's boats always need the same non-overlap guarantee (unlike the
// teacher's shared helper, which also places collectibles that skip it).
func (l *Loop) findSpawnPosition(clearance float32) (flat.Vec2, bool) {
	radius := l.World.Radius * 0.5
	for i := 0; i < spawnSearchAttempts; i++ {
		angle := rand.Float32() * 2 * math32.Pi
		r := math32.Sqrt(rand.Float32()) * radius
		pos := flat.Vec2{X: r * math32.Cos(angle), Y: r * math32.Sin(angle)}

		clear := true
		l.World.ForEntitiesInRadius(pos, clearance*4, func(float32, *world.Entity) bool {
			clear = false
			return true
		})
		if clear {
			return pos, true
		}
		radius = minF(radius*1.2, l.World.Radius)
	}
	return flat.Vec2{}, false
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// sessionIDOf finds the live session currently bound to playerID within
// arenaID, the glue StartPlay needs since internal/world only knows the
// player id this module's session.Repo already allocated for it.
func sessionIDOf(sessions *session.Repo, arenaID session.ArenaID, playerID world.PlayerID) session.SessionID {
	a := sessions.Arena(arenaID)
	if a == nil {
		return 0
	}
	for id, s := range a.Sessions {
		if s.PlayerID == playerID {
			return id
		}
	}
	return 0
}
