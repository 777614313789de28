// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package world is the authoritative, tick-based simulation: entity
// integration, pairwise interaction resolution and the mutation queue that
// serializes their effects. Grounded on server/world's Entity/Guidance/
// Player/DeathReason/Collision types and server/physics.go's per-tick
// orchestration, re-expressed over internal/spatial's generic index and
// internal/terrain's chunked heightmap instead of the teacher's own
// package-local sector grid and terrain package.
package world

import (
	"sort"
	"sync"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/spatial"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
)

// World owns every live entity and player for one arena instance and
// advances them one tick at a time.
type World struct {
	Radius float32

	terrain  *terrain.Terrain
	entities *spatial.Index[EntityID, *Entity]

	mu      sync.Mutex // guards players and the mutation queue only
	players map[PlayerID]*Player
	queue   []Mutation
	deaths  []DeathEvent

	tickStart   time.Time
	tickSeconds float32
}

// DeathEvent reports one entity's removal during applyMutations, for the
// arena loop to forward into the replication layer's contacts pass.
// Grounded on server/update.go's death-message broadcast, split out of
// Player.DeathReason here since the loop needs to know which entity died
// even after RemovePlayer later clears the player's own EntityID.
type DeathEvent struct {
	Entity EntityID
	Reason DeathReason
}

// DrainDeathEvents returns every death recorded since the last call and
// clears the accumulator. Called once per tick by the owner of this World,
// before it feeds the replication Chain.
func (w *World) DrainDeathEvents() []DeathEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.deaths
	w.deaths = nil
	return out
}

// New creates an empty World of the given radius backed by terr.
func New(radius float32, terr *terrain.Terrain) *World {
	return &World{
		Radius:   radius,
		terrain:  terr,
		entities: spatial.New[EntityID, *Entity](radius),
		players:  make(map[PlayerID]*Player),
	}
}

// Terrain exposes the backing heightmap (terrain RLE diffing lives here; the
// replication layer reads it through this accessor).
func (w *World) Terrain() *terrain.Terrain { return w.terrain }

// Spawn inserts e into the spatial index under its own ID.
func (w *World) Spawn(e *Entity) { w.entities.Insert(e.ID, e) }

// EntityByID looks up a live entity, invoking fn with it if present.
func (w *World) EntityByID(id EntityID, fn func(e *Entity)) {
	w.entities.ByID(id, func(e *Entity, ok bool) (*Entity, bool) {
		if ok {
			fn(e)
		}
		return e, false
	})
}

// AddPlayer registers a new player.
func (w *World) AddPlayer(p *Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[p.ID] = p
}

// RemovePlayer unregisters a player (its entity, if any, is unaffected).
func (w *World) RemovePlayer(id PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, id)
}

// Player looks up a registered player by id.
func (w *World) Player(id PlayerID) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.players[id]
}

// Players returns a snapshot copy of every registered player, keyed by id.
// Grounded on server/world/player.go's PlayerRepo.iter_borrow, used by the
// arena loop's liveboard/leaderboard scans which need to range over all
// players without holding World's lock for the duration.
func (w *World) Players() map[PlayerID]*Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[PlayerID]*Player, len(w.players))
	for id, p := range w.players {
		out[id] = p
	}
	return out
}

// queueMutation appends a mutation under lock; called concurrently from the
// parallel interaction pass.
func (w *World) queueMutation(m Mutation) {
	w.mu.Lock()
	w.queue = append(w.queue, m)
	w.mu.Unlock()
}

// QueueMutation exposes queueMutation to callers outside this package,
// namely the arena loop's per-tick command dispatch (a player's inbound
// guidance/fire message arrives as a Mutation the same way an AI homing
// decision does).
func (w *World) QueueMutation(m Mutation) { w.queueMutation(m) }

// Tick advances the simulation by one tick of the given duration, starting
// at wall-clock now. Grounded on server/physics.go's per-tick sequence:
// integration, pairwise interaction, mutation apply. §4.11 names this the
// arena loop's second step.
func (w *World) Tick(now time.Time, duration time.Duration) {
	w.tickStart = now
	ticks := flat.Seconds(float32(duration.Seconds()))
	w.tickSeconds = float32(duration.Seconds())

	w.integrate(ticks)
	w.resolveInteractions(ticks)
	w.applyMutations()
}

// integrate runs step 1 (§4.4): per-entity turret/throttle/heading/
// translation/border update, removing anything that dies in the process.
// Collider is terrain only; entity-vs-entity collision response is a
// Mutation produced by resolveInteractions, since it needs to know about
// the other entity (damage, repulsion, attribution) that Entity.Update's
// narrow Collider interface cannot express.
func (w *World) integrate(ticks flat.Ticks) {
	dead := make([]EntityID, 0)
	var mu sync.Mutex
	collider := terrainCollider{w.terrain}

	w.entities.SetParallel(true)
	var wg sync.WaitGroup
	w.entities.ForEachInRadius(flat.Vec2{}, w.Radius*2, func(_ float32, id EntityID, e *Entity) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.Update(ticks, w.Radius, collider) {
				mu.Lock()
				dead = append(dead, id)
				mu.Unlock()
			}
		}()
		return false
	})
	wg.Wait()
	w.entities.SetParallel(false)

	for _, id := range dead {
		w.entities.Remove(id)
	}
}

// terrainCollider adapts *terrain.Terrain to the Collider interface
// Entity.Update expects. Aircraft fly over terrain; everything else is
// blocked by land above sea level (altitude greater than SandLevel).
type terrainCollider struct{ t *terrain.Terrain }

func (c terrainCollider) Collides(e *Entity, seconds float32) bool {
	data := e.Data()
	if data.SubKind == catalog.Current().SubKindAircraft {
		return false
	}
	box := terrain.SweptBox{
		Transform:    e.Transform,
		Length:       data.Length,
		Width:        data.Width,
		DeltaSeconds: seconds,
	}
	_, hit := c.t.Collides(box, terrain.SandLevel)
	return hit
}

// minimumScanRadius is §4.4 step 2's per-entity search radius: wide enough
// to catch anything it could physically touch this tick, or its own
// sensor range if that reaches further.
func minimumScanRadius(e *Entity, ticks flat.Ticks) float32 {
	data := e.Data()
	r := 2*data.Radius + math32Abs(e.Transform.Velocity.Float())*ticks.Float()
	if sr := sensorMaxRange(data); sr > r {
		r = sr
	}
	return r
}

// sensorMaxRange is the farthest any one of data's sensors can see. Data's
// own Range field is not reusable here: the catalog consumes a declared
// "range" into Lifespan for projectile sub-kinds (see
// catalog.deriveRangeAndLifespan), so it reads as 0 once loaded.
func sensorMaxRange(data *catalog.EntityTypeData) float32 {
	var r float32
	for _, s := range data.Sensors {
		if s.Range > r {
			r = s.Range
		}
	}
	return r
}

// applyMutations implements §4.4 step 3: sort the collected queue by
// (entity_index descending, absolute_priority descending, relative_priority
// descending) and walk it, letting each mutation's Apply short-circuit the
// rest of its own entity's mutations this tick.
func (w *World) applyMutations() {
	queue := w.queue
	w.queue = nil
	if len(queue) == 0 {
		return
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.Target() != b.Target() {
			return a.Target() > b.Target()
		}
		if a.AbsolutePriority() != b.AbsolutePriority() {
			return a.AbsolutePriority() > b.AbsolutePriority()
		}
		return a.RelativePriority() > b.RelativePriority()
	})

	skip := make(map[EntityID]bool)
	for _, m := range queue {
		id := m.Target()
		if skip[id] {
			continue
		}
		w.entities.ByID(id, func(e *Entity, ok bool) (*Entity, bool) {
			if !ok {
				return e, false
			}
			removeEntity, skipRest := m.Apply(w, e)
			if skipRest || removeEntity {
				skip[id] = true
			}
			if removeEntity && e.Player != nil {
				w.deaths = append(w.deaths, DeathEvent{Entity: id, Reason: e.Player.DeathReason})
			}
			return e, removeEntity
		})
	}
}

// ForEntitiesInRadius visits every entity within radius of pos in the
// spatial index's deterministic bucket order, stopping early if fn returns
// true. Exposed for the replication layer's per-viewer contact resolution
// (see internal/replication), which — like the parallel integration pass —
// only ever reads entities, never mutates them.
func (w *World) ForEntitiesInRadius(pos flat.Vec2, radius float32, fn func(distanceSquared float32, e *Entity) bool) {
	w.entities.ForEachInRadius(pos, radius, func(d2 float32, _ EntityID, e *Entity) bool {
		return fn(d2, e)
	})
}

// Debug reports coarse occupancy, forwarding to the spatial index.
func (w *World) Debug() string { return w.entities.Debug() }

func math32Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
