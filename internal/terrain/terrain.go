// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"sync"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// AltitudeRange gates and clamps a Sculpt mutation.
type AltitudeRange struct{ Min, Max Altitude }

// Full accepts any altitude: a no-op condition/clamp.
var Full = AltitudeRange{Min: -128, Max: 127}

func (r AltitudeRange) contains(a Altitude) bool { return a >= r.Min && a <= r.Max }

func (r AltitudeRange) clamp(a Altitude) Altitude {
	if a < r.Min {
		return r.Min
	}
	if a > r.Max {
		return r.Max
	}
	return a
}

// SweptBox is a rectangle, centered on and oriented with a transform, swept
// forward along that transform's velocity over DeltaSeconds. Used by
// Collides to test e.g. a boat's hull against the seabed/shoreline over one
// physics step.
type SweptBox struct {
	Transform    flat.Transform
	Length       float32
	Width        float32
	DeltaSeconds float32
}

// Collision is the result of a box/terrain sweep that found at least one
// sample exceeding the threshold.
type Collision struct {
	Altitude Altitude  // the maximum exceeding sample
	Centroid flat.Vec2 // centroid of every exceeding sample
	Peak     flat.Vec2 // position of the maximum sample
}

// Terrain is the chunked, mutable altitude bitmap for one arena. All
// read-only methods (Sample/Collides) may be called concurrently; Sculpt,
// Repair, PreUpdate and PostUpdate may not, and must only ever be called
// from the single world-tick goroutine. Grounded on
// server/terrain/terrain.go's Terrain interface.
type Terrain struct {
	gen    *Generator
	radius float32 // world radius, meters; positions beyond it are off-world

	mu     sync.RWMutex
	chunks map[ChunkId]*chunk
}

// New creates a Terrain of the given world radius (meters) generated by gen.
func New(gen *Generator, radius float32) *Terrain {
	return &Terrain{gen: gen, radius: radius, chunks: make(map[ChunkId]*chunk)}
}

func (t *Terrain) chunkAt(id ChunkId) *chunk {
	t.mu.RLock()
	c := t.chunks[id]
	t.mu.RUnlock()
	if c != nil {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.chunks[id]; c != nil {
		return c
	}
	c = &chunk{}
	t.chunks[id] = c
	return c
}

// inWorld reports whether a terrain-space pixel coordinate lies within the
// world's square bound.
func (t *Terrain) inWorld(px, py int32) bool {
	limit := int32(t.radius / Scale)
	return px >= -limit && px <= limit && py >= -limit && py <= limit
}

// rawAltitudeAt returns the displayable altitude of one terrain pixel,
// generating its chunk on first access.
func (t *Terrain) rawAltitudeAt(px, py int32) Altitude {
	if !t.inWorld(px, py) {
		return altitudeLUT[0]
	}
	c := Coord{X: px, Y: py}
	id, rel := c.Chunk()
	ch := t.chunkAt(id)
	p := ch.ensureGenerated(id, t.gen)
	return ToAltitude(p[rel.Index()])
}

func (t *Terrain) box2Average(gx, gy int32) float32 {
	sum := int32(t.rawAltitudeAt(gx, gy)) + int32(t.rawAltitudeAt(gx+1, gy)) +
		int32(t.rawAltitudeAt(gx, gy+1)) + int32(t.rawAltitudeAt(gx+1, gy+1))
	return float32(sum) * 0.25
}

// Sample returns the filtered altitude at a world-space position: a bicubic
// (Catmull-Rom) blend over a 4x4 grid of samples, each of which is itself a
// bilinear (box) average of a 2x2 block of raw pixels — this double
// smoothing is what keeps single-pixel sculpting edits from producing
// visibly blocky terrain. Returns ok=false if pos is wholly off-world.
func (t *Terrain) Sample(pos flat.Vec2) (Altitude, bool) {
	// Pixel (px, py)'s altitude sample is conceptually centered at world
	// position (px+0.5, py+0.5)*Scale, so shift by half a pixel before
	// splitting into integer/fractional parts.
	fx, fy := pos.X/Scale-0.5, pos.Y/Scale-0.5
	gx, gy := floorF(fx), floorF(fy)
	if !t.inWorld(gx, gy) {
		return 0, false
	}
	tx, ty := fx-float32(gx), fy-float32(gy)

	var rows [4]float32
	for j := -1; j <= 2; j++ {
		var cols [4]float32
		for i := -1; i <= 2; i++ {
			cols[i+1] = t.box2Average(gx+int32(i), gy+int32(j))
		}
		rows[j+1] = cubic(cols[0], cols[1], cols[2], cols[3], tx)
	}
	v := cubic(rows[0], rows[1], rows[2], rows[3], ty)
	return clampAltitude(float64(v)), true
}

func floorF(v float32) int32 {
	i := int32(v)
	if v < float32(i) {
		i--
	}
	return i
}

// cubic is a Catmull-Rom interpolation through 4 evenly spaced control
// values, evaluated at parameter t in [0, 1] between p1 and p2.
func cubic(p0, p1, p2, p3, t float32) float32 {
	return p1 + 0.5*t*(p2-p0+t*(2*p0-5*p1+4*p2-p3+t*(3*(p1-p2)+p3-p0)))
}

// Collides sweeps box over its velocity for DeltaSeconds and samples a grid
// of interior points at spacing <= min(pixel, extent/2), reporting the
// highest sample that exceeds threshold (if any) plus the centroid of every
// exceeding sample.
func (t *Terrain) Collides(box SweptBox, threshold Altitude) (Collision, bool) {
	sweep := box.Transform.Velocity.Float() * box.DeltaSeconds
	length := box.Length + absF(sweep)

	spacing := minF(Scale, minF(box.Width, length)/2)
	if spacing <= 0 {
		spacing = Scale
	}

	var (
		found     bool
		maxAlt    Altitude
		peak      flat.Vec2
		sumX      float32
		sumY      float32
		count     int
	)

	halfWidth := box.Width / 2
	// Center the sampled range on the swept box: [-Length/2, Length/2+sweep]
	// for a forward sweep, [sweep-Length/2, Length/2] for a backward one.
	forwardOffset := sweep / 2

	for lx := forwardOffset - length/2; lx <= forwardOffset+length/2; lx += spacing {
		for ly := -halfWidth; ly <= halfWidth; ly += spacing {
			world := box.Transform.Add(flat.Transform{Position: flat.Vec2{X: lx, Y: ly}}).Position
			alt, ok := t.Sample(world)
			if !ok || alt <= threshold {
				continue
			}
			if !found || alt > maxAlt {
				maxAlt = alt
				peak = world
				found = true
			}
			sumX += world.X
			sumY += world.Y
			count++
		}
	}

	if !found {
		return Collision{}, false
	}
	return Collision{
		Altitude: maxAlt,
		Centroid: flat.Vec2{X: sumX / float32(count), Y: sumY / float32(count)},
		Peak:     peak,
	}, true
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Sculpt redistributes amount across the 4 raw pixels surrounding pos via
// bilinear weights (only half of amount is actually deposited — the other
// half represents material displaced elsewhere, matching the worked
// example of a +64 sculpt landing a +32 total across the four neighbors).
// Each corner's write is gated by condition (skipped if its current
// altitude falls outside the range) and clamped to clamp. Returns the set
// of chunks that gained at least one changed pixel.
func (t *Terrain) Sculpt(pos flat.Vec2, amount float32, condition, clamp AltitudeRange, now time.Time) ([]ChunkId, bool) {
	fx, fy := pos.X/Scale-0.5, pos.Y/Scale-0.5
	gx, gy := floorF(fx), floorF(fy)
	tx, ty := fx-float32(gx), fy-float32(gy)

	total := amount * 0.5
	type corner struct {
		dx, dy int32
		weight float32
	}
	corners := [4]corner{
		{0, 0, (1 - tx) * (1 - ty)},
		{1, 0, tx * (1 - ty)},
		{0, 1, (1 - tx) * ty},
		{1, 1, tx * ty},
	}

	touchedSet := make(map[ChunkId]bool, 4)
	changed := false
	for _, c := range corners {
		px, py := gx+c.dx, gy+c.dy
		if !t.inWorld(px, py) {
			continue
		}
		cur := t.rawAltitudeAt(px, py)
		if !condition.contains(cur) {
			continue
		}
		next := clamp.clamp(clampAltitude(float64(cur) + float64(c.weight*total)))
		nibble := FromAltitude(next)

		coord := Coord{X: px, Y: py}
		id, rel := coord.Chunk()
		ch := t.chunkAt(id)
		ch.ensureGenerated(id, t.gen)
		if _, did := ch.setPixel(rel, nibble); did {
			ch.touch(rel, now)
			touchedSet[id] = true
			changed = true
		}
	}

	touched := make([]ChunkId, 0, len(touchedSet))
	for id := range touchedSet {
		touched = append(touched, id)
	}
	return touched, changed
}

func (c *chunk) setPixel(rel RelativeCoord, nibble uint8) (old uint8, changed bool) {
	cur := c.data.Load()
	old = cur[rel.Index()]
	if old == nibble {
		return old, false
	}
	next := *cur
	next[rel.Index()] = nibble
	c.data.Store(&next)
	return old, true
}

// PreUpdate compacts every dirty chunk's pending coordinate list into a
// Mods or Complete body, ready for replication.
func (t *Terrain) PreUpdate() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.chunks {
		c.preUpdate()
	}
}

// PostUpdate clears every chunk's replication state and runs one overdue
// regeneration step where applicable.
func (t *Terrain) PostUpdate(now time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, c := range t.chunks {
		c.postUpdate(now, t.gen, id)
	}
}

// Repair immediately steps every existing chunk toward its generator's
// original value, ignoring regen scheduling. Grounded on the teacher's
// Terrain.Repair, intended for administrative/debug use rather than the
// normal per-tick regen path (PostUpdate).
func (t *Terrain) Repair(now time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, c := range t.chunks {
		c.regenStep(t.gen, id)
		c.regenAt = now.Add(regenInterval)
	}
}

// Update returns a chunk's current replication payload, if any, for sending
// to clients this tick.
func (t *Terrain) Update(id ChunkId) (kind updateKind, body []byte) {
	t.mu.RLock()
	c := t.chunks[id]
	t.mu.RUnlock()
	if c == nil {
		return updateNone, nil
	}
	return c.update.kind, c.update.body
}

// Debug reports the number of chunks currently resident in memory.
func (t *Terrain) Debug() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.chunks)
}
