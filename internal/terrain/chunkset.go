// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

// ChunkSet is a bitset over chunk ids, used to express a client's visible
// set of chunks (for replication diffing) without materializing a slice of
// ChunkId. Grounded on the teacher's sector/radius bounding-box helpers
// (server/world/sector/util.go's inRadius/bucketIDOf math, reused here at
// chunk granularity) combined into an explicit set type the teacher has no
// equivalent of (it recomputes visible chunks every tick instead of
// diffing two sets).
type ChunkSet struct {
	// origin is the chunk id of bit (0, 0); width is the side length of the
	// square bitmap in chunks. Both are chosen per-set by the constructor
	// that produced it so sets of different extents can still be combined
	// (And/Or/Not reconcile differing origins/widths on the fly).
	origin ChunkId
	width  int32
	bits   []uint64
}

func newChunkSet(origin ChunkId, width int32) ChunkSet {
	n := int(width) * int(width)
	return ChunkSet{origin: origin, width: width, bits: make([]uint64, (n+63)/64)}
}

// NewRadius returns the set of chunks whose bounding box intersects a circle
// of the given radius (in meters) centered at a world Coord.
func NewRadius(center Coord, radius float32) ChunkSet {
	if radius <= 0 {
		return ChunkSet{}
	}
	centerChunk, _ := center.Chunk()
	chunkRadius := int32(radius/(Scale*ChunkSize)) + 1
	width := chunkRadius*2 + 1
	origin := ChunkId{X: centerChunk.X - chunkRadius, Y: centerChunk.Y - chunkRadius}
	s := newChunkSet(origin, width)

	r2 := radius * radius
	for dy := int32(0); dy < width; dy++ {
		for dx := int32(0); dx < width; dx++ {
			id := ChunkId{X: origin.X + dx, Y: origin.Y + dy}
			if chunkIntersectsCircle(id, center, r2) {
				s.set(dx, dy)
			}
		}
	}
	return s
}

func chunkIntersectsCircle(id ChunkId, center Coord, r2 float32) bool {
	o := id.Origin()
	// Clamp center to the chunk's box, then test the clamped point's
	// distance to center: standard circle/AABB intersection.
	cx := clampI32(center.X, o.X, o.X+ChunkSize-1)
	cy := clampI32(center.Y, o.Y, o.Y+ChunkSize-1)
	dx := float32(center.X-cx) * Scale
	dy := float32(center.Y-cy) * Scale
	return dx*dx+dy*dy <= r2
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewRect returns the set of chunks whose bounding box intersects the given
// corner-defined rectangle in terrain Coord space.
func NewRect(min, max Coord) ChunkSet {
	minChunk, _ := min.Chunk()
	maxChunk, _ := max.Chunk()
	width := maxChunk.X - minChunk.X + 1
	height := maxChunk.Y - minChunk.Y + 1
	if width < height {
		width = height
	}
	origin := ChunkId{X: minChunk.X, Y: minChunk.Y}
	s := newChunkSet(origin, width)
	for dy := int32(0); dy <= maxChunk.Y-minChunk.Y; dy++ {
		for dx := int32(0); dx <= maxChunk.X-minChunk.X; dx++ {
			s.set(dx, dy)
		}
	}
	return s
}

func (s ChunkSet) bitIndex(dx, dy int32) (int, uint64, bool) {
	if dx < 0 || dy < 0 || dx >= s.width || dy >= s.width {
		return 0, 0, false
	}
	n := int(dy)*int(s.width) + int(dx)
	return n / 64, uint64(1) << uint(n%64), true
}

func (s ChunkSet) set(dx, dy int32) {
	word, mask, ok := s.bitIndex(dx, dy)
	if ok {
		s.bits[word] |= mask
	}
}

// Contains reports whether id is a member of the set.
func (s ChunkSet) Contains(id ChunkId) bool {
	if s.width == 0 {
		return false
	}
	word, mask, ok := s.bitIndex(id.X-s.origin.X, id.Y-s.origin.Y)
	if !ok {
		return false
	}
	return s.bits[word]&mask != 0
}

// Empty reports whether no chunk ids are set (NewRadius(p, 0) is always
// empty).
func (s ChunkSet) Empty() bool {
	for _, w := range s.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// combine visits the union of both sets' coordinate ranges, invoking f with
// each chunk id and its membership in a and b, and accumulates the result
// into a freshly allocated set spanning that union.
func combine(a, b ChunkSet, f func(inA, inB bool) bool) ChunkSet {
	if a.width == 0 && b.width == 0 {
		return ChunkSet{}
	}
	minX, minY := a.origin.X, a.origin.Y
	maxX, maxY := a.origin.X+a.width-1, a.origin.Y+a.width-1
	if b.width != 0 {
		if b.origin.X < minX {
			minX = b.origin.X
		}
		if b.origin.Y < minY {
			minY = b.origin.Y
		}
		if b.origin.X+b.width-1 > maxX {
			maxX = b.origin.X + b.width - 1
		}
		if b.origin.Y+b.width-1 > maxY {
			maxY = b.origin.Y + b.width - 1
		}
	}
	if a.width == 0 {
		minX, minY, maxX, maxY = b.origin.X, b.origin.Y, b.origin.X+b.width-1, b.origin.Y+b.width-1
	}
	width := maxX - minX + 1
	if h := maxY - minY + 1; h > width {
		width = h
	}
	origin := ChunkId{X: minX, Y: minY}
	out := newChunkSet(origin, width)
	for dy := int32(0); dy < width; dy++ {
		for dx := int32(0); dx < width; dx++ {
			id := ChunkId{X: origin.X + dx, Y: origin.Y + dy}
			if f(a.Contains(id), b.Contains(id)) {
				out.set(dx, dy)
			}
		}
	}
	return out
}

// Or returns the union of two sets.
func (s ChunkSet) Or(other ChunkSet) ChunkSet {
	return combine(s, other, func(inA, inB bool) bool { return inA || inB })
}

// And returns the intersection of two sets.
func (s ChunkSet) And(other ChunkSet) ChunkSet {
	return combine(s, other, func(inA, inB bool) bool { return inA && inB })
}

// Not returns the complement of s within its own bounding box (chunks
// outside that box are, by construction, not members of the complement
// either — the set is always finite). Not(Not(s)) == s because both calls
// share the same origin/width.
func (s ChunkSet) Not() ChunkSet {
	out := newChunkSet(s.origin, s.width)
	for dy := int32(0); dy < s.width; dy++ {
		for dx := int32(0); dx < s.width; dx++ {
			if !s.Contains(ChunkId{X: s.origin.X + dx, Y: s.origin.Y + dy}) {
				out.set(dx, dy)
			}
		}
	}
	return out
}

// Each invokes f for every chunk id currently in the set.
func (s ChunkSet) Each(f func(ChunkId)) {
	for dy := int32(0); dy < s.width; dy++ {
		for dx := int32(0); dx < s.width; dx++ {
			id := ChunkId{X: s.origin.X + dx, Y: s.origin.Y + dy}
			if s.Contains(id) {
				f(id)
			}
		}
	}
}
