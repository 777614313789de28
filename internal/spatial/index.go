// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package spatial

import (
	"fmt"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// Positioned is the constraint an Index's value type must satisfy: it must
// report its own world-space position so the index can bucket it.
type Positioned interface {
	Pos() flat.Vec2
}

// location is where one ID's value currently lives, kept for O(1) removal.
type location struct {
	bucketID
	slot int32
}

// bufferedEntry holds a value inserted while the index was mid-iteration
// (depth > 0), staged so iteration sees a stable snapshot of the index.
type bufferedEntry[ID comparable, T Positioned] struct {
	id    ID
	value T
}

var bufferedLocation = location{bucketID: bucketID{x: -1 << 15, y: -1 << 15}, slot: -1}

// Index is a uniform grid spatial index, generic over a caller-supplied
// comparable ID and a Positioned value type. Insert/remove by ID are O(1);
// ForEachInRadius visits buckets overlapping a circle in deterministic
// (y-major, x-minor) order so callers can rely on stable iteration order
// for pair-uniqueness bookkeeping.
type Index[ID comparable, T Positioned] struct {
	buckets   []bucket[ID, T]
	locations map[ID]location
	buffered  []bufferedEntry[ID, T]
	count     int
	width     uint16
	logWidth  uint8
	depth     int8
	parallel  bool
}

type bucket[ID comparable, T Positioned] struct {
	ids    []ID // parallel to values
	values []T
}

// New creates an Index sized to cover a world of the given radius.
func New[ID comparable, T Positioned](radius float32) *Index[ID, T] {
	idx := &Index[ID, T]{locations: make(map[ID]location)}
	idx.Resize(radius)
	return idx
}

// Count returns the number of values currently in the index.
func (idx *Index[ID, T]) Count() int { return idx.count }

// Resize grows the index to cover a larger radius; it never shrinks, since
// sectors outside the new-but-smaller radius may still hold entities.
func (idx *Index[ID, T]) Resize(radius float32) {
	idx.assertDepth(0)

	intWidth := int(radius*(1.0/BucketSize))*2 + 1
	if radius < 0 || intWidth > (1<<15)/2 {
		panic("spatial: radius out of range")
	}
	width := nextPowerOf2(uint16(intWidth))
	if width <= idx.width {
		return
	}

	buckets := make([]bucket[ID, T], int(width)*int(width))
	oldWidth, oldLogWidth := idx.width, idx.logWidth
	for i, b := range idx.buckets {
		if len(b.values) == 0 {
			continue
		}
		buckets[sliceIndexBucketID(i, oldWidth, oldLogWidth).sliceIndex(width)] = b
	}

	idx.buckets = buckets
	idx.width = width
	idx.logWidth = log2(width)
}

// SetParallel enables/disables parallel read mode: while true, Insert and
// Remove panic (matching the single-writer, many-reader physics pass).
func (idx *Index[ID, T]) SetParallel(parallel bool) {
	idx.assertDepth(0)
	idx.parallel = parallel
}

// Insert adds a value under id. If called while a ForEachInRadius or
// ByID callback is in progress (depth > 0), the insert is buffered and
// applied once the outermost call returns, so concurrent readers never
// observe a bucket slice mutating under them.
func (idx *Index[ID, T]) Insert(id ID, value T) {
	if idx.parallel {
		panic("spatial: cannot write during parallel mode")
	}
	idx.count++
	if idx.depth > 0 {
		idx.locations[id] = bufferedLocation
		idx.buffered = append(idx.buffered, bufferedEntry[ID, T]{id: id, value: value})
		return
	}
	idx.place(id, value)
}

// Remove deletes id from the index, if present.
func (idx *Index[ID, T]) Remove(id ID) {
	idx.assertDepth(0)
	loc, ok := idx.locations[id]
	if !ok {
		return
	}
	idx.removeAt(loc, id)
}

// ByID invokes callback with the current value for id (nil-ish zero value
// and false if absent), optionally replacing or removing it.
func (idx *Index[ID, T]) ByID(id ID, callback func(value T, ok bool) (updated T, remove bool)) {
	loc, ok := idx.locations[id]
	if !ok || loc == bufferedLocation {
		var zero T
		callback(zero, false)
		return
	}
	b := idx.bucket(loc.bucketID)

	idx.depth++
	updated, remove := callback(b.values[loc.slot], true)
	idx.depth--

	if remove {
		if idx.depth != 0 || idx.parallel {
			panic("spatial: cannot remove from within nested iteration")
		}
		idx.removeAt(loc, id)
	} else {
		b.values[loc.slot] = updated
	}

	if idx.depth == 0 && len(idx.buffered) > 0 {
		idx.drainBuffered()
	}
}

func (idx *Index[ID, T]) drainBuffered() {
	for _, e := range idx.buffered {
		idx.place(e.id, e.value)
	}
	idx.buffered = idx.buffered[:0]
}

func (idx *Index[ID, T]) place(id ID, value T) {
	bid := bucketIDOf(value.Pos())
	b := idx.bucket(bid)
	slot := len(b.values)
	b.values = append(b.values, value)
	b.ids = append(b.ids, id)
	idx.locations[id] = location{bucketID: bid, slot: int32(slot)}
}

func (idx *Index[ID, T]) removeAt(loc location, id ID) {
	idx.count--
	delete(idx.locations, id)

	b := idx.bucket(loc.bucketID)
	end := len(b.values) - 1
	if int(loc.slot) != end {
		b.values[loc.slot] = b.values[end]
		b.ids[loc.slot] = b.ids[end]
		idx.locations[b.ids[loc.slot]] = location{bucketID: loc.bucketID, slot: loc.slot}
	}
	b.values = b.values[:end]
	b.ids = b.ids[:end]

	if len(b.values) == 0 {
		*idx.bucket(loc.bucketID) = bucket[ID, T]{}
	}
}

func (idx *Index[ID, T]) bucket(id bucketID) *bucket[ID, T] {
	i := id.sliceIndex(idx.width)
	if i == -1 {
		panic("spatial: position outside indexed world radius")
	}
	return &idx.buckets[i]
}

func (idx *Index[ID, T]) assertDepth(want int8) {
	if idx.depth != want {
		panic(fmt.Sprintf("spatial: invalid iteration depth %d want %d", idx.depth, want))
	}
}

// Debug reports coarse occupancy, matching the teacher's sector.World.Debug.
func (idx *Index[ID, T]) Debug() string {
	return fmt.Sprintf("spatial index: buckets=%d entities=%d", len(idx.buckets), idx.count)
}
