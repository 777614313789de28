// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package spatial

import (
	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// ForEachInRadius visits every value within radius of position. Visit order
// is bucket-major (y outer, x inner, matching cache locality) then
// insertion order within a bucket, never randomized — the physics pass's
// pair-uniqueness rule (C4) depends on this being a stable, repeatable
// order for a given index state. callback returns stop to end early.
func (idx *Index[ID, T]) ForEachInRadius(position flat.Vec2, radius float32, callback func(distanceSquared float32, id ID, value T) (stop bool)) bool {
	idx.depth++
	r2 := radius * radius

	width := idx.width
	min := -int16(width / 2)
	max := int16(width/2 - 1)

	minID := bucketIDOf(position.Sub(flat.Vec2{X: radius, Y: radius})).min(min)
	maxID := bucketIDOf(position.Add(flat.Vec2{X: radius, Y: radius})).max(max)

	stopped := false
outer:
	for y := minID.y; y <= maxID.y; y++ {
		for x := minID.x; x <= maxID.x; x++ {
			id := bucketID{x: x, y: y}
			if !id.inRadius(position, radius) {
				continue
			}
			b := &idx.buckets[int(x-min)+int(y-min)*int(width)]
			if len(b.values) == 0 {
				continue
			}
			for i := range b.values {
				v := b.values[i]
				d2 := position.DistanceSquared(v.Pos())
				if d2 > r2 {
					continue
				}
				if callback(d2, b.ids[i], v) {
					stopped = true
					break outer
				}
			}
		}
	}

	idx.depth--
	if idx.depth == 0 && len(idx.buffered) > 0 {
		idx.drainBuffered()
	}
	return stopped
}
