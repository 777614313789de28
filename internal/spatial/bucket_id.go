// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package spatial is the uniform-grid spatial index: O(1) insert/remove by
// id and deterministic-order radius queries over whatever positioned value
// type a caller instantiates it with.
package spatial

import (
	"math/bits"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/chewxy/math32"
)

// BucketSize is the edge length of one grid bucket, in meters.
const BucketSize = 500

// bucketID identifies one grid bucket by its integer grid coordinate.
type bucketID struct{ x, y int16 }

func bucketIDOf(p flat.Vec2) bucketID {
	s := p.Scale(1.0 / BucketSize).Floor()
	return bucketID{x: int16(s.X), y: int16(s.Y)}
}

func (id bucketID) min(m int16) bucketID {
	if id.x < m {
		id.x = m
	}
	if id.y < m {
		id.y = m
	}
	return id
}

func (id bucketID) max(m int16) bucketID {
	if id.x > m {
		id.x = m
	}
	if id.y > m {
		id.y = m
	}
	return id
}

// inRadius reports whether this bucket's footprint intersects a circle of
// the given radius centered at position.
func (id bucketID) inRadius(position flat.Vec2, radius float32) bool {
	center := flat.Vec2{
		X: math32.Abs(float32(id.x)*BucketSize + BucketSize/2 - position.X),
		Y: math32.Abs(float32(id.y)*BucketSize + BucketSize/2 - position.Y),
	}
	if center.X > BucketSize/2+radius || center.Y > BucketSize/2+radius {
		return false
	}
	if center.X <= BucketSize/2 || center.Y <= BucketSize/2 {
		return true
	}
	corner := flat.Vec2{X: center.X - BucketSize/2, Y: center.Y - BucketSize/2}
	return corner.LengthSquared() < radius*radius
}

func (id bucketID) sliceIndex(width uint16) int {
	min := -int16(width / 2)
	max := int16(width / 2)
	if id.x < min || id.x >= max || id.y < min || id.y >= max {
		return -1
	}
	return int(id.x-min) + int(id.y-min)*int(width)
}

// sliceIndexBucketID is the inverse of sliceIndex; width must be a power of 2.
func sliceIndexBucketID(index int, width uint16, logWidth uint8) bucketID {
	return bucketID{
		x: int16(int(uint16(index)&(width-1)) - int(width/2)),
		y: int16((index >> logWidth) - int(width/2)),
	}
}

func nextPowerOf2(n uint16) uint16 {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	return n + 1
}

func log2(n uint16) uint8 { return uint8(bits.Len16(n - 1)) }
