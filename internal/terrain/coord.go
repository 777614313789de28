// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package terrain is the chunked, mutable altitude bitmap: a 4-bit-per-pixel
// grid generated lazily from Perlin noise, partitioned into 64x64-pixel
// chunks addressed by ChunkId, with a Hilbert-ordered run-length-encoded
// wire format for replicating chunk deltas to clients.
package terrain

import (
	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// Scale is the edge length of one terrain pixel, in meters. World-space
// positions are divided by Scale to reach terrain (pixel) space.
const Scale = 25

const (
	chunkSizeBits = 6
	// ChunkSize is the width and height of a chunk, in pixels.
	ChunkSize = 1 << chunkSizeBits
)

// Coord is a pixel position in terrain space (world space / Scale).
type Coord struct{ X, Y int32 }

// CoordOf converts a world-space position into its terrain Coord.
func CoordOf(p flat.Vec2) Coord {
	return Coord{X: int32(p.X * (1.0 / Scale)), Y: int32(p.Y * (1.0 / Scale))}
}

// Vec2 converts back to a world-space position at this pixel's origin.
func (c Coord) Vec2() flat.Vec2 {
	return flat.Vec2{X: float32(c.X) * Scale, Y: float32(c.Y) * Scale}
}

// chunkHalf offsets the chunk grid by half a chunk so that world origin
// (0, 0) falls in the interior of chunk {0, 0} rather than straddling a
// chunk boundary — avoiding a seam exactly at the world's most
// traffic-heavy point (spawn), the same concern the teacher's own curated
// Seed/OffsetX/OffsetY constants address for the noise generator.
const chunkHalf = ChunkSize / 2

// Chunk returns the ChunkId containing c and c's position relative to it.
func (c Coord) Chunk() (ChunkId, RelativeCoord) {
	cx := floorDiv(c.X+chunkHalf, ChunkSize)
	cy := floorDiv(c.Y+chunkHalf, ChunkSize)
	ox := cx*ChunkSize - chunkHalf
	oy := cy*ChunkSize - chunkHalf
	return ChunkId{X: cx, Y: cy}, RelativeCoord{
			X: uint8(c.X - ox),
			Y: uint8(c.Y - oy),
		}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ChunkId identifies one chunk by its grid coordinate (chunk units, not
// pixels).
type ChunkId struct{ X, Y int32 }

// Origin returns the terrain Coord of this chunk's top-left pixel.
func (id ChunkId) Origin() Coord {
	return Coord{X: id.X*ChunkSize - chunkHalf, Y: id.Y*ChunkSize - chunkHalf}
}

// RelativeCoord is a pixel position within a chunk, in [0, ChunkSize).
type RelativeCoord struct{ X, Y uint8 }

// Index returns this coordinate's slot in the chunk's raster-order pixel
// array (row-major, matching the nibble grid layout).
func (rc RelativeCoord) Index() int { return int(rc.Y)*ChunkSize + int(rc.X) }
