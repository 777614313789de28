// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

// hilbertOrder is precomputed once: hilbertOrder[d] is the RelativeCoord
// visited at step d of a Hilbert-curve traversal of a ChunkSize x ChunkSize
// square. Traversing chunk pixels in Hilbert order instead of the teacher's
// raster order (server/terrain/compressed/buffer.go) keeps adjacent runs of
// identical nibble values spatially coherent in two dimensions rather than
// one, which is what the run-length encoding in rle.go exploits.
var hilbertOrder [ChunkSize * ChunkSize]RelativeCoord

func init() {
	for d := 0; d < ChunkSize*ChunkSize; d++ {
		x, y := hilbertD2XY(chunkSizeBits, d)
		hilbertOrder[d] = RelativeCoord{X: uint8(x), Y: uint8(y)}
	}
}

// hilbertD2XY converts a distance d along a Hilbert curve of order bits
// (side length 1<<bits) into (x, y) coordinates. Standard rotate-and-reflect
// construction.
func hilbertD2XY(bits uint, d int) (x, y int) {
	for s := 1; s < 1<<bits; s <<= 1 {
		rx := 1 & (d / 2)
		ry := 1 & (d ^ rx)
		x, y = hilbertRot(s, x, y, rx, ry)
		x += s * rx
		y += s * ry
		d /= 4
	}
	return x, y
}

func hilbertRot(s, x, y, rx, ry int) (int, int) {
	if ry == 0 {
		if rx == 1 {
			x = s - 1 - x
			y = s - 1 - y
		}
		return y, x
	}
	return x, y
}
