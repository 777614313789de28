// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"github.com/aquilax/go-perlin"
)

// Default world-generation parameters. Grounded on the teacher's
// server/terrain/terrain.go Seed/OffsetX/OffsetY and
// server/terrain/noise/noise.go's frequency constants.
const (
	DefaultSeed    = int64(56)
	defaultOffsetX = -128 * Scale
	defaultOffsetY = -128 * Scale

	frequency     = 0.001
	zoneFrequency = 0.00015
)

// Generator produces a chunk's raw pixel grid from layered Perlin noise: a
// high-frequency land/coast layer modulated by a low-frequency "zone" layer
// that fades coastline toward open ocean, floored by a separate low-frequency
// open-water depth noise. Grounded on
// server/terrain/noise/noise.go's Generator.
type Generator struct {
	landHi, landLo, waterLo *perlin.Perlin
	offsetX, offsetY        float64
}

// NewGenerator builds a Generator from a seed and a world-space origin
// offset (meters).
func NewGenerator(seed int64, offsetX, offsetY float32) *Generator {
	return &Generator{
		landHi:  perlin.NewPerlin(1.5, 2.0, 4, seed),
		landLo:  perlin.NewPerlin(2.5, 3.0, 4, seed+1),
		waterLo: perlin.NewPerlin(2, 3.0, 3, seed+2),
		offsetX: float64(offsetX) / Scale,
		offsetY: float64(offsetY) / Scale,
	}
}

// NewDefaultGenerator uses the curated default seed/offset.
func NewDefaultGenerator() *Generator {
	return NewGenerator(DefaultSeed, defaultOffsetX, defaultOffsetY)
}

// Generate fills the raw nibble grid for the chunk at id.
func (g *Generator) Generate(id ChunkId) *pixels {
	var p pixels
	origin := id.Origin()
	offX := g.offsetX + float64(origin.X)
	offY := g.offsetY + float64(origin.Y)

	for j := 0; j < ChunkSize; j++ {
		for i := 0; i < ChunkSize; i++ {
			x := (float64(i) + offX) * Scale
			y := (float64(j) + offY) * Scale

			h := g.landHi.Noise2D(x*frequency, y*frequency)*125 + float64(SandLevel) - 25

			zone := g.landLo.Noise2D(x*zoneFrequency, y*zoneFrequency)*2.0 + 0.4
			if zone > 1 {
				zone = 1
			}
			h *= zone

			depthFloor := clamp64((g.waterLo.Noise2D(x*zoneFrequency, y*zoneFrequency)+0.3)*4, 0, 1) * float64(SandLevel)
			if depthFloor > h {
				h = depthFloor
			}

			p[RelativeCoord{X: uint8(i), Y: uint8(j)}.Index()] = FromAltitude(clampAltitude(h))
		}
	}
	return &p
}

func clamp64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampAltitude(h float64) Altitude {
	if h < -128 {
		return -128
	}
	if h > 127 {
		return 127
	}
	return Altitude(h)
}
