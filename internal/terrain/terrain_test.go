// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// seaLevelChunk forces a chunk into existence with every pixel flat at sea
// level (displayable altitude 0), bypassing lazy Perlin generation —
// standing in for an "empty" unmodified-terrain precondition.
func seaLevelChunk(tr *Terrain, id ChunkId) {
	c := tr.chunkAt(id)
	var p pixels
	seaLevel := FromAltitude(0)
	for i := range p {
		p[i] = seaLevel
	}
	c.data.Store(&p)
	c.generated.Store(true)
}

func TestTerrain_bilinearModify(t *testing.T) {
	tr := New(NewDefaultGenerator(), 10000)
	seaLevelChunk(tr, ChunkId{0, 0})

	now := time.Now()
	touched, changed := tr.Sculpt(flat.Vec2{X: 0, Y: 0}, 64, Full, Full, now)
	if !changed {
		t.Fatal("expected a change")
	}
	if len(touched) != 1 || touched[0] != (ChunkId{0, 0}) {
		t.Fatalf("touched = %v, want exactly [{0 0}]", touched)
	}

	// Each of the 4 surrounding pixels should have gained its bilinear
	// share of 32 (64 * 0.5), quantized through the altitude LUT.
	expect := FromAltitude(clampAltitude(0 + 8)) // 0.25 share of 32
	for _, px := range []int32{-1, 0} {
		for _, py := range []int32{-1, 0} {
			_, rel := Coord{X: px, Y: py}.Chunk()
			c := tr.chunkAt(ChunkId{0, 0})
			got := c.data.Load()[rel.Index()]
			if got != expect {
				t.Errorf("pixel (%d,%d) nibble = %d, want %d", px, py, got, expect)
			}
		}
	}
}

func TestTerrain_roundTripSculpt(t *testing.T) {
	tr := New(NewDefaultGenerator(), 10000)
	seaLevelChunk(tr, ChunkId{0, 0})
	now := time.Now()

	before := make(map[RelativeCoord]uint8)
	c := tr.chunkAt(ChunkId{0, 0})
	for _, px := range []int32{-1, 0} {
		for _, py := range []int32{-1, 0} {
			_, rel := Coord{X: px, Y: py}.Chunk()
			before[rel] = c.data.Load()[rel.Index()]
		}
	}

	tr.Sculpt(flat.Vec2{X: 0, Y: 0}, 64, Full, Full, now)
	tr.Sculpt(flat.Vec2{X: 0, Y: 0}, -64, Full, Full, now)

	for rel, want := range before {
		got := c.data.Load()[rel.Index()]
		if got != want {
			t.Errorf("pixel %v = %d after +/- round trip, want %d", rel, got, want)
		}
	}
}

func TestEncodeDecodeComplete_roundTrip(t *testing.T) {
	var p pixels
	for i := range p {
		p[i] = uint8(i % 16)
	}
	body := EncodeComplete(&p)
	got := DecodeComplete(body)
	if *got != p {
		t.Fatal("DecodeComplete(EncodeComplete(p)) != p")
	}
}

func TestEncodeDecodeMods_changedSet(t *testing.T) {
	var p pixels
	target := RelativeCoord{X: 5, Y: 9}
	mods := EncodeMods([]RelativeCoord{target}, withPixel(&p, target, 7))

	var applied pixels
	changed := DecodeMods(mods, &applied)
	if len(changed) != 1 || changed[0] != target {
		t.Fatalf("changed = %v, want [%v]", changed, target)
	}
	if applied[target.Index()] != 7 {
		t.Fatalf("applied[%v] = %d, want 7", target, applied[target.Index()])
	}
}

func withPixel(p *pixels, rc RelativeCoord, v uint8) *pixels {
	p[rc.Index()] = v
	return p
}
