// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"sync"
	"sync/atomic"
	"time"
)

// regenInterval is the interval at which a modified chunk takes one step
// back toward its generator's original value.
const regenInterval = 20 * time.Minute

// updateKind distinguishes a chunk's pending replication delta.
type updateKind uint8

const (
	// updateNone: no pending change since the last replication pass.
	updateNone updateKind = iota
	// updateCoords: pixels have changed but haven't yet been packed; holds
	// the raw list of touched coordinates.
	updateCoords
	// updateMods: packed byte stream of pixel deltas (fits the byte budget).
	updateMods
	// updateComplete: whole-chunk retransmit (delta exceeded the budget).
	updateComplete
)

// chunkUpdate is a chunk's replication state, mirroring spec's
// None/Coords/Mods/Complete union as a tagged struct (Go has no sum types).
type chunkUpdate struct {
	kind   updateKind
	coords []RelativeCoord // updateCoords
	body   []byte          // updateMods or updateComplete
}

// chunk is one ChunkSize x ChunkSize tile of the world's altitude grid.
// Reads (data) are lock-free once generated; generation itself is
// serialized by genMu so concurrent first-touch readers don't race to
// generate the same chunk twice. Mutation (sculpt/regen) and the
// pre_update/post_update replication bracket are only ever called from the
// single-threaded world tick, so chunkUpdate needs no lock of its own.
// Grounded on server/terrain/compressed/chunk.go, generalized from its
// direct nibble-packed array into an atomically-swapped *pixels plus an
// explicit update state machine (the teacher recomputes chunk deltas
// per-client on demand instead of tracking pending state in the chunk).
type chunk struct {
	data      atomic.Pointer[pixels]
	generated atomic.Bool
	genMu     sync.Mutex

	regenAt time.Time
	update  chunkUpdate
}

func (c *chunk) ensureGenerated(id ChunkId, gen *Generator) *pixels {
	if c.generated.Load() {
		return c.data.Load()
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generated.Load() {
		return c.data.Load()
	}
	p := gen.Generate(id)
	c.data.Store(p)
	c.generated.Store(true)
	return p
}

// touch records a pixel change for the next replication pass and schedules
// a regen check. It must only be called while holding ownership of the
// single-threaded tick (see chunk doc comment).
func (c *chunk) touch(rc RelativeCoord, now time.Time) {
	if c.regenAt.IsZero() {
		c.regenAt = now.Add(regenInterval)
	}
	switch c.update.kind {
	case updateNone:
		c.update.kind = updateCoords
		c.update.coords = append(c.update.coords[:0], rc)
	case updateCoords:
		c.update.coords = append(c.update.coords, rc)
	default:
		// Already packed (Mods/Complete) this tick; postUpdate hasn't run
		// yet to clear it, so fall back to a Complete retransmit of the
		// current pixels — simplest safe behavior.
		c.update.kind = updateComplete
		c.update.body = EncodeComplete(c.data.Load())
	}
}

// preUpdate compacts pending coordinates into a Mods byte stream if it fits
// the budget, else upgrades to a Complete retransmit. A no-op if nothing
// changed.
func (c *chunk) preUpdate() {
	if c.update.kind != updateCoords {
		return
	}
	p := c.data.Load()
	body := EncodeMods(c.update.coords, p)
	if len(body) <= maxModsBytes {
		c.update.kind = updateMods
		c.update.body = body
	} else {
		c.update.kind = updateComplete
		c.update.body = EncodeComplete(p)
	}
	c.update.coords = nil
}

// postUpdate clears the replication state after it has been broadcast, and
// applies one regeneration step if this chunk is overdue.
func (c *chunk) postUpdate(now time.Time, gen *Generator, id ChunkId) {
	c.update = chunkUpdate{}
	if c.regenAt.IsZero() || now.Before(c.regenAt) {
		return
	}
	c.regenAt = now.Add(regenInterval)
	c.regenStep(gen, id)
}

// regenStep nudges every pixel one nibble toward its originally-generated
// value, per the teacher's generateChunk(c != nil) partial-regen branch.
func (c *chunk) regenStep(gen *Generator, id ChunkId) {
	current := c.data.Load()
	if current == nil {
		return
	}
	original := gen.Generate(id)
	next := *current
	changed := false
	for i := range next {
		cur, orig := next[i], original[i]
		if cur < orig {
			next[i] = cur + 1
			changed = true
		} else if cur > orig {
			next[i] = cur - 1
			changed = true
		}
	}
	if changed {
		c.data.Store(&next)
	}
}
