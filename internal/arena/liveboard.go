// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"container/heap"
	"sort"

	"github.com/SoftbearStudios/mk48arena/internal/replication"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// LiveboardSize is how many top players the liveboard reports. Grounded on
// server/leaderboard.go's `TopPlayers(playerSet, 10)`.
const LiveboardSize = 10

// liveboardCandidate is one scored player eligible for the live top-N.
// Grounded on world.PlayerSet's heap/sort element.
type liveboardCandidate struct {
	PlayerID world.PlayerID
	Alias    string
	Score    int
}

type candidateHeap []liveboardCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score } // min-heap: worst on top
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(liveboardCandidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// topLive picks the top count candidates by score. Grounded on
// server/leaderboard.go's TopPlayers/topPlayersHeap (kept the heap
// strategy unconditionally rather than also porting the insertion-sort
// variant the teacher picks for small counts — LiveboardSize is always 10,
// so the branch point the teacher tuned for never triggers here).
func topLive(candidates []liveboardCandidate, count int) []liveboardCandidate {
	if count > len(candidates) {
		count = len(candidates)
	}
	h := make(candidateHeap, 0, count)
	heap.Init(&h)
	for _, c := range candidates {
		if h.Len() < count {
			heap.Push(&h, c)
		} else if c.Score > h[0].Score {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}
	out := make([]liveboardCandidate, h.Len())
	copy(out, h)
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Liveboard recomputes the live top-N on demand and diffs each viewer's
// delivered snapshot against what it last sent that viewer, per spec.md
// §4.8 ("changes are diffed against the previously sent snapshot"). The
// teacher instead resends the unconditional full top-N to every client
// every second (server/hub.go's leaderboardTicker); this is the diff step
// SPEC_FULL names as an addition.
type Liveboard struct {
	pass *replication.LiveboardPass
	// sent is the last delivered snapshot per viewing entity, keyed by
	// player id -> score, for a cheap equality check against the freshly
	// computed top-N.
	sent map[world.EntityID]map[world.PlayerID]int
}

// NewLiveboard wires a diffing liveboard onto pass.
func NewLiveboard(pass *replication.LiveboardPass) *Liveboard {
	return &Liveboard{pass: pass, sent: make(map[world.EntityID]map[world.PlayerID]int)}
}

// Recompute ranks every player in players that has a live entity and pushes
// a fresh snapshot to every entry in viewers whose diffed result actually
// changed. w is not read.
func (lb *Liveboard) Recompute(w *world.World, players map[world.PlayerID]*world.Player, viewers []world.EntityID) {
	candidates := make([]liveboardCandidate, 0, len(players))
	for id, p := range players {
		if p.EntityID == world.EntityIDInvalid {
			continue
		}
		candidates = append(candidates, liveboardCandidate{PlayerID: id, Alias: p.Alias, Score: p.Score})
	}
	top := topLive(candidates, LiveboardSize)

	snapshot := make(map[world.PlayerID]int, len(top))
	entries := make([]replication.LiveboardEntry, len(top))
	for i, c := range top {
		snapshot[c.PlayerID] = c.Score
		entries[i] = replication.LiveboardEntry{PlayerID: c.PlayerID, Alias: c.Alias, Score: c.Score}
	}

	for _, viewer := range viewers {
		if sameSnapshot(lb.sent[viewer], snapshot) {
			continue
		}
		lb.sent[viewer] = snapshot
		lb.pass.Notify(replication.LiveboardEvent{Destination: viewer, Entries: entries})
	}
}

// Forget drops a departed viewer's cached snapshot so it doesn't leak.
func (lb *Liveboard) Forget(viewer world.EntityID) { delete(lb.sent, viewer) }

func sameSnapshot(a, b map[world.PlayerID]int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, score := range a {
		if b[id] != score {
			return false
		}
	}
	return true
}
