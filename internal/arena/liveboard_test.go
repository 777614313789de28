// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/replication"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func TestTopLive_PicksHighestScoresDescending(t *testing.T) {
	candidates := []liveboardCandidate{
		{PlayerID: 1, Score: 10},
		{PlayerID: 2, Score: 50},
		{PlayerID: 3, Score: 30},
		{PlayerID: 4, Score: 5},
	}
	top := topLive(candidates, 2)
	if len(top) != 2 || top[0].PlayerID != 2 || top[1].PlayerID != 3 {
		t.Fatalf("expected [2,3] by descending score, got %+v", top)
	}
}

func TestTopLive_CountLargerThanInputReturnsAll(t *testing.T) {
	candidates := []liveboardCandidate{{PlayerID: 1, Score: 1}}
	top := topLive(candidates, 10)
	if len(top) != 1 {
		t.Fatalf("expected all 1 candidate returned, got %d", len(top))
	}
}

func TestLiveboard_RecomputeOnlyNotifiesOnChange(t *testing.T) {
	pass := replication.NewLiveboardPass()
	lb := NewLiveboard(pass)
	players := map[world.PlayerID]*world.Player{
		1: {ID: 1, Alias: "Alice", Score: 100, EntityID: 1},
		2: {ID: 2, Alias: "Bob", Score: 50, EntityID: 2},
	}
	viewer := world.EntityID(99)

	lb.Recompute(nil, players, []world.EntityID{viewer})
	var sent []replication.LiveboardEvent
	pass.Tick(func(e replication.LiveboardEvent) { sent = append(sent, e) }, func(any) {})
	if len(sent) != 1 {
		t.Fatalf("expected one notification on first recompute, got %d", len(sent))
	}

	// Unchanged standings must not notify again.
	lb.Recompute(nil, players, []world.EntityID{viewer})
	sent = nil
	pass.Tick(func(e replication.LiveboardEvent) { sent = append(sent, e) }, func(any) {})
	if len(sent) != 0 {
		t.Fatalf("expected no notification when the snapshot is unchanged, got %d", len(sent))
	}

	// A score change must notify again.
	players[2].Score = 500
	lb.Recompute(nil, players, []world.EntityID{viewer})
	sent = nil
	pass.Tick(func(e replication.LiveboardEvent) { sent = append(sent, e) }, func(any) {})
	if len(sent) != 1 {
		t.Fatalf("expected one notification after a score change, got %d", len(sent))
	}
}

func TestLiveboard_ForgetDropsCachedSnapshot(t *testing.T) {
	pass := replication.NewLiveboardPass()
	lb := NewLiveboard(pass)
	viewer := world.EntityID(7)
	players := map[world.PlayerID]*world.Player{1: {ID: 1, Score: 1, EntityID: 1}}

	lb.Recompute(nil, players, []world.EntityID{viewer})
	lb.Forget(viewer)
	if _, ok := lb.sent[viewer]; ok {
		t.Fatalf("expected Forget to drop the cached snapshot")
	}
}
