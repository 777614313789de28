// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"context"
	"sort"
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/storage"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// fakeDatabase is an in-memory storage.Database double, standing in for
// sqlite/DynamoDB so this package's tests exercise Leaderboard's own
// reporting/refresh/diff logic without a real store.
type fakeDatabase struct {
	scores map[storage.LeaderboardPeriod]map[uint32]storage.LeaderboardScore
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{scores: make(map[storage.LeaderboardPeriod]map[uint32]storage.LeaderboardScore)}
}

func (f *fakeDatabase) PutSession(context.Context, storage.SessionItem) error { return nil }
func (f *fakeDatabase) GetSession(context.Context, uint32, uint64) (storage.SessionItem, bool, error) {
	return storage.SessionItem{}, false, nil
}

func (f *fakeDatabase) PutScore(_ context.Context, score storage.LeaderboardScore) error {
	byPlayer, ok := f.scores[score.Period]
	if !ok {
		byPlayer = make(map[uint32]storage.LeaderboardScore)
		f.scores[score.Period] = byPlayer
	}
	if existing, ok := byPlayer[score.PlayerID]; !ok || score.Score > existing.Score {
		byPlayer[score.PlayerID] = score
	}
	return nil
}

func (f *fakeDatabase) TopScores(_ context.Context, gameID string, period storage.LeaderboardPeriod, count int) ([]storage.LeaderboardScore, error) {
	var out []storage.LeaderboardScore
	for _, s := range f.scores[period] {
		if s.GameID == gameID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeDatabase) PutServer(context.Context, storage.ServerRecord) error { return nil }
func (f *fakeDatabase) ListServers(context.Context) ([]storage.ServerRecord, error) {
	return nil, nil
}
func (f *fakeDatabase) Close() error { return nil }

var _ storage.Database = (*fakeDatabase)(nil)

func TestLeaderboard_ReportScoreThenRefreshSurfacesTopPlayer(t *testing.T) {
	ctx := context.Background()
	db := newFakeDatabase()
	lb := NewLeaderboard(db, "mk48arena")

	if err := lb.ReportScore(ctx, world.PlayerID(1), "Alice", 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lb.ReportScore(ctx, world.PlayerID(2), "Bob", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err := lb.Refresh(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != len(Periods) {
		t.Fatalf("expected every period to report changed on first refresh, got %v", changed)
	}

	top := lb.Scores(storage.PeriodDaily)
	if len(top) != 2 || top[0].PlayerID != 1 || top[0].Alias != "Alice" {
		t.Fatalf("expected Alice first, got %+v", top)
	}
}

func TestLeaderboard_RefreshOnlyReportsChangedPeriods(t *testing.T) {
	ctx := context.Background()
	db := newFakeDatabase()
	lb := NewLeaderboard(db, "mk48arena")
	lb.ReportScore(ctx, world.PlayerID(1), "Alice", 300)
	if _, err := lb.Refresh(ctx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err := lb.Refresh(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no periods to have changed on an unchanged refresh, got %v", changed)
	}

	lb.ReportScore(ctx, world.PlayerID(2), "Bob", 999)
	changed, err = lb.Refresh(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != len(Periods) {
		t.Fatalf("expected a new top score to change every period, got %v", changed)
	}
}
