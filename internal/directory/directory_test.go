// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/storage"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// fakeDatabase is an in-memory storage.Database double recording every
// PutSession call, so tests can assert on write-behind flush behavior
// without a real sqlite/DynamoDB backend.
type fakeDatabase struct {
	mu   sync.Mutex
	puts []storage.SessionItem
}

func (f *fakeDatabase) PutSession(_ context.Context, item storage.SessionItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, item)
	return nil
}

func (f *fakeDatabase) GetSession(_ context.Context, arenaID uint32, sessionID uint64) (storage.SessionItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.puts) - 1; i >= 0; i-- {
		if f.puts[i].ArenaID == arenaID && f.puts[i].SessionID == sessionID {
			return f.puts[i], true, nil
		}
	}
	return storage.SessionItem{}, false, nil
}

func (f *fakeDatabase) PutScore(context.Context, storage.LeaderboardScore) error { return nil }
func (f *fakeDatabase) TopScores(context.Context, string, storage.LeaderboardPeriod, int) ([]storage.LeaderboardScore, error) {
	return nil, nil
}
func (f *fakeDatabase) PutServer(context.Context, storage.ServerRecord) error { return nil }
func (f *fakeDatabase) ListServers(context.Context) ([]storage.ServerRecord, error) {
	return nil, nil
}
func (f *fakeDatabase) Close() error { return nil }

func (f *fakeDatabase) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// fakePublisher is an in-memory Publisher double recording every
// published subject/payload pair.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	subject string
	payload []byte
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{subject: subject, payload: payload})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) countsBySubject() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, m := range f.published {
		out[m.subject]++
	}
	return out
}

func TestDirectory_LookupHitsWriteBehindCacheBeforeFlush(t *testing.T) {
	db := &fakeDatabase{}
	pub := &fakePublisher{}
	d := New(db, pub, nil)

	item := storage.SessionItem{ArenaID: 1, SessionID: 7, PlayerID: 3, Alias: "Alice"}
	d.IngestPlayerLifecycle(context.Background(), item, LifecycleJoined)

	got, ok, err := d.Lookup(context.Background(), 1, 7)
	if err != nil || !ok {
		t.Fatalf("expected a cache hit, ok=%v err=%v", ok, err)
	}
	if got.Alias != "Alice" {
		t.Fatalf("expected cached alias Alice, got %q", got.Alias)
	}
	if db.putCount() != 0 {
		t.Fatalf("expected no durable write before a flush, got %d puts", db.putCount())
	}
}

func TestDirectory_FlushWritesDirtySessionsThenClearsDirtySet(t *testing.T) {
	db := &fakeDatabase{}
	d := New(db, &fakePublisher{}, nil)

	d.cache.put(storage.SessionItem{ArenaID: 1, SessionID: 1, Alias: "A"})
	d.cache.put(storage.SessionItem{ArenaID: 1, SessionID: 2, Alias: "B"})
	d.cache.flush(context.Background())

	if db.putCount() != 2 {
		t.Fatalf("expected 2 durable writes after flush, got %d", db.putCount())
	}

	// A second flush with nothing newly dirty should write nothing more.
	d.cache.flush(context.Background())
	if db.putCount() != 2 {
		t.Fatalf("expected flush to be a no-op when nothing is dirty, got %d puts", db.putCount())
	}
}

func TestDirectory_IngestPlayerLifecyclePublishesPlayerDelta(t *testing.T) {
	pub := &fakePublisher{}
	d := New(&fakeDatabase{}, pub, nil)

	d.IngestPlayerLifecycle(context.Background(), storage.SessionItem{ArenaID: 1, SessionID: 1, PlayerID: 5, Alias: "Alice"}, LifecycleJoined)

	counts := pub.countsBySubject()
	if counts[string(DeltaPlayer)] != 1 {
		t.Fatalf("expected exactly one player delta published, got %v", counts)
	}
}

func TestDirectory_IngestStatusPublishesLiveboardDelta(t *testing.T) {
	pub := &fakePublisher{}
	d := New(&fakeDatabase{}, pub, nil)

	score := 42
	d.IngestStatus(context.Background(), session.ArenaID(1), world.PlayerID(5), "Alice", session.Location{}, &score)

	counts := pub.countsBySubject()
	if counts[string(DeltaLiveboard)] != 1 {
		t.Fatalf("expected exactly one liveboard delta published, got %v", counts)
	}
}

func TestDirectory_IngestTeamDeltaPublishesTeamDelta(t *testing.T) {
	pub := &fakePublisher{}
	d := New(&fakeDatabase{}, pub, nil)

	d.IngestTeamDelta(context.Background(), session.ArenaID(1), world.TeamID(9), []world.PlayerID{1, 2})

	counts := pub.countsBySubject()
	if counts[string(DeltaTeam)] != 1 {
		t.Fatalf("expected exactly one team delta published, got %v", counts)
	}
}

func TestDirectory_IngestLeaderboardDeltaPublishesLeaderboardDelta(t *testing.T) {
	pub := &fakePublisher{}
	d := New(&fakeDatabase{}, pub, nil)

	d.IngestLeaderboardDelta(context.Background(), "mk48arena", storage.PeriodDaily, []storage.LeaderboardScore{{PlayerID: 1, Score: 10}})

	counts := pub.countsBySubject()
	if counts[string(DeltaLeaderboard)] != 1 {
		t.Fatalf("expected exactly one leaderboard delta published, got %v", counts)
	}
}

func TestDirectory_LookupMissFallsBackToDatabase(t *testing.T) {
	db := &fakeDatabase{}
	// Seed storage directly, bypassing the cache, to simulate a session
	// durably written by a previous process.
	db.puts = append(db.puts, storage.SessionItem{ArenaID: 2, SessionID: 9, Alias: "Durable"})

	d := New(db, &fakePublisher{}, nil)
	got, ok, err := d.Lookup(context.Background(), 2, 9)
	if err != nil || !ok {
		t.Fatalf("expected a database fallback hit, ok=%v err=%v", ok, err)
	}
	if got.Alias != "Durable" {
		t.Fatalf("expected alias Durable from the database fallback, got %q", got.Alias)
	}
}
