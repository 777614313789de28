// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package directory is the central directory (spec.md §4.10): a single
// long-lived task, separate from any one arena server, that holds a
// write-behind cache of SessionItems keyed by (arena, session) and
// republishes player/team/liveboard/leaderboard deltas to subscribing
// observers. Grounded on the teacher's cloud.go for the write-behind
// cache shape (it already rate-limits DynamoDB writes the same way) and
// on bayleafwalker-bindery-core's publish package for the NATS fanout,
// since the teacher never has a cross-server component at all.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/storage"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// Directory is the cross-server session directory: every arena server
// reports its own bot-readiness/player-lifecycle/status events here, and
// every subscribing observer (an admin dashboard, an analytics sink)
// receives the resulting deltas over Publisher.
type Directory struct {
	db        storage.Database
	pub       Publisher
	log       *zap.SugaredLogger
	cache     *sessionCache
}

// New returns a Directory backed by db for durable SessionItem storage and
// pub for delta fanout. A nil logger falls back to a no-op one, matching
// internal/arena and internal/fleet's own constructor convention.
func New(db storage.Database, pub Publisher, log *zap.SugaredLogger) *Directory {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Directory{
		db:    db,
		pub:   pub,
		log:   log,
		cache: newSessionCache(db, flushInterval, log),
	}
}

// Run drives the write-behind cache's periodic flush until ctx is
// cancelled. Spec.md §5 names this rate limit explicitly: "Durable store
// cache: owned by the central directory thread; writes are rate-limited
// (30 s)".
func (d *Directory) Run(ctx context.Context) {
	d.cache.run(ctx)
}

// IngestBotReady records that a server-managed bot session came online,
// per spec.md §4.10's "bot-readiness ... events from server instances".
// Bots aren't persisted (they have no SessionItem of their own to
// write-behind), so this only republishes a player delta.
func (d *Directory) IngestBotReady(ctx context.Context, arenaID session.ArenaID, playerID world.PlayerID, alias string) {
	directoryEventsTotal.WithLabelValues("bot_ready").Inc()
	d.publish(ctx, DeltaPlayer, playerDelta{
		ArenaID: arenaID, PlayerID: playerID, Alias: alias, Kind: "bot_ready", At: time.Now(),
	})
}

// LifecycleKind classifies a player-lifecycle event's transition.
type LifecycleKind string

const (
	LifecycleJoined     LifecycleKind = "joined"
	LifecycleLeft       LifecycleKind = "left"
	LifecycleTerminated LifecycleKind = "terminated"
)

// IngestPlayerLifecycle records a session's join/leave/terminate
// transition: it both updates the write-behind SessionItem cache (so a
// crash loses at most flushInterval worth of bookkeeping) and republishes
// a player delta.
func (d *Directory) IngestPlayerLifecycle(ctx context.Context, item storage.SessionItem, kind LifecycleKind) {
	directoryEventsTotal.WithLabelValues("player_lifecycle").Inc()
	d.cache.put(item)
	d.publish(ctx, DeltaPlayer, playerDelta{
		ArenaID: session.ArenaID(item.ArenaID), PlayerID: world.PlayerID(item.PlayerID), Alias: item.Alias,
		Kind: string(kind), At: time.Now(),
	})
}

// IngestStatus records a status (location/score) update, per spec.md
// §4.10. Location isn't part of the durable SessionItem (it's ephemeral,
// GeoIP-derived per connection, see session.Location), so this only
// republishes liveboard/leaderboard deltas for observers tracking score
// movement; a zero Score still republishes, so a reset/disconnect is
// visible to subscribers too.
func (d *Directory) IngestStatus(ctx context.Context, arenaID session.ArenaID, playerID world.PlayerID, alias string, loc session.Location, score *int) {
	directoryEventsTotal.WithLabelValues("status").Inc()
	d.publish(ctx, DeltaLiveboard, liveboardDelta{
		ArenaID: arenaID, PlayerID: playerID, Alias: alias, Score: score, At: time.Now(),
	})
}

// IngestTeamDelta republishes a team roster change, e.g. to drive an
// external spectator overlay. Team membership itself is owned by
// internal/session's TeamRepo; the directory only ever forwards deltas.
func (d *Directory) IngestTeamDelta(ctx context.Context, arenaID session.ArenaID, teamID world.TeamID, members []world.PlayerID) {
	directoryEventsTotal.WithLabelValues("team").Inc()
	d.publish(ctx, DeltaTeam, teamDelta{ArenaID: arenaID, TeamID: teamID, Members: members, At: time.Now()})
}

// IngestLeaderboardDelta republishes a leaderboard rollup change (see
// internal/arena's Leaderboard.Refresh) so a subscribing dashboard can
// mirror it without its own polling loop against storage.Database.
func (d *Directory) IngestLeaderboardDelta(ctx context.Context, gameID string, period storage.LeaderboardPeriod, scores []storage.LeaderboardScore) {
	directoryEventsTotal.WithLabelValues("leaderboard").Inc()
	d.publish(ctx, DeltaLeaderboard, leaderboardDelta{GameID: gameID, Period: period, Scores: scores, At: time.Now()})
}

// Lookup answers a cross-server session query, per spec.md §4.10's
// "cross-server session lookup". Reads the write-behind cache first (the
// freshest data, possibly not yet durable) and falls back to storage.
func (d *Directory) Lookup(ctx context.Context, arenaID session.ArenaID, sessionID session.SessionID) (storage.SessionItem, bool, error) {
	directoryQueriesTotal.Inc()
	if item, ok := d.cache.get(arenaID, sessionID); ok {
		return item, true, nil
	}
	item, ok, err := d.db.GetSession(ctx, uint32(arenaID), uint64(sessionID))
	if err != nil {
		return storage.SessionItem{}, false, fmt.Errorf("directory: lookup: %w", err)
	}
	return item, ok, nil
}

func (d *Directory) publish(ctx context.Context, kind DeltaKind, payload any) {
	if d.pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.Errorw("marshal delta", "kind", kind, "error", err)
		return
	}
	if err := d.pub.Publish(ctx, string(kind), body); err != nil {
		d.log.Warnw("publish delta", "kind", kind, "error", err)
		return
	}
	directoryPublishedTotal.WithLabelValues(string(kind)).Inc()
}
