// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/SoftbearStudios/mk48arena/internal/replication"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// rollupPeriod governs the coarser leaderboard/liveboard/team recompute
// and prune tickers. Grounded on server/hub.go's leaderboardPeriod (there
// 1s, shared by Despawn/Spawn/Leaderboard); widened here to
// LeaderboardRollupPeriod since this module's Leaderboard now round-trips
// through storage.Database instead of recomputing in memory.
const rollupPeriod = LeaderboardRollupPeriod

// clientState is the per-connected-client bookkeeping the loop keeps
// between ticks: its replication knowledge and its own rebuilt-per-tick
// contact view.
type clientState struct {
	data    *replication.ClientData[world.EntityID]
	contact *ContactState
}

// Loop drives one arena's world forward at a fixed rate and fans the
// resulting replication Updates out to every connected client. Grounded on
// server/hub.go's Hub.run select loop, reworked from channel-driven
// register/unregister/inbound events (this module's Registry and
// internal/transport own that instead) into a single ticker-driven
// method a transport layer calls into via Register/Unregister/Dispatch.
type Loop struct {
	World    *world.World
	Sessions *session.Repo
	Registry *Registry
	ArenaID  session.ArenaID

	Chain        *replication.Chain[world.EntityID]
	NewChecksum  func() replication.Checksum
	contactsPass *replication.ContactsPass

	Chat       *ChatGate
	Liveboard  *Liveboard
	Teams      *TeamRoster
	Leaderboard *Leaderboard

	log *zap.SugaredLogger

	mu      sync.Mutex
	clients map[world.PlayerID]*clientState

	commands *commandLimiter
}

// CommandsPerSecond/CommandBurst bound one session's Dispatch throughput.
// Grounded on client.rs's per-client rate limit, widened slightly since a
// real client issues guidance updates far more often than it fires.
const (
	CommandsPerSecond = 30
	CommandBurst      = 60
)

// NewLoop wires every replication pass onto a shared Chain and returns a
// Loop ready to Run. arenaID identifies the hosted instance for session
// and leaderboard lookups. A nil logger falls back to a no-op one, the
// same default catalog.Watch's caller uses in tests.
func NewLoop(w *world.World, sessions *session.Repo, registry *Registry, arenaID session.ArenaID, leaderboard *Leaderboard, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	chain := replication.NewChain[world.EntityID]()
	contactsPass := replication.NewContactsPass()
	chatPass := replication.NewChatPass()
	teamPass := replication.NewTeamPass()
	liveboardPass := replication.NewLiveboardPass()
	replication.AddPass[world.EntityID, replication.ContactEvent](chain, contactsPass)
	replication.AddPass[world.EntityID, replication.ChatMessage](chain, chatPass)
	replication.AddPass[world.EntityID, replication.TeamRosterEvent](chain, teamPass)
	replication.AddPass[world.EntityID, replication.LiveboardEvent](chain, liveboardPass)

	return &Loop{
		World:       w,
		Sessions:    sessions,
		Registry:    registry,
		ArenaID:     arenaID,
		Chain:        chain,
		NewChecksum:  func() replication.Checksum { return &replication.HashChecksum{} },
		contactsPass: contactsPass,
		Chat:        NewChatGate(sessions, chatPass),
		Liveboard:   NewLiveboard(liveboardPass),
		Teams:       NewTeamRoster(teamPass),
		Leaderboard: leaderboard,
		log:         log,
		clients:     make(map[world.PlayerID]*clientState),
		commands:    newCommandLimiter(CommandsPerSecond, CommandBurst),
	}
}

// forgetClient drops a departed player's per-client replication state,
// liveboard snapshot and team roster snapshot. Grounded on client.rs's
// despawn cleanup, which releases the same three caches.
func (l *Loop) forgetClient(id world.PlayerID, entity world.EntityID) {
	l.mu.Lock()
	delete(l.clients, id)
	l.mu.Unlock()
	l.Liveboard.Forget(entity)
	l.Teams.Forget(entity)
	l.commands.forget(id)
}

// stateFor returns the persistent per-client replication bookkeeping for
// playerID, allocating it on first sight.
func (l *Loop) stateFor(id world.PlayerID) *clientState {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.clients[id]
	if !ok {
		cs = &clientState{data: replication.NewClientData[world.EntityID](), contact: NewContactState()}
		l.clients[id] = cs
	}
	return cs
}

// Run drives the fixed-rate tick loop until ctx is cancelled. Grounded on
// server/hub.go's Hub.run: a physics/update ticker at flat.TickPeriod and
// a coarser rollupPeriod ticker whose rollup runs the leaderboard,
// liveboard and team recomputes and then client/session pruning (no
// terrain repair; see rollup).
func (l *Loop) Run(ctx context.Context) {
	tickTicker := time.NewTicker(flat.TickPeriod)
	defer tickTicker.Stop()
	rollupTicker := time.NewTicker(rollupPeriod)
	defer rollupTicker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tickTicker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now
			l.tick(now, elapsed)
		case now := <-rollupTicker.C:
			l.rollup(ctx, now)
		}
	}
}

// tick runs one fixed-rate step: advance the world, advance the shared
// pass chain once, then compute and deliver one Update per connected
// client. Grounded on Hub.run's `case <-h.updateTicker.C` branch
// (Physics+Update), restructured around this module's generic
// replication.Server instead of the teacher's hand-written per-field
// Update struct.
func (l *Loop) tick(now time.Time, elapsed time.Duration) {
	timer := prometheusTimer(tickPhaseDuration.WithLabelValues("physics"))
	l.World.Tick(now, elapsed)
	for _, death := range l.World.DrainDeathEvents() {
		l.contactsPass.Notify(replication.ContactEvent{
			Kind:   replication.ContactDied,
			Target: death.Entity,
			Source: world.EntityIDInvalid,
			Reason: death.Reason,
		})
	}
	timer()

	timer = prometheusTimer(tickPhaseDuration.WithLabelValues("chain"))
	l.Chain.Tick(func(any) {})
	timer()

	timer = prometheusTimer(tickPhaseDuration.WithLabelValues("replicate"))
	count := 0
	l.Registry.ForEachConnected(func(c *Client) {
		count++
		l.updateClient(c)
	})
	connectedClients.Set(float64(count))
	timer()
}

// updateClient resolves one connected player's visibility, computes its
// Update via a fresh per-viewer replication.Server sharing the loop's
// Chain, and hands the result to the client's Sender. Grounded on
// server/update.go's Hub.updateClient, generalized from the teacher's
// direct field population to the generic Server.Update call.
func (l *Loop) updateClient(c *Client) {
	player := l.World.Player(c.PlayerID)
	if player == nil {
		return
	}

	cs := l.stateFor(c.PlayerID)
	cs.contact = NewContactState()

	var cam Camera
	var viewerEntity world.EntityID
	if player.EntityID != world.EntityIDInvalid {
		cam, viewerEntity = cameraFor(l.World, player)
	} else {
		cam, viewerEntity = RespawningCamera(), world.EntityIDInvalid
	}

	var visibility []world.EntityID
	if viewerEntity != world.EntityIDInvalid {
		visibility = BuildVisibility(l.World, cam, player, cs.contact)
	}

	server := replication.NewServer[world.EntityID, Contact, replication.ContactEvent](cs.contact, l.Chain, l.NewChecksum)
	update := server.Update(cs.data, visibility)
	c.Send(update)
}

// cameraFor resolves the Camera and partition key (own entity id) for a
// spawned player. Grounded on server/world/entity.go's Entity.Camera call
// site inside Hub.updateClient.
func cameraFor(w *world.World, p *world.Player) (cam Camera, entity world.EntityID) {
	w.EntityByID(p.EntityID, func(e *world.Entity) {
		cam = EntityCamera(e)
		entity = e.ID
	})
	return cam, entity
}

// Contact and ContactState/ContactEvent live in internal/replication;
// aliased here only where a shorter local name reads better in this file.
type (
	Contact      = replication.Contact
	ContactState = replication.ContactState
)

func NewContactState() *ContactState { return replication.NewContactState() }

// rollup runs the loop's once-per-rollupPeriod maintenance: durable
// leaderboard refresh, liveboard recompute, team roster recompute and
// client/session pruning. Grounded on Hub.run's
// `case <-h.leaderboardTicker.C` branch (there: terrain repair, Despawn,
// Spawn, Leaderboard) — terrain repair and respawn scheduling are owned by
// internal/world and internal/session respectively in this module, so this
// branch is narrowed to the replication-facing rollups plus pruning.
func (l *Loop) rollup(ctx context.Context, now time.Time) {
	timer := prometheusTimer(tickPhaseDuration.WithLabelValues("leaderboard"))
	players := l.World.Players()
	for id, p := range players {
		if p.Score > 0 {
			if err := l.Leaderboard.ReportScore(ctx, id, p.Alias, p.Score); err != nil {
				l.log.Errorw("report score", "player", id, "error", err)
			}
		}
	}
	if _, err := l.Leaderboard.Refresh(ctx, LiveboardSize); err != nil {
		l.log.Errorw("refresh leaderboard", "error", err)
	}
	timer()

	timer = prometheusTimer(tickPhaseDuration.WithLabelValues("liveboard"))
	viewers := make([]world.EntityID, 0)
	teamViewers := make([]viewer, 0)
	l.Registry.ForEachConnected(func(c *Client) {
		p := players[c.PlayerID]
		if p == nil || p.EntityID == world.EntityIDInvalid {
			return
		}
		viewers = append(viewers, p.EntityID)
		teamViewers = append(teamViewers, viewer{Entity: p.EntityID, Player: c.PlayerID, TeamID: p.TeamID})
	})
	l.Liveboard.Recompute(l.World, players, viewers)
	timer()

	timer = prometheusTimer(tickPhaseDuration.WithLabelValues("team"))
	if a := l.Sessions.Arena(l.ArenaID); a != nil {
		l.Teams.Recompute(a.Teams, teamViewers)
	}
	timer()

	timer = prometheusTimer(tickPhaseDuration.WithLabelValues("prune"))
	l.Registry.Prune(
		func(playerID world.PlayerID) {
			entity := world.EntityIDInvalid
			if p := players[playerID]; p != nil {
				entity = p.EntityID
			}
			l.World.RemovePlayer(playerID)
			l.forgetClient(playerID, entity)
		},
		func(world.PlayerID) bool { return true },
	)
	l.Sessions.PruneSessions()
	timer()
}

// prometheusTimer starts a histogram observation and returns a func to
// stop it, the teacher's timeFunction idiom re-expressed over
// prometheus.Histogram instead of an in-memory funcBench slice.
func prometheusTimer(h interface{ Observe(float64) }) func() {
	start := time.Now()
	return func() { h.Observe(time.Since(start).Seconds()) }
}
