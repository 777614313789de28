// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "github.com/SoftbearStudios/mk48arena/internal/world"

// Chat, team and liveboard replace the teacher's ad hoc per-field Update
// struct (server/update.go's Update.Chats/TeamChats/TeamMembers/...) with
// ordinary passes in the same generic chain as contacts: each is sent as
// its own Update payload, predicted locally wherever its declared source
// partitions are already fully known, and otherwise echoed explicitly.
// None of these three can actually be predicted by a client (chat is
// player input, team rosters and the liveboard are server-computed from
// state the client doesn't simulate), so each pass declares its own
// partition as its only source: it's known only once the client has
// already seen this exact message/snapshot once, which never happens
// before the first delivery, guaranteeing the first (and only, since
// nothing ever re-derives it) copy is always sent explicitly. Moderation
// (finnbear/moderation) and durable leaderboard rollups are a presentation
// concern layered on top by the future chat/liveboard command handlers,
// not by the replication chain itself — see DESIGN.md.

// ChatMessage is one chat pass event: a broadcast (To == nil) or whisper
// (To naming a recipient). Grounded on server/chat_history.go's delivered
// message shape, trimmed of the teacher's own moderation bookkeeping (a
// session-layer concern, applied before Dispatch is ever called).
type ChatMessage struct {
	From PlayerEntity
	To   *PlayerEntity // nil for a broadcast
	Text string
}

// PlayerEntity pairs a player with the entity partition currently
// delivering their Updates, so the generic chain's DestinationPartition
// only ever needs to read the event, never look anything up.
type PlayerEntity struct {
	Player world.PlayerID
	Entity world.EntityID
}

// ChatPass delivers ChatMessage events. Grounded on server/update.go's
// Update.Chats/TeamChats fan-out.
type ChatPass struct{ queued []ChatMessage }

func NewChatPass() *ChatPass { return &ChatPass{} }

// Notify queues m to be emitted on the next Tick. Called by the owner of
// the chat gate (internal/arena) once per message accepted past moderation,
// mirroring ContactsPass.Notify.
func (p *ChatPass) Notify(m ChatMessage) { p.queued = append(p.queued, m) }

func (ChatPass) Name() string              { return "chat" }
func (ChatPass) Prioritize(ChatMessage) int { return 0 }
func (ChatPass) Collapse(ChatMessage) bool  { return false }
func (ChatPass) Apply(m ChatMessage, onInfo func(any)) { onInfo(m) }

func (p *ChatPass) Tick(onEvent func(ChatMessage), _ func(any)) {
	for _, m := range p.queued {
		onEvent(m)
	}
	p.queued = p.queued[:0]
}

// SourcePartitions names the message's own destination as its sole source:
// since a client only ever "knows" a partition after having received at
// least one Update mentioning it, and a chat message is never re-derivable
// from prior state, this guarantees every message is always sent
// explicitly rather than (wrongly) assumed predictable.
func (ChatPass) SourcePartitions(m ChatMessage) []world.EntityID {
	return []world.EntityID{m.From.Entity}
}

func (ChatPass) DestinationPartition(m ChatMessage) world.EntityID {
	if m.To != nil {
		return m.To.Entity
	}
	return m.From.Entity
}

// TeamRosterEvent is one team's current member list, pushed to a single
// viewing entity (the caller fans this out to every member's own
// Destination once per change). Grounded on server/team.go's
// Team.Members/JoinRequests broadcast fields.
type TeamRosterEvent struct {
	Destination world.EntityID
	TeamID      world.TeamID
	Members     []world.PlayerID
	JoinCode    string // non-empty only when Destination is the captain
}

// TeamPass delivers TeamRosterEvent events.
type TeamPass struct{ queued []TeamRosterEvent }

func NewTeamPass() *TeamPass { return &TeamPass{} }

// Notify queues e to be emitted on the next Tick, mirroring
// ContactsPass.Notify. Called once per affected viewer whenever a roster
// changes (join/leave/kick/promote).
func (p *TeamPass) Notify(e TeamRosterEvent) { p.queued = append(p.queued, e) }

func (TeamPass) Name() string                   { return "team" }
func (TeamPass) Prioritize(TeamRosterEvent) int { return 0 }

// Collapse: only the latest roster for a given viewer's team matters
// within one tick.
func (TeamPass) Collapse(TeamRosterEvent) bool { return true }

func (TeamPass) Apply(e TeamRosterEvent, onInfo func(any)) { onInfo(e) }

func (p *TeamPass) Tick(onEvent func(TeamRosterEvent), _ func(any)) {
	for _, e := range p.queued {
		onEvent(e)
	}
	p.queued = p.queued[:0]
}

func (TeamPass) SourcePartitions(e TeamRosterEvent) []world.EntityID {
	return []world.EntityID{e.Destination}
}

func (TeamPass) DestinationPartition(e TeamRosterEvent) world.EntityID { return e.Destination }

// LiveboardEntry is one row of the top-N-by-score snapshot.
type LiveboardEntry struct {
	PlayerID world.PlayerID
	Alias    string
	Score    int
}

// LiveboardEvent is a liveboard snapshot pushed to one viewing entity.
// Grounded on server/leaderboard.go's liveboard recomputation, diffed
// against the previous snapshot per spec.md §4.8 (the teacher instead
// resends the full top-N unconditionally every second; the diff itself is
// computed by the caller before Dispatch, same rationale as chat
// moderation above).
type LiveboardEvent struct {
	Destination world.EntityID
	Entries     []LiveboardEntry
}

// LiveboardPass delivers LiveboardEvent events.
type LiveboardPass struct{ queued []LiveboardEvent }

func NewLiveboardPass() *LiveboardPass { return &LiveboardPass{} }

// Notify queues e to be emitted on the next Tick, mirroring
// ContactsPass.Notify. Called once per viewer whose diffed snapshot changed
// this tick (see internal/arena's liveboard diffing).
func (p *LiveboardPass) Notify(e LiveboardEvent) { p.queued = append(p.queued, e) }

func (LiveboardPass) Name() string                 { return "liveboard" }
func (LiveboardPass) Prioritize(LiveboardEvent) int { return 0 }
func (LiveboardPass) Collapse(LiveboardEvent) bool  { return true }
func (LiveboardPass) Apply(e LiveboardEvent, onInfo func(any)) { onInfo(e) }

func (p *LiveboardPass) Tick(onEvent func(LiveboardEvent), _ func(any)) {
	for _, e := range p.queued {
		onEvent(e)
	}
	p.queued = p.queued[:0]
}

func (LiveboardPass) SourcePartitions(e LiveboardEvent) []world.EntityID {
	return []world.EntityID{e.Destination}
}

func (LiveboardPass) DestinationPartition(e LiveboardEvent) world.EntityID { return e.Destination }
