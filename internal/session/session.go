// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// UserAgentID coarsely classifies the client's browser/HTTP user agent.
type UserAgentID int

const (
	UserAgentUnknown UserAgentID = iota
	UserAgentBrowser
	UserAgentSpider
)

// Location is a coarse (country, region, city) GeoIP resolution, populated
// by internal/fleet's GeoIP lookup. Zero value means unknown.
type Location struct {
	Country, Region, City uint16
}

func (l Location) IsZero() bool { return l == Location{} }

// Referrer is an abbreviated referring page, e.g. "google.com".
type Referrer string

// Play is one span of active gameplay within a Session: from start_play to
// stop_play (or session end). Grounded on session.rs's Play.
type Play struct {
	DateCreated time.Time
	DateJoin    time.Time // zero if never joined a team
	DateStop    time.Time // zero while still playing

	Invited  bool // started via a consumed Invitation
	Renewed  bool // first play since the session was created or renewed
	Score    *int
	TeamID   world.TeamID
	Captain  bool
}

func newPlay() *Play { return &Play{DateCreated: time.Now()} }

// ExceedsScore reports whether this play might belong on the liveboard.
func (p *Play) ExceedsScore(minScore int) bool { return p.Score != nil && *p.Score >= minScore }

// Session is one browser's credential across reconnects. Grounded on
// session.rs's Session, trimmed of rustrict::Context (chat_context is
// represented here as a plain moderation-strike counter; the profanity
// filter itself is wired in internal/arena's C8 chat pipeline, which is
// the only thing that ever touches message text).
type Session struct {
	ID       SessionID
	ArenaID  ArenaID
	PlayerID world.PlayerID

	Alias string

	DateCreated    time.Time
	DateRenewed    time.Time
	DateDrop       time.Time // zero unless the socket has dropped
	DateTerminated time.Time // zero while still alive
	DatePrevious   time.Time // oldest ancestor session's creation time, for retention metrics

	Live bool

	FPS      *float32
	RTT      *time.Duration
	Location Location
	Referrer Referrer
	UserAgent UserAgentID
	ServerID  ServerID
	CohortID  CohortID

	PreviousID    SessionID // ancestor this session was renewed from
	PreviousPlays int       // play count carried over from ancestors already pruned from Plays

	Muted    map[world.PlayerID]bool
	Reported map[world.PlayerID]bool

	ChatStrikes int // moderation.Context's toxicity accumulator lives in C8; this is the durable counter

	Invitation   *Invitation // consumed by StartPlay
	InvitationOut *InvitationID

	Inbox []ChatInboxEntry // ring buffer, capacity inboxCapacity

	Plays []*Play
}

// ChatInboxEntry is one message retained so a reconnecting (or never
// connected) player sees what they missed.
type ChatInboxEntry struct {
	From world.PlayerID
	Text string
	Sent time.Time
}

const inboxCapacity = 10

// ReceiveChat appends a message to the session's inbox, evicting the
// oldest entry once inboxCapacity is exceeded (a ring buffer of the last
// 10 messages, delivered on reconnect even if the player wasn't actively
// playing when they arrived).
func (s *Session) ReceiveChat(e ChatInboxEntry) {
	s.Inbox = append(s.Inbox, e)
	if len(s.Inbox) > inboxCapacity {
		s.Inbox = s.Inbox[len(s.Inbox)-inboxCapacity:]
	}
}

// LastPlay returns the most recent Play, or nil if none yet.
func (s *Session) LastPlay() *Play {
	if len(s.Plays) == 0 {
		return nil
	}
	return s.Plays[len(s.Plays)-1]
}

// terminate stops the session and its current play, reporting whether it
// was actually terminated now (false if already terminated). Grounded on
// session.rs's Session::terminate_session.
func (s *Session) terminate(now time.Time) bool {
	if !s.DateTerminated.IsZero() {
		return false
	}
	s.DateTerminated = now
	s.Live = false
	if play := s.LastPlay(); play != nil && play.DateStop.IsZero() {
		play.DateStop = now
	}
	return true
}

// DyingDuration is how long a live, stopped-play session survives before
// being dropped from the online roster (server/physics.go §4.4-adjacent
// despawn grace in the teacher has no direct analogue; this is a pure C6
// bookkeeping window from session.rs's equivalent constant).
const DyingDuration = 60 * time.Second

// TwoDays is the soft-termination window for a non-live session: after
// this much inactivity, the credential stops being renewable.
const TwoDays = 48 * time.Hour

// TerminatedRetention is how long a terminated session's record is kept in
// the in-memory cache after termination, to give the durable store time to
// flush it (session.rs's DB_SESSION_TIMER_SECS-derived window).
const TerminatedRetention = time.Hour

// Repo is the in-memory session/player cache for one server process,
// scoped across every arena it hosts. Grounded on session.rs's Repo
// methods of the same names.
type Repo struct {
	arenas  map[ArenaID]*Arena
	players map[world.PlayerID]SessionID // which session currently owns a player id
}

// Arena is this package's view of one hosted game instance: its sessions,
// teams and invitations. internal/world.World is the simulation; Arena is
// everything session-shaped layered on top of it.
type Arena struct {
	ID      ArenaID
	GameID  string
	ServerID ServerID

	Sessions map[SessionID]*Session
	Teams    *TeamRepo
	Invites  *InvitationRepo

	LiveboardMinScore int
	LiveboardChanged  bool

	DatePut time.Time // set when populated from a remote query cache rather than created locally
}

// NewRepo returns an empty Repo.
func NewRepo() *Repo {
	return &Repo{
		arenas:  make(map[ArenaID]*Arena),
		players: make(map[world.PlayerID]SessionID),
	}
}

// NewArena registers and returns a freshly created arena.
func (r *Repo) NewArena(id ArenaID, gameID string, serverID ServerID) *Arena {
	a := &Arena{
		ID:       id,
		GameID:   gameID,
		ServerID: serverID,
		Sessions: make(map[SessionID]*Session),
		Teams:    newTeamRepo(),
		Invites:  newInvitationRepo(),
	}
	r.arenas[id] = a
	return a
}

// Arena looks up a hosted arena by id.
func (r *Repo) Arena(id ArenaID) *Arena { return r.arenas[id] }

// getLive returns session if present and not terminated.
func getLive(sessions map[SessionID]*Session, id SessionID) *Session {
	s := sessions[id]
	if s == nil || !s.DateTerminated.IsZero() {
		return nil
	}
	return s
}

// CreateSession implements spec.md §4.6's session-creation algorithm:
// reject spiders, renew a compatible existing credential if offered, else
// allocate a fresh one in a compatible arena. Grounded on session.rs's
// Repo::create_session.
func (r *Repo) CreateSession(gameID string, invitation *Invitation, referrer Referrer, saved *struct {
	ArenaID   ArenaID
	SessionID SessionID
}, userAgent UserAgentID) (arenaID ArenaID, sessionID SessionID, playerID world.PlayerID, serverID ServerID, ok bool) {
	if userAgent == UserAgentSpider {
		return 0, 0, 0, 0, false
	}

	now := time.Now()

	if saved != nil {
		if arena := r.arenas[saved.ArenaID]; arena != nil {
			if s := arena.Sessions[saved.SessionID]; s != nil {
				terminate := arena.GameID != gameID
				if !terminate && invitation != nil && invitation.ArenaID != saved.ArenaID {
					terminate = true
				}
				switch {
				case !s.DateTerminated.IsZero():
					// Already terminated: fall through to fresh allocation.
				case terminate:
					s.terminate(now)
				default:
					if invitation != nil {
						s.Invitation = invitation
					}
					if referrer != "" {
						s.Referrer = referrer
					}
					if userAgent != UserAgentUnknown {
						s.UserAgent = userAgent
					}
					r.players[s.PlayerID] = saved.SessionID
					s.DateDrop = time.Time{}
					s.DateRenewed = now
					return saved.ArenaID, saved.SessionID, s.PlayerID, arena.ServerID, true
				}
			}
		}
	}

	var found *Arena
	for _, arena := range r.arenas {
		if arena.GameID != gameID {
			continue
		}
		if invitation != nil && invitation.ArenaID != arena.ID {
			continue
		}
		found = arena
		break
	}
	if found == nil {
		return 0, 0, 0, 0, false
	}

	var prevPlayerID world.PlayerID
	var datePrevious time.Time
	if saved != nil {
		if arena := r.arenas[saved.ArenaID]; arena != nil {
			if s := arena.Sessions[saved.SessionID]; s != nil {
				prevPlayerID = s.PlayerID
				if !s.DatePrevious.IsZero() {
					datePrevious = s.DatePrevious
				} else {
					datePrevious = s.DateCreated
				}
			}
		}
	}

	sid := allocateSessionID(func(id SessionID) bool {
		_, taken := found.Sessions[id]
		return taken
	})
	var pid world.PlayerID
	if prevPlayerID != world.PlayerIDInvalid {
		pid = prevPlayerID
	} else {
		pid = allocatePlayerID(func(id world.PlayerID) bool {
			_, taken := r.players[id]
			return taken
		})
	}
	r.players[pid] = sid

	s := &Session{
		ID:           sid,
		ArenaID:      found.ID,
		PlayerID:     pid,
		DateCreated:  now,
		DateRenewed:  now,
		DatePrevious: datePrevious,
		Referrer:     referrer,
		UserAgent:    userAgent,
		ServerID:     found.ServerID,
		Muted:        make(map[world.PlayerID]bool),
		Reported:     make(map[world.PlayerID]bool),
		Invitation:   invitation,
	}
	found.Sessions[sid] = s
	return found.ID, sid, pid, found.ServerID, true
}

// DropSession marks a session's socket as closed (does not terminate it;
// the client may reconnect within the Limbo window managed by C7).
func (r *Repo) DropSession(arenaID ArenaID, sessionID SessionID) {
	arena := r.arenas[arenaID]
	if arena == nil {
		return
	}
	s := getLive(arena.Sessions, sessionID)
	if s == nil || !s.DateDrop.IsZero() {
		return
	}
	now := time.Now()
	s.DateDrop = now
	if play := s.LastPlay(); play != nil && play.DateStop.IsZero() {
		play.DateStop = now
	}
}

// IdentifySession applies a client-chosen alias, rejecting the change once
// more than 10s into the current play (to avoid corrupting the
// leaderboard mid-game).
func (r *Repo) IdentifySession(arenaID ArenaID, sessionID SessionID, alias string, sanitize func(string) string) bool {
	arena := r.arenas[arenaID]
	if arena == nil {
		return false
	}
	s := getLive(arena.Sessions, sessionID)
	if s == nil {
		return false
	}
	now := time.Now()
	if s.Live {
		if play := s.LastPlay(); play != nil && play.DateStop.IsZero() && now.Sub(play.DateCreated) > 10*time.Second {
			return false
		}
	}
	censored := sanitize(alias)
	if censored == s.Alias {
		return true
	}
	s.Alias = censored
	s.DateRenewed = now
	return true
}

// StartPlay transitions a session to live, appending a new Play. If the
// session held a consumed invitation to a non-full team, the player joins
// it directly.
func (r *Repo) StartPlay(arenaID ArenaID, sessionID SessionID, defaultScore *int, onlinePlayers int) (world.PlayerID, bool) {
	arena := r.arenas[arenaID]
	if arena == nil {
		return 0, false
	}
	s := getLive(arena.Sessions, sessionID)
	if s == nil {
		return 0, false
	}

	var invitedTeamID world.TeamID
	invited := s.Invitation != nil
	if invited {
		if teamID := arena.Teams.TeamOf(s.Invitation.PlayerID); !arena.Teams.IsFull(teamID, onlinePlayers) {
			invitedTeamID = teamID
		}
	}

	play := newPlay()
	if last := s.LastPlay(); last != nil {
		play.Renewed = last.DateCreated.Before(s.DateRenewed)
	} else {
		play.Renewed = true
	}
	play.Score = defaultScore

	if invited {
		play.Invited = true
		s.Invitation = nil
	}

	if s.Live {
		last := s.LastPlay()
		play.TeamID = last.TeamID
		play.Captain = last.Captain
		play.DateJoin = last.DateJoin
	} else {
		s.Live = true
		play.TeamID = invitedTeamID
		if team := arena.Teams.Get(invitedTeamID); team != nil && arena.Teams.TeamOf(s.PlayerID) == world.TeamIDInvalid {
			team.Members = append(team.Members, s.PlayerID)
			arena.Teams.assignTeamAndCancelJoins(s.PlayerID, invitedTeamID)
		}
	}
	if play.TeamID != world.TeamIDInvalid && play.DateJoin.IsZero() {
		play.DateJoin = time.Now()
	}

	s.Plays = append(s.Plays, play)
	return s.PlayerID, true
}

// StopPlay ends the current play without dropping the session (spec.md
// §4.6: session remains live for a while after gameplay ends).
func (r *Repo) StopPlay(arenaID ArenaID, sessionID SessionID) {
	arena := r.arenas[arenaID]
	if arena == nil {
		return
	}
	s := getLive(arena.Sessions, sessionID)
	if s == nil {
		return
	}
	if play := s.LastPlay(); play != nil && play.DateStop.IsZero() {
		play.DateStop = time.Now()
	}
}

// TerminateSession is the client-initiated variant (superseding a session
// with a freshly created one).
func (r *Repo) TerminateSession(arenaID ArenaID, sessionID SessionID) {
	arena := r.arenas[arenaID]
	if arena == nil {
		return
	}
	s := getLive(arena.Sessions, sessionID)
	if s == nil {
		return
	}
	s.terminate(time.Now())
}

// ValidateSession reports whether credentials are at least known (even a
// terminated session validates, per session.rs), along with elapsed-since-
// stop seconds, any pending inbound invitation, the player id, and score.
func (r *Repo) ValidateSession(arenaID ArenaID, sessionID SessionID) (elapsed time.Duration, invitation *Invitation, playerID world.PlayerID, score int, ok bool) {
	arena := r.arenas[arenaID]
	if arena == nil {
		return 0, nil, 0, 0, false
	}
	s := arena.Sessions[sessionID]
	if s == nil {
		return 0, nil, 0, 0, false
	}
	playerID = s.PlayerID
	invitation = s.Invitation
	ok = true
	if s.Live {
		if play := s.LastPlay(); play != nil && play.Score != nil {
			if !play.DateStop.IsZero() {
				elapsed = time.Since(play.DateStop)
			}
			score = *play.Score
		}
	}
	return
}

// PruneSessions runs the periodic maintenance sweep: drops stale live
// sessions from the roster, soft-terminates long-idle non-live sessions,
// and finally forgets sessions that finished their terminated-retention
// window. Grounded on session.rs's Repo::prune_sessions.
func (r *Repo) PruneSessions() {
	now := time.Now()
	for _, arena := range r.arenas {
		var removable []SessionID
		for id, s := range arena.Sessions {
			switch {
			case s.Live:
				if play := s.LastPlay(); play != nil && !play.DateStop.IsZero() && now.Sub(play.DateStop) > DyingDuration {
					s.Live = false
					if play.TeamID != world.TeamIDInvalid {
						arena.Teams.LeaveOnDisconnect(play.TeamID, s.PlayerID)
					}
				}
			case s.DateTerminated.IsZero():
				if now.Sub(s.DateRenewed) > TwoDays {
					s.DateTerminated = now
				}
			default:
				if now.Sub(s.DateTerminated) > TerminatedRetention {
					removable = append(removable, id)
				}
			}
		}
		for _, id := range removable {
			pid := arena.Sessions[id].PlayerID
			delete(arena.Sessions, id)
			if r.players[pid] == id {
				delete(r.players, pid)
			}
			// Must run before pid is forgotten: otherwise a stale entry
			// lingers forever in any other team's Joiners list.
			arena.Teams.CleanupPlayer(pid)
		}
	}
}

// PutSession installs a session fetched from the durable store (C10's
// write-behind cache populates the in-memory Repo this way on a cache
// miss), creating the arena shell if this server doesn't otherwise host it
// (the session belongs to a sibling server, kept here only for directory
// lookups).
func (r *Repo) PutSession(arenaID ArenaID, sessionID SessionID, s *Session, gameID string) {
	arena := r.arenas[arenaID]
	if arena == nil {
		arena = r.NewArena(arenaID, gameID, s.ServerID)
	}
	arena.Sessions[sessionID] = s
	arena.DatePut = time.Now()
}

func (a *Arena) findSessionByPlayer(id world.PlayerID) *Session {
	for _, s := range a.Sessions {
		if s.PlayerID == id && s.DateTerminated.IsZero() && s.Live {
			return s
		}
	}
	return nil
}
