// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// TeamJoinsMax is how many teams a solo player may simultaneously request
// to join before the oldest request is evicted, per spec.md §4.6.
const TeamJoinsMax = 3

// TeamJoinersMax is how many pending join requests one team tolerates
// before it is considered closed to new requests.
const TeamJoinersMax = 8

// TeamMembersMax returns the dynamic member cap given how many real
// players are currently online (spec.md §3: "4..8"), mirroring the
// teacher's world/team.go TeamMembersMax but scaled by population instead
// of fixed at 6.
func TeamMembersMax(onlinePlayers int) int {
	switch {
	case onlinePlayers < 20:
		return 4
	case onlinePlayers < 80:
		return 6
	default:
		return 8
	}
}

// Team is an ordered roster: Members[0] is always the captain. Grounded on
// the teacher's server/world/team.go PlayerSet ordering convention,
// generalized from *Player pointers to world.PlayerID so this package
// doesn't need to borrow the simulation's entity graph.
type Team struct {
	ID      world.TeamID
	Name    string
	Members []world.PlayerID // ordered; [0] is captain
	Joiners []world.PlayerID // ordered; never reordered
}

func (t *Team) IsMember(id world.PlayerID) bool { return indexOf(t.Members, id) >= 0 }
func (t *Team) IsCaptain(id world.PlayerID) bool {
	return len(t.Members) > 0 && t.Members[0] == id
}
func (t *Team) IsFull(onlinePlayers int) bool { return len(t.Members) >= TeamMembersMax(onlinePlayers) }
func (t *Team) IsClosed() bool                { return len(t.Joiners) >= TeamJoinersMax }

func indexOf(ids []world.PlayerID, id world.PlayerID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(ids []world.PlayerID, i int) []world.PlayerID {
	copy(ids[i:], ids[i+1:])
	return ids[:len(ids)-1]
}

// TeamRepo owns every team in one arena and the pending-join state that
// lives outside of any one Team (a solo player's own join queue). Grounded
// on team.rs's TeamRepo.
type TeamRepo struct {
	teams map[world.TeamID]*Team
	joins map[world.PlayerID][]world.TeamID // solo players' pending join requests, oldest first
	teamOf map[world.PlayerID]world.TeamID  // reverse index: member -> team
}

func newTeamRepo() *TeamRepo {
	return &TeamRepo{
		teams:  make(map[world.TeamID]*Team),
		joins:  make(map[world.PlayerID][]world.TeamID),
		teamOf: make(map[world.PlayerID]world.TeamID),
	}
}

// Get returns a team by id.
func (r *TeamRepo) Get(id world.TeamID) *Team { return r.teams[id] }

// TeamOf returns the team a player currently belongs to, or TeamIDInvalid.
func (r *TeamRepo) TeamOf(id world.PlayerID) world.TeamID {
	if t, ok := r.teamOf[id]; ok {
		return t
	}
	return world.TeamIDInvalid
}

// IsFull reports whether team is at its dynamic member cap.
func (r *TeamRepo) IsFull(id world.TeamID, onlinePlayers int) bool {
	t := r.teams[id]
	return t == nil || t.IsFull(onlinePlayers)
}

var (
	errNotCaptain      = errors.New("session: not captain")
	errNotInTeam       = errors.New("session: not in team")
	errAlreadyInTeam   = errors.New("session: already in team")
	errAlreadyJoining  = errors.New("session: already requesting to join this team")
	errTeamsDisabled   = errors.New("session: teams are currently disabled")
	errTeamNameInUse   = errors.New("session: team name already in use")
	errTeamNameEmpty   = errors.New("session: team name is empty after sanitization")
	errTeamNonexistent = errors.New("session: team does not exist")
	errTeamFull        = errors.New("session: team is full")
	errTeamClosed      = errors.New("session: team is closed to requests")
	errSelfTarget       = errors.New("session: cannot target self")
	errNotJoiner        = errors.New("session: player did not request to join")
)

// sanitizeTeamName trims and length-clamps a requested team name. Unlike
// the teacher's finnbear/moderation-backed PlayerAlias sanitization (C8),
// profanity filtering of team names is a presentation concern layered on
// by the caller before Create is invoked, not by this package.
func sanitizeTeamName(name string) string {
	name = strings.TrimSpace(name)
	const maxLen = 16
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name
}

// allocateTeamID mirrors the teacher's team.go rand.Uint32 id generation:
// unlike SessionID, guessing a TeamID grants no privilege (team content is
// public to anyone who knows it), so math/rand is fine here.
func allocateTeamID(used func(world.TeamID) bool) world.TeamID {
	for {
		id := world.TeamID(rand.Uint32())
		if id != world.TeamIDInvalid && !used(id) {
			return id
		}
	}
}

// Create makes requester the captain of a brand new team. Grounded on
// team.rs's TeamRepo::create_team.
func (r *TeamRepo) Create(requester world.PlayerID, name string, onlinePlayers int) (world.TeamID, error) {
	if TeamMembersMax(onlinePlayers) == 0 {
		return 0, errTeamsDisabled
	}
	if r.TeamOf(requester) != world.TeamIDInvalid {
		return 0, errAlreadyInTeam
	}
	censored := sanitizeTeamName(name)
	if censored == "" {
		return 0, errTeamNameEmpty
	}
	for _, t := range r.teams {
		if t.Name == censored {
			return 0, errTeamNameInUse
		}
	}

	id := allocateTeamID(func(id world.TeamID) bool { _, ok := r.teams[id]; return ok })
	r.teams[id] = &Team{ID: id, Name: censored, Members: []world.PlayerID{requester}}
	r.assignTeamAndCancelJoins(requester, id)
	return id, nil
}

// Join requests membership, evicting the requester's oldest pending
// request if they already have TeamJoinsMax outstanding. Grounded on
// team.rs's TeamRepo::request_join.
func (r *TeamRepo) Join(requester world.PlayerID, teamID world.TeamID) error {
	if r.TeamOf(requester) != world.TeamIDInvalid {
		return errAlreadyInTeam
	}
	team := r.teams[teamID]
	if team == nil {
		return errTeamNonexistent
	}
	if team.IsClosed() {
		return errTeamClosed
	}
	pending := r.joins[requester]
	for _, id := range pending {
		if id == teamID {
			return errAlreadyJoining
		}
	}

	var evicted world.TeamID
	if len(pending) >= TeamJoinsMax {
		evicted, pending = pending[0], pending[1:]
	}
	pending = append(pending, teamID)
	r.joins[requester] = pending

	team.Joiners = append(team.Joiners, requester)
	if evicted != world.TeamIDInvalid {
		if t := r.teams[evicted]; t != nil {
			if i := indexOf(t.Joiners, requester); i >= 0 {
				t.Joiners = removeAt(t.Joiners, i)
			}
		}
	}
	return nil
}

// AcceptOrReject is the captain-only response to a pending joiner.
// Grounded on team.rs's TeamRepo::accept_or_reject_player.
func (r *TeamRepo) AcceptOrReject(captain, joiner world.PlayerID, accept bool, onlinePlayers int) error {
	if joiner == captain {
		return errSelfTarget
	}
	teamID := r.TeamOf(captain)
	if teamID == world.TeamIDInvalid {
		return errNotInTeam
	}
	team := r.teams[teamID]
	if !team.IsCaptain(captain) {
		return errNotCaptain
	}
	if accept && team.IsFull(onlinePlayers) {
		return errTeamFull
	}
	i := indexOf(team.Joiners, joiner)
	if i < 0 {
		return errNotJoiner
	}
	team.Joiners = removeAt(team.Joiners, i)
	r.removeJoin(joiner, teamID)

	if accept {
		team.Members = append(team.Members, joiner)
		r.assignTeamAndCancelJoins(joiner, teamID)
	}
	return nil
}

// Kick removes a member (who becomes solo again). Captain-only,
// self-targeting disallowed.
func (r *TeamRepo) Kick(captain, target world.PlayerID) error {
	if target == captain {
		return errSelfTarget
	}
	teamID := r.TeamOf(captain)
	if teamID == world.TeamIDInvalid {
		return errNotInTeam
	}
	team := r.teams[teamID]
	if !team.IsCaptain(captain) {
		return errNotCaptain
	}
	i := indexOf(team.Members, target)
	if i < 0 {
		return errNotInTeam
	}
	team.Members = removeAt(team.Members, i)
	delete(r.teamOf, target)
	return nil
}

// Promote swaps captaincy to target, a current member.
func (r *TeamRepo) Promote(captain, target world.PlayerID) error {
	if target == captain {
		return errSelfTarget
	}
	teamID := r.TeamOf(captain)
	if teamID == world.TeamIDInvalid {
		return errNotInTeam
	}
	team := r.teams[teamID]
	if !team.IsCaptain(captain) {
		return errNotCaptain
	}
	i := indexOf(team.Members, target)
	if i < 0 {
		return errNotInTeam
	}
	team.Members[0], team.Members[i] = team.Members[i], team.Members[0]
	return nil
}

// Leave removes requester from their team, deleting the team (and
// clearing every one of its joiners' pending-join lists) if they were the
// last member. Grounded on team.rs's TeamRepo::quit_team.
func (r *TeamRepo) Leave(requester world.PlayerID) error {
	teamID := r.TeamOf(requester)
	if teamID == world.TeamIDInvalid {
		return errNotInTeam
	}
	delete(r.teamOf, requester)
	team := r.teams[teamID]
	i := indexOf(team.Members, requester)
	if i < 0 {
		return errNotInTeam
	}
	team.Members = removeAt(team.Members, i)
	if len(team.Members) == 0 {
		for _, joiner := range team.Joiners {
			r.removeJoin(joiner, teamID)
		}
		delete(r.teams, teamID)
	}
	return nil
}

// LeaveOnDisconnect is Leave's non-erroring variant, used by
// Repo.PruneSessions when a player stops being live and must vacate their
// team without the caller needing to check an error it can't act on.
func (r *TeamRepo) LeaveOnDisconnect(teamID world.TeamID, id world.PlayerID) {
	if r.TeamOf(id) == teamID {
		_ = r.Leave(id)
	}
}

// CleanupPlayer removes a departing player from every team role: their own
// membership/joins, and anyone else's joiner lists that still name them.
// Must run before the player id is forgotten entirely.
func (r *TeamRepo) CleanupPlayer(id world.PlayerID) {
	_ = r.Leave(id)
	for _, t := range r.teams {
		if i := indexOf(t.Joiners, id); i >= 0 {
			t.Joiners = removeAt(t.Joiners, i)
		}
	}
	delete(r.joins, id)
}

func (r *TeamRepo) removeJoin(id world.PlayerID, teamID world.TeamID) {
	pending := r.joins[id]
	if i := indexOfTeam(pending, teamID); i >= 0 {
		pending = append(pending[:i], pending[i+1:]...)
	}
	if len(pending) == 0 {
		delete(r.joins, id)
	} else {
		r.joins[id] = pending
	}
}

func indexOfTeam(ids []world.TeamID, id world.TeamID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// assignTeamAndCancelJoins transitions a solo player to teamed, revoking
// every other pending join request they had outstanding (joining one team
// implicitly withdraws every other request). Grounded on team.rs's
// TeamRepo::assign_team_and_cancel_joins.
func (r *TeamRepo) assignTeamAndCancelJoins(id world.PlayerID, teamID world.TeamID) {
	pending := r.joins[id]
	delete(r.joins, id)
	r.teamOf[id] = teamID
	for _, otherTeamID := range pending {
		if otherTeamID == teamID {
			continue
		}
		if t := r.teams[otherTeamID]; t != nil {
			if i := indexOf(t.Joiners, id); i >= 0 {
				t.Joiners = removeAt(t.Joiners, i)
			}
		}
	}
}
