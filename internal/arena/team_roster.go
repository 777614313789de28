// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"github.com/SoftbearStudios/mk48arena/internal/replication"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// TeamRoster recomputes each connected member's visible roster on demand
// and diffs it against what that member's viewing entity was last sent,
// the same diffing discipline Liveboard applies. Grounded on
// server/team.go's Team.Members/Joiners, which the teacher pushes inline
// from each mutating RPC handler instead of recomputing; this module
// instead samples TeamRepo once per rollup tick of the arena loop, since
// internal/session's TeamRepo has no hook of its own to notify on mutation.
type TeamRoster struct {
	pass *replication.TeamPass
	sent map[world.EntityID]string // last delivered roster, joined for a cheap diff
}

// NewTeamRoster wires a diffing roster notifier onto pass.
func NewTeamRoster(pass *replication.TeamPass) *TeamRoster {
	return &TeamRoster{pass: pass, sent: make(map[world.EntityID]string)}
}

// viewer pairs one connected member with the entity their Updates are
// keyed under and their team.
type viewer struct {
	Entity world.EntityID
	Player world.PlayerID
	TeamID world.TeamID
}

// Recompute pushes a fresh TeamRosterEvent to every viewer whose team
// membership actually changed since the last Recompute. viewers must cover
// every connected client currently on a team.
func (tr *TeamRoster) Recompute(teams *session.TeamRepo, viewers []viewer) {
	for _, v := range viewers {
		if v.TeamID == world.TeamIDInvalid {
			tr.Forget(v.Entity)
			continue
		}
		team := teams.Get(v.TeamID)
		if team == nil {
			tr.Forget(v.Entity)
			continue
		}

		key := rosterKey(team.Members)
		if tr.sent[v.Entity] == key {
			continue
		}
		tr.sent[v.Entity] = key

		event := replication.TeamRosterEvent{Destination: v.Entity, TeamID: v.TeamID, Members: team.Members}
		if team.IsCaptain(v.Player) {
			event.JoinCode = teamJoinCode(v.TeamID)
		}
		tr.pass.Notify(event)
	}
}

// Forget drops a departed viewer's cached roster so it doesn't leak.
func (tr *TeamRoster) Forget(viewer world.EntityID) { delete(tr.sent, viewer) }

func rosterKey(members []world.PlayerID) string {
	b := make([]byte, 0, len(members)*5)
	for _, id := range members {
		b = append(b, byte(id), byte(id>>8), byte(id>>16), byte(id>>24), ',')
	}
	return string(b)
}

// teamJoinCode is a placeholder until invitation-style team join codes
// (session.InvitationRepo only models arena-level invitations today) grow
// a team-scoped counterpart; returning the team id's hexadecimal form keeps the
// JoinCode field meaningful for a captain without fabricating a second
// invitation subsystem. See DESIGN.md.
func teamJoinCode(id world.TeamID) string {
	const hex = "0123456789abcdef"
	if id == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = hex[id&0xf]
		id >>= 4
	}
	return string(buf[i:])
}
