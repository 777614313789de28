// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/arena"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// dispatchChat resolves sender/recipient entity ids and hands the message
// to the loop's ChatGate. Grounded on server/inbound.go's SendChatMessage
// handler, which does the same sender/recipient entity lookup before
// calling into chat_history.go.
func (s *Server) dispatchChat(c *arena.Client, msg inboundChat) {
	senderEntity := world.EntityIDInvalid
	if p := s.Loop.World.Player(c.PlayerID); p != nil {
		senderEntity = p.EntityID
	}

	to := world.PlayerIDInvalid
	toEntity := world.EntityIDInvalid
	if msg.To != nil {
		to = *msg.To
		if p := s.Loop.World.Player(to); p != nil {
			toEntity = p.EntityID
		}
	}

	s.Loop.Chat.Send(c.ArenaID, c.SessionID, senderEntity, toEntity, c.PlayerID, to, msg.Text, time.Now())
}

// onlinePlayers counts arenaID's currently live sessions, the quorum
// TeamRepo's Join/IsFull/TeamMembersMax need to size a team.
func (s *Server) onlinePlayers() int {
	a := s.Sessions.Arena(s.ArenaID)
	if a == nil {
		return 0
	}
	n := 0
	for _, sess := range a.Sessions {
		if sess.Live {
			n++
		}
	}
	return n
}

// dispatchTeam routes one Team-kind inbound request to the matching
// session.TeamRepo verb. Errors are swallowed into a counter: spec.md §7
// treats an invalid team action (not captain, team full, duplicate name)
// as a client-visible validation error, never a fatal one.
func (s *Server) dispatchTeam(c *arena.Client, msg inboundTeam) {
	a := s.Sessions.Arena(c.ArenaID)
	if a == nil {
		return
	}

	var err error
	switch msg.Action {
	case "create":
		_, err = a.Teams.Create(c.PlayerID, msg.Name, s.onlinePlayers())
	case "join":
		err = a.Teams.Join(c.PlayerID, msg.TeamID)
	case "accept":
		err = a.Teams.AcceptOrReject(c.PlayerID, msg.Target, true, s.onlinePlayers())
	case "reject":
		err = a.Teams.AcceptOrReject(c.PlayerID, msg.Target, false, s.onlinePlayers())
	case "kick":
		err = a.Teams.Kick(c.PlayerID, msg.Target)
	case "promote":
		err = a.Teams.Promote(c.PlayerID, msg.Target)
	case "leave":
		err = a.Teams.Leave(c.PlayerID)
	default:
		unsupportedInboundTotal.WithLabelValues("team:" + msg.Action).Inc()
		return
	}
	if err != nil {
		teamActionErrors.WithLabelValues(msg.Action).Inc()
	}
}

// dispatchInvitation issues a fresh signed invitation for c's player,
// replacing any it already held. The token itself is delivered as a
// clientNotice rather than a dedicated outbound invitation payload, since
// spec.md §6 lists Invitation only as an inbound request kind.
func (s *Server) dispatchInvitation(c *arena.Client) {
	a := s.Sessions.Arena(c.ArenaID)
	if a == nil {
		return
	}
	id, err := a.Invites.Create(c.ArenaID, a.ServerID, c.PlayerID, s.InviteKey)
	if err != nil {
		invitationErrors.Inc()
		return
	}
	c.Send(clientNotice{Alias: id.String()})
}
