// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/arena"
	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// Server serves one arena's websocket endpoint and status page. Grounded
// on server/http.go's Hub.ServeIndex/ServeSocket pair, generalized off one
// hard-coded Hub to this module's explicit Loop/Registry/Repo/ArenaID.
type Server struct {
	Loop      *arena.Loop
	Registry  *arena.Registry
	Sessions  *session.Repo
	ArenaID   session.ArenaID
	GameID    string
	AuthCode  string // matches server_main's --auth flag; empty disables moderator grants
	InviteKey []byte // HMAC secret session.Sign/Parse use for Invitation tokens

	Log *zap.SugaredLogger
}

// ServeStatus answers an unauthenticated health/status probe, the same
// role server/http.go's ServeIndex plays for the teacher's status JSON
// (here: internal/fleet's own Coordinator.StatusJSON owns the richer fleet
// status; this endpoint is just "the process is up").
func (s *Server) ServeStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ServeWebsocket upgrades r, authenticates the connection's query
// parameters against internal/session, and registers the resulting
// arena.Client before handing off to its read/write pumps. Grounded on
// server/http.go's ServeSocket, generalized from a raw ipConns counter to
// arena.Registry's own token-bucket authenticate limiter (see
// internal/arena/client.go's allowAuthenticate).
func (s *Server) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var invitation *session.Invitation
	if token := q.Get("invitation"); token != "" && len(s.InviteKey) > 0 {
		if inv, err := session.Parse(token, s.InviteKey); err == nil {
			invitation = &inv
		} else {
			inviteParseErrors.Inc()
		}
	}

	var saved *struct {
		ArenaID   session.ArenaID
		SessionID session.SessionID
	}
	if arenaRaw, sessionRaw := q.Get("savedArenaId"), q.Get("savedSessionId"); arenaRaw != "" && sessionRaw != "" {
		if a, err1 := strconv.ParseUint(arenaRaw, 10, 32); err1 == nil {
			if sid, err2 := strconv.ParseUint(sessionRaw, 10, 64); err2 == nil {
				saved = &struct {
					ArenaID   session.ArenaID
					SessionID session.SessionID
				}{ArenaID: session.ArenaID(a), SessionID: session.SessionID(sid)}
			}
		}
	}

	moderator := s.AuthCode != "" && q.Get("auth") == s.AuthCode
	ip := clientIP(r)
	ua := session.UserAgentUnknown
	if strings.Contains(r.UserAgent(), "Mozilla") {
		ua = session.UserAgentBrowser
	}

	client, ok := s.Registry.Authenticate(s.Sessions, s.GameID, ip, session.Referrer(q.Get("referrer")), invitation, saved, ua, moderator)
	if !ok {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sender := newWSSender(conn, s.Log, nil)
	_, _ = s.Registry.Register(client.PlayerID, sender)
	connectionsAccepted.Inc()

	go sender.writePump()
	sender.readPump(func(env envelope) bool {
		return s.dispatch(client, env)
	})

	s.Registry.Unregister(client.PlayerID, sender)
}

// dispatch routes one decoded inbound envelope to the owning subsystem,
// reporting false only when the connection itself should close (malformed
// kind); an unsupported or semantically invalid request is logged/counted
// and the connection stays open, matching spec.md §7's validation-errors-
// never-fatal rule.
func (s *Server) dispatch(c *arena.Client, env envelope) bool {
	switch env.Type {
	case kindClient:
		var msg inboundClient
		if err := wireCodec.Unmarshal(env.Data, &msg); err != nil {
			inboundErrorsTotal.Inc()
			return true
		}
		if msg.Alias != nil {
			s.Sessions.IdentifySession(c.ArenaID, c.SessionID, *msg.Alias, sanitizeAlias)
		}
		if msg.EntityType != nil {
			if !s.Loop.Spawn(c.PlayerID, *msg.EntityType) {
				unsupportedInboundTotal.WithLabelValues("client:spawn_rejected").Inc()
			}
		}
		if msg.AdTally {
			adTalliesTotal.Inc()
		}

	case kindGame:
		var msg inboundGame
		if err := wireCodec.Unmarshal(env.Data, &msg); err != nil {
			inboundErrorsTotal.Inc()
			return true
		}
		s.Loop.Dispatch(c.PlayerID, arena.Command{Guidance: msg.Guidance, FireIndex: msg.Fire})

	case kindChat:
		var msg inboundChat
		if err := wireCodec.Unmarshal(env.Data, &msg); err != nil {
			inboundErrorsTotal.Inc()
			return true
		}
		s.dispatchChat(c, msg)

	case kindTeam:
		var msg inboundTeam
		if err := wireCodec.Unmarshal(env.Data, &msg); err != nil {
			inboundErrorsTotal.Inc()
			return true
		}
		s.dispatchTeam(c, msg)

	case kindInvitation:
		s.dispatchInvitation(c)

	case kindPlayer:
		// Reserved for moderator actions; decoded for forward wire
		// compatibility but no verb is wired yet (see DESIGN.md).
		var msg inboundPlayer
		_ = wireCodec.Unmarshal(env.Data, &msg)
		unsupportedInboundTotal.WithLabelValues(string(kindPlayer)).Inc()

	default:
		inboundErrorsTotal.Inc()
		return false
	}
	return true
}

// sanitizeAlias trims and bounds an alias the same way session.Repo's own
// callers are expected to (IdentifySession takes the sanitizer as a
// parameter rather than owning one, so transport and any future admin tool
// can share a single policy).
func sanitizeAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	const maxAliasLen = 16
	if len(alias) > maxAliasLen {
		alias = alias[:maxAliasLen]
	}
	if alias == "" {
		alias = "Unnamed"
	}
	return alias
}
