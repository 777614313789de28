// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the client↔server wire (spec.md §6): a gorilla/
// websocket connection carrying a single `{type, data}` JSON envelope per
// message, in both directions. Grounded on server/message.go's Message/
// messageJSON split (there, jsoniter's reflection extension infers `type`
// from the Go type name at marshal time and a registry maps it back on
// unmarshal); this package keeps the same envelope shape and the same
// jsoniter codec for speed, but a plain type-switch/registry pair instead
// of a jsoniter extension, since nothing else in this module depends on
// that extension mechanism.
package transport

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/SoftbearStudios/mk48arena/internal/arena"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// kind labels one message's payload shape on the wire, spec.md §6's
// "Outbound message kinds" / "Inbound request kinds" lists.
type kind string

const (
	kindClient      kind = "client"
	kindGame        kind = "game"
	kindChat        kind = "chat"
	kindLeaderboard kind = "leaderboard"
	kindLiveboard   kind = "liveboard"
	kindPlayer      kind = "player"
	kindTeam        kind = "team"
	kindSystem      kind = "system"
	kindEvalSnippet kind = "evalSnippet"
	kindInvitation  kind = "invitation"
)

var wireCodec = jsoniter.ConfigFastest

// envelope is the on-wire shape of every message in both directions.
type envelope struct {
	Type kind            `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// encodeOutbound wraps payload in its envelope, tagging it with kind so the
// receiving client's own type-switch can route it.
func encodeOutbound(k kind, payload any) ([]byte, error) {
	data, err := wireCodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal %s payload: %w", k, err)
	}
	return wireCodec.Marshal(envelope{Type: k, Data: data})
}

// outboundKind classifies an arena.Outbound value (always a concrete type
// this package or internal/replication produced) into its wire kind.
// Grounded on server/message.go's registerOutbound/outboundMessageTypes
// map, replacing its reflection lookup with an explicit switch since this
// module's Outbound set is small and fixed.
func outboundKind(msg arena.Outbound) (kind, bool) {
	switch msg.(type) {
	case clientNotice:
		return kindClient, true
	case chatDelivery:
		return kindChat, true
	case teamNotice:
		return kindTeam, true
	case systemNotice:
		return kindSystem, true
	case evalSnippetNotice:
		return kindEvalSnippet, true
	default:
		// Everything else (replication.Update, liveboard/leaderboard
		// snapshots) is already the concrete payload produced by
		// internal/arena/internal/replication; writePump sends every such
		// payload under kindGame. Nothing assigns kindLiveboard or
		// kindLeaderboard.
		return "", false
	}
}

// clientNotice is an outbound Client-kind message: session lifecycle
// bookkeeping the client must react to (e.g. "you are now a moderator",
// "your session expired"). Grounded on client.rs's ClientUpdate's
// session-lifecycle variants.
type clientNotice struct {
	Alias     string `json:"alias,omitempty"`
	Moderator bool   `json:"moderator,omitempty"`
	Expired   bool   `json:"expired,omitempty"`
}

// chatDelivery is an outbound Chat-kind message: one delivered message.
type chatDelivery struct {
	From world.PlayerID `json:"from"`
	Text string         `json:"text"`
}

// teamNotice is an outbound Team-kind message outside the regular roster
// delta (e.g. a join request the captain must accept/reject).
type teamNotice struct {
	Kind      string         `json:"kind"`
	From      world.PlayerID `json:"from,omitempty"`
	TeamID    world.TeamID   `json:"teamId,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// systemNotice is an outbound System-kind message: a generic operator/
// server-wide banner the client renders verbatim.
type systemNotice struct {
	Message string `json:"message"`
}

// evalSnippetNotice carries the per-cohort eval JS snippet client.rs's
// CohortId picks, spec.md §6's "EvalSnippet" outbound kind.
type evalSnippetNotice struct {
	Snippet string `json:"snippet"`
}

// inboundClient is the Client-kind inbound request: alias rename, spawn
// request, ad-tally, fps sample, debug trace. Grounded on client.rs's
// ClientRequest, whose Spawn(EntityType) variant lives alongside the same
// session-lifecycle requests; ad-tally is accepted and counted but
// otherwise not acted on by this module (ad/monetization tallying is an
// explicit Non-goal), and fps/trace are decoded and ignored.
type inboundClient struct {
	Alias      *string  `json:"alias,omitempty"`
	EntityType *string  `json:"spawn,omitempty"`
	AdTally    bool     `json:"adTally,omitempty"`
	FPS        *float32 `json:"fps,omitempty"`
	Trace      *string  `json:"trace,omitempty"`
}

// inboundGame is the Game-kind inbound request: one tick's command bundle,
// narrowed to guidance/fire per arena.Command (see internal/arena/command.go
// for why pay/altitude_target/hint aren't modeled).
type inboundGame struct {
	Guidance *world.Guidance `json:"guidance,omitempty"`
	Fire     *int            `json:"fire,omitempty"`
}

// inboundChat is the Chat-kind inbound request: a message, optionally
// whispered to one player.
type inboundChat struct {
	Text string          `json:"text"`
	To   *world.PlayerID `json:"to,omitempty"`
}

// inboundTeam is the Team-kind inbound request, covering every
// session.TeamRepo verb a client can invoke.
type inboundTeam struct {
	Action string       `json:"action"` // create|join|accept|reject|kick|promote|leave
	Name   string       `json:"name,omitempty"`
	TeamID world.TeamID `json:"teamId,omitempty"`
	Target world.PlayerID `json:"target,omitempty"`
}

// inboundInvitation is the Invitation-kind inbound request: "give me a
// token to hand to a friend".
type inboundInvitation struct{}

// inboundPlayer is the Player-kind inbound request, reserved for
// operator/moderator actions (e.g. kick/mute another player). No verb is
// implemented: every request decodes but is dropped by dispatch, which
// counts it in unsupportedInboundTotal{kind="player"}.
type inboundPlayer struct {
	Action string         `json:"action"`
	Target world.PlayerID `json:"target,omitempty"`
}
