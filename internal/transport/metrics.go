// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import "github.com/prometheus/client_golang/prometheus"

// Grounded on internal/arena and internal/fleet's own
// package-level-collector-plus-init metrics idiom.
var (
	connectionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_transport_connections_accepted_total",
		Help: "Websocket connections that completed Authenticate and upgrade.",
	})

	inboundErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_transport_inbound_errors_total",
		Help: "Inbound messages dropped for a malformed envelope or payload.",
	})

	unsupportedInboundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arenad_transport_unsupported_inbound_total",
		Help: "Inbound requests decoded but not acted on, labeled by kind/action.",
	}, []string{"kind"})

	inviteParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_transport_invitation_parse_errors_total",
		Help: "Invitation query parameters that failed to verify.",
	})

	invitationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_transport_invitation_create_errors_total",
		Help: "Invitation::Create calls that failed (e.g. signing error).",
	})

	teamActionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arenad_transport_team_action_errors_total",
		Help: "Team actions rejected by session.TeamRepo, labeled by action.",
	}, []string{"action"})

	adTalliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_transport_ad_tallies_total",
		Help: "Client-reported ad-tally events (counted only; monetization is out of scope).",
	})
)

func init() {
	prometheus.MustRegister(
		connectionsAccepted,
		inboundErrorsTotal,
		unsupportedInboundTotal,
		inviteParseErrors,
		invitationErrors,
		teamActionErrors,
		adTalliesTotal,
	)
}
