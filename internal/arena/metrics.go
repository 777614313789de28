// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import "github.com/prometheus/client_golang/prometheus"

// Metrics for the arena loop's per-phase timings, replacing the teacher's
// ad hoc timeFunction/funcBench debug counters (server/debug.go) with
// package-level collectors registered once at process start, the idiom
// bayleafwalker-bindery-core's controllers/metrics.go uses for its
// reconcile-loop timings.
var (
	tickPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_tick_phase_duration_seconds",
			Help:    "Time spent in each phase of one arena tick.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_connected_clients",
			Help: "Number of clients currently in the Connected state.",
		},
	)

	chatMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_chat_messages_delivered_total",
			Help: "Chat messages that passed moderation and were queued for delivery.",
		},
	)

	chatMessagesBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_chat_messages_blocked_total",
			Help: "Chat messages blocked by moderation or spam heuristics.",
		},
	)

	commandsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_commands_dropped_total",
			Help: "Inbound Dispatch commands dropped, labeled by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(tickPhaseDuration, connectedClients, chatMessagesDelivered, chatMessagesBlocked, commandsDropped)
}
