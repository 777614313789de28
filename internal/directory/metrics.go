// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import "github.com/prometheus/client_golang/prometheus"

// Grounded on bayleafwalker-bindery-core/controllers/metrics.go's
// package-level-collector-plus-init idiom, same as internal/arena and
// internal/fleet's own metrics.go.
var (
	directoryQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_directory_queries_total",
		Help: "Total cross-server session lookups served by the central directory.",
	})

	directoryEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arenad_directory_events_total",
		Help: "Total events ingested by the central directory, labeled by kind.",
	}, []string{"kind"})

	directoryPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arenad_directory_published_total",
		Help: "Total deltas republished to subscribers, labeled by subject.",
	}, []string{"kind"})

	directoryFlushedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_directory_flushed_total",
		Help: "Total SessionItem write-behind flushes that succeeded.",
	})

	directoryFlushErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arenad_directory_flush_errors_total",
		Help: "Total SessionItem write-behind flushes that failed.",
	})
)

func init() {
	prometheus.MustRegister(
		directoryQueriesTotal,
		directoryEventsTotal,
		directoryPublishedTotal,
		directoryFlushedTotal,
		directoryFlushErrorsTotal,
	)
}
