// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import "github.com/prometheus/client_golang/prometheus"

// Grounded on bayleafwalker-bindery-core/controllers/metrics.go's
// package-level-collector-plus-init idiom, same as internal/arena/metrics.go.
var (
	fleetPeerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arenad_fleet_peer_state",
		Help: "1 for a peer's current classification (unreachable/unhealthy/incompatible/healthy), labeled by server_id and state.",
	}, []string{"server_id", "state"})

	fleetHomeSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arenad_fleet_home_record_size",
		Help: "Number of addresses currently published on the rotating home DNS record.",
	})
)

func init() {
	prometheus.MustRegister(fleetPeerState, fleetHomeSize)
}
