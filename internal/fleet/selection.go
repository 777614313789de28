// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"math/rand"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// Candidate is one fleet member eligible to host a newly connecting
// client, as seen by server selection (spec.md §4.9's "Server selection").
type Candidate struct {
	ServerID    session.ServerID
	Region      RegionID
	PlayerCount int
}

// SelectionRequest carries the bonuses and preferences spec.md §4.9
// names: "priority = region_distance(ideal_region, server.region) with
// bonuses for requested_server (-1) and invitation_server (-2)".
type SelectionRequest struct {
	IdealRegion      RegionID
	RequestedServer  *session.ServerID
	InvitationServer *session.ServerID
	// LoadDistribute enables the final PRNG tie-break among min-priority,
	// player-count-tied candidates spec.md §4.9 describes.
	LoadDistribute bool
}

// priority computes one candidate's routing score: lower wins. Grounded
// directly on spec.md §4.9's formula; requested_server and
// invitation_server bonuses stack since nothing says they're mutually
// exclusive (a captain's invitation could itself name the player's
// already-requested server).
func priority(req SelectionRequest, c Candidate) int {
	p := RegionDistance(req.IdealRegion, c.Region)
	if req.RequestedServer != nil && *req.RequestedServer == c.ServerID {
		p--
	}
	if req.InvitationServer != nil && *req.InvitationServer == c.ServerID {
		p -= 2
	}
	return p
}

// Select picks the best candidate for req, per spec.md §4.9. Returns
// false if candidates is empty. When LoadDistribute is set, ties among
// the minimum-priority group are broken by player count (fewest wins,
// spreading load) and a final PRNG pick among any remainder still tied;
// when unset, the first minimum-priority candidate encountered wins,
// matching a single-region deployment's lack of any need to spread load.
func Select(req SelectionRequest, candidates []Candidate) (session.ServerID, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	best := priority(req, candidates[0])
	for _, c := range candidates[1:] {
		if p := priority(req, c); p < best {
			best = p
		}
	}

	var tied []Candidate
	for _, c := range candidates {
		if priority(req, c) == best {
			tied = append(tied, c)
		}
	}
	if !req.LoadDistribute || len(tied) == 1 {
		return tied[0].ServerID, true
	}

	minPlayers := tied[0].PlayerCount
	for _, c := range tied[1:] {
		if c.PlayerCount < minPlayers {
			minPlayers = c.PlayerCount
		}
	}
	var leastLoaded []Candidate
	for _, c := range tied {
		if c.PlayerCount == minPlayers {
			leastLoaded = append(leastLoaded, c)
		}
	}
	if len(leastLoaded) == 1 {
		return leastLoaded[0].ServerID, true
	}
	return leastLoaded[rand.Intn(len(leastLoaded))].ServerID, true
}
