// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fleet coordinates a set of arena servers into one home-page DNS
// record: peer health probing, region-aware routing, and corroborated
// removal of dead nodes. Grounded on spec.md §4.9 and the teacher's
// server/cloud.go (region/slot bookkeeping, UpdatePeriod) and
// server/cloud/dns/route53.go, neither of which probe siblings — the
// teacher only self-registers, so the probing/selection/corroboration
// machinery here has no direct teacher equivalent and is built from the
// spec's own test vectors (§9's "Home DNS removal with corroboration").
package fleet

import "github.com/SoftbearStudios/mk48arena/internal/session"

// RegionID names one of the fleet's coarse deployment regions, reusing the
// AWS-style region strings the teacher's userData.Region already carries
// (cloud.go's Cloud.region), so a real deployment can pass its existing
// region string straight through unchanged.
type RegionID string

const RegionUnknown RegionID = ""

// continent groups regions close enough that a player rarely notices the
// difference, used only to break distance ties coarser than same-region.
var continent = map[RegionID]string{
	"us-east-1":      "na",
	"us-east-2":      "na",
	"us-west-1":      "na",
	"us-west-2":      "na",
	"ca-central-1":   "na",
	"eu-west-1":      "eu",
	"eu-west-2":      "eu",
	"eu-central-1":   "eu",
	"ap-southeast-1": "ap",
	"ap-southeast-2": "ap",
	"ap-northeast-1": "ap",
	"sa-east-1":      "sa",
}

// RegionDistance scores how far b is from the ideal region a: 0 if equal,
// 1 if merely the same continent, 2 otherwise (including either side being
// unknown). Grounded on spec.md §4.9's "priority = region_distance(...)";
// the three-tier scheme is this module's own choice, since neither spec.md
// nor the teacher specifies actual latency-weighted distances.
func RegionDistance(a, b RegionID) int {
	if a == b {
		return 0
	}
	if a == RegionUnknown || b == RegionUnknown {
		return 2
	}
	if continent[a] != "" && continent[a] == continent[b] {
		return 1
	}
	return 2
}

// GeoIP resolves a client IP to a fleet RegionID (for server selection) and
// a coarse session.Location (for session analytics). Kept as a narrow
// interface — per spec.md's "external collaborator" framing the same way
// internal/catalog treats entity balance data — so a real MaxMind-style
// database can be swapped in without touching the coordinator or selection
// logic that depend on it.
type GeoIP interface {
	Lookup(ip string) (RegionID, session.Location)
}
