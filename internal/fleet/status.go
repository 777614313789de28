// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import "github.com/SoftbearStudios/mk48arena/internal/session"

// StatusJSON is the wire shape /status.json must answer with, byte-for-byte
// per spec.md §6: "{ healthy: bool, region_id?, redirect_server_id?,
// client_hash?, player_count?, dying_server_ids: [ServerId] }".
type StatusJSON struct {
	Healthy          bool              `json:"healthy"`
	RegionID         RegionID          `json:"region_id,omitempty"`
	RedirectServerID *session.ServerID `json:"redirect_server_id,omitempty"`
	ClientHash       string            `json:"client_hash,omitempty"`
	PlayerCount      *int              `json:"player_count,omitempty"`
	DyingServerIDs   []session.ServerID `json:"dying_server_ids,omitempty"`
}

// Advertisement is this server's own self-report, assembled on each
// StatusJSON call and served from /status.json (spec.md's "self-reported
// with advertisement"). Outbound probes carry no body, and no ClientHash
// comparison is made against a peer's answer.
type Advertisement struct {
	ServerID    session.ServerID
	Region      RegionID
	PlayerCount int
	ClientHash  string
}

func (a Advertisement) toStatusJSON(healthy bool, dying []session.ServerID) StatusJSON {
	count := a.PlayerCount
	return StatusJSON{
		Healthy:        healthy,
		RegionID:       a.Region,
		ClientHash:     a.ClientHash,
		PlayerCount:    &count,
		DyingServerIDs: dying,
	}
}
