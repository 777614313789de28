// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "time"

// PlayerIDInvalid never denotes a real player.
const PlayerIDInvalid = PlayerID(0)

// PlayerID identifies a Player for the lifetime of an arena. Grounded on
// server/world/player.go's PlayerID, but a randomly allocated number
// (internal/session's allocatePlayerID) instead of a cast pointer address: this module's Player is referenced by id from
// wire messages and the session layer (C6), which need a value stable
// across the owning *Player being garbage collected and re-created.
type PlayerID uint32

// TeamIDInvalid means "no team".
const TeamIDInvalid = TeamID(0)

// TeamID identifies a Team (internal/session owns the full Team type; this
// module only needs the id to decide friendliness).
type TeamID uint32

// SpawnProtection is how long a freshly spawned boat is immune to weapon
// damage (scaled down, not eliminated).
const SpawnProtection = 2 * time.Second

// Player owns zero or one living entity and accumulates score from it.
// Grounded on server/world/player.go's Player/PlayerData, trimmed to the
// fields the physics/interaction pass actually reads or writes — alias
// sanitization, session linkage and persistence live in internal/session.
type Player struct {
	ID       PlayerID
	Alias    string
	TeamID   TeamID
	Score    int
	EntityID EntityID

	DeathReason DeathReason
	DeathTime   time.Time

	SpawnedAt time.Time
}

// Friendly reports whether p and other are the same player or share a team.
func (p *Player) Friendly(other *Player) bool {
	return p == other || (p != nil && other != nil && p.TeamID != TeamIDInvalid && p.TeamID == other.TeamID)
}

// SpawnProtectionMultiplier scales incoming weapon damage down to zero at
// spawn, ramping linearly back to 1 over SpawnProtection.
func (p *Player) SpawnProtectionMultiplier(now time.Time) float32 {
	elapsed := now.Sub(p.SpawnedAt)
	if elapsed >= SpawnProtection {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float32(elapsed) / float32(SpawnProtection)
}
