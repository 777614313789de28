// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the arena-spanning identity and social layer: a
// Session tracks one browser's lifetime across reconnects and Play
// entries, a Player (see internal/world) is joined to a Team through this
// package's Repo, and an Invitation lets a captain or solo player pull a
// specific friend into their own arena on a specific server. Grounded on
// original_source/engine/core_server/src/session.rs (Session/Play/Repo)
// and engine/game_server/src/team.rs (Team join/accept/kick/promote),
// with the teacher's server/world/team.go contributing the ordered
// member-list primitive underneath.
package session

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// ArenaIDInvalid never denotes a real arena.
const ArenaIDInvalid = ArenaID(0)

// ArenaID identifies one game instance (one World + its sessions/teams) on
// a server. A server may host several arenas of different games.
type ArenaID uint32

// ServerID identifies one arena server within a fleet (see
// internal/fleet), small enough to fit in an Invitation's high byte.
type ServerID uint8

// CohortID buckets a session into an A/B-test segment (e.g. which eval
// snippet or new-player-experience variant it sees), assigned once at
// session creation and persisted across renewals. Grounded on
// client.rs's CohortId.
type CohortID uint8

// SessionIDInvalid never denotes a real session.
const SessionIDInvalid = SessionID(0)

// SessionID is a 64-bit credential handed to the client and echoed back on
// reconnect. Grounded on session.rs's SessionId(generate_id_64()): 64 bits
// so guessing one is infeasible even across a long-lived fleet.
type SessionID uint64

func (id SessionID) String() string { return strconv.FormatUint(uint64(id), 16) }

// allocateSessionID returns a random, currently-unused SessionID.
// Cryptographically random (not math/rand) because a guessed id hijacks
// another player's session, unlike e.g. a team join code.
func allocateSessionID(used func(SessionID) bool) SessionID {
	for i := 0; i < 10; i++ {
		id := SessionID(randUint64())
		if id == SessionIDInvalid || used(id) {
			continue
		}
		return id
	}
	panic("could not find unique SessionID in 10 tries")
}

// allocatePlayerID mirrors internal/world.AllocateEntityID's retry-loop
// shape for world.PlayerID, the id a Session is permanently bound to.
func allocatePlayerID(used func(world.PlayerID) bool) world.PlayerID {
	for i := 0; i < 10; i++ {
		id := world.PlayerID(randUint64())
		if id == world.PlayerIDInvalid || used(id) {
			continue
		}
		return id
	}
	panic("could not find unique PlayerID in 10 tries")
}

func randUint64() uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(0).SetUint64(1<<63))
	if err != nil {
		panic(err)
	}
	return n.Uint64()<<1 | 1 // never zero
}

// unixMillis truncates t to the same millisecond resolution session.rs's
// UnixTime stores, so equality/comparison in tests and logs is exact.
func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
