// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/storage"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// DeltaKind names one of the four delta streams spec.md §4.10
// enumerates: "republishes player/team/liveboard/leaderboard deltas".
// Used directly as the NATS subject (Publisher.Publish's subject
// parameter), so a subscriber can filter by any one stream.
type DeltaKind string

const (
	DeltaPlayer      DeltaKind = "mk48arena.directory.player"
	DeltaTeam        DeltaKind = "mk48arena.directory.team"
	DeltaLiveboard   DeltaKind = "mk48arena.directory.liveboard"
	DeltaLeaderboard DeltaKind = "mk48arena.directory.leaderboard"
)

type playerDelta struct {
	ArenaID session.ArenaID `json:"arena_id"`
	PlayerID world.PlayerID `json:"player_id"`
	Alias    string         `json:"alias"`
	Kind     string         `json:"kind"`
	At       time.Time      `json:"at"`
}

type teamDelta struct {
	ArenaID session.ArenaID  `json:"arena_id"`
	TeamID  world.TeamID     `json:"team_id"`
	Members []world.PlayerID `json:"members"`
	At      time.Time        `json:"at"`
}

type liveboardDelta struct {
	ArenaID  session.ArenaID `json:"arena_id"`
	PlayerID world.PlayerID  `json:"player_id"`
	Alias    string          `json:"alias"`
	Score    *int            `json:"score,omitempty"`
	At       time.Time       `json:"at"`
}

type leaderboardDelta struct {
	GameID string                     `json:"game_id"`
	Period storage.LeaderboardPeriod  `json:"period"`
	Scores []storage.LeaderboardScore `json:"scores"`
	At     time.Time                  `json:"at"`
}
