// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the durable store behind sessions, leaderboard rollups
// and fleet server records. Grounded on server/cloud/db's DynamoDBDatabase,
// generalized into a Database interface (spec.md names this requirement
// explicitly: "Leaderboards roll up ... in an external store") so a
// modernc.org/sqlite-backed implementation can stand in when a Cloud isn't
// configured (local/offline development), same as the teacher's own Cloud
// falling back to a mock when AWS credentials are absent.
package storage

import (
	"context"
	"time"
)

// SessionItem is the durable record of one session, written by
// internal/directory's write-behind cache and read back by its Lookup.
// Grounded on server_util::database_schema::SessionItem (original_source)
// and the teacher's cloud/db.Score/Server row shapes.
type SessionItem struct {
	ArenaID        uint32
	SessionID      uint64
	PlayerID       uint32
	ServerID       uint8
	CohortID       uint8
	GameID         string
	Alias          string
	Moderator      bool
	Plays          int
	PreviousID     uint64
	UserAgentID    int8
	Referrer       string
	DateCreated    time.Time
	DatePrevious   time.Time
	DateRenewed    time.Time
	DateTerminated time.Time
}

// LeaderboardPeriod names one of the rollup windows a score can be reported
// against. Grounded on spec.md §4.8's "daily/weekly/all-time".
type LeaderboardPeriod string

const (
	PeriodDaily   LeaderboardPeriod = "daily"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodAllTime LeaderboardPeriod = "all_time"
)

// LeaderboardScore is one player's best reported score within a period.
// Grounded on cloud/db.Score.
type LeaderboardScore struct {
	GameID   string
	Period   LeaderboardPeriod
	PlayerID uint32
	Alias    string
	Score    int
}

// ServerRecord is one fleet member's self-reported advertisement, as stored
// by PutServer and listed by ListServers; no other package in this module
// calls either. Grounded on cloud/db.Server.
type ServerRecord struct {
	ServerID   uint8
	Region     string
	PlayerCount int
	UpdatedAt   time.Time
}

// Database is the durable-store seam every persistence-touching package
// (internal/arena for leaderboard rollups, internal/directory for session
// records) programs against, so modernc.org/sqlite and DynamoDB are interchangeable
// at the call site. Grounded on cloud/db.Database's implicit interface
// (DynamoDBDatabase's exported method set), made explicit here per
// SPEC_FULL's C6/C8/C10 "db.Database interface" wiring.
type Database interface {
	PutSession(ctx context.Context, item SessionItem) error
	GetSession(ctx context.Context, arenaID uint32, sessionID uint64) (SessionItem, bool, error)

	PutScore(ctx context.Context, score LeaderboardScore) error
	TopScores(ctx context.Context, gameID string, period LeaderboardPeriod, count int) ([]LeaderboardScore, error)

	PutServer(ctx context.Context, server ServerRecord) error
	ListServers(ctx context.Context) ([]ServerRecord, error)

	Close() error
}
