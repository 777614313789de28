// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/guregu/dynamo"
)

// DynamoDBDatabase is the production Database, grounded directly on
// cloud/db.DynamoDBDatabase: one table per record kind, player_id as the
// dynamo range key so a game_id+period partition can be scanned in score
// order via a GSI (query shape kept identical to the teacher's
// ReadScoresByType, generalized from its single implicit "type" partition
// to an explicit (game_id, period) one per spec.md's daily/weekly/all-time
// rollups).
type DynamoDBDatabase struct {
	svc           *dynamodb.DynamoDB
	db            *dynamo.DB
	sessionsTable dynamo.Table
	scoresTable   dynamo.Table
	serversTable  dynamo.Table
}

// NewDynamoDBDatabase opens table handles under the mk48arena-<stage>-*
// naming the teacher used for its own mk48-<stage>-* tables.
func NewDynamoDBDatabase(sess *session.Session, stage string) (*DynamoDBDatabase, error) {
	ddb := &DynamoDBDatabase{svc: dynamodb.New(sess)}
	ddb.db = dynamo.NewFromIface(ddb.svc)
	ddb.sessionsTable = ddb.db.Table("mk48arena-" + stage + "-sessions")
	ddb.scoresTable = ddb.db.Table("mk48arena-" + stage + "-scores")
	ddb.serversTable = ddb.db.Table("mk48arena-" + stage + "-servers")
	return ddb, nil
}

type sessionRow struct {
	ArenaSession   string // "<arena_id>#<session_id>" partition key
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
	DateCreated    int64
	DatePrevious   int64
	DateRenewed    int64
	DateTerminated int64
}

func sessionKey(arenaID uint32, sessionID uint64) string {
	return dynamoUint(arenaID) + "#" + dynamoUint(sessionID)
}

func dynamoUint(v uint64) string {
	const hex = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 0, 16)
	for v > 0 {
		buf = append([]byte{hex[v%16]}, buf...)
		v /= 16
	}
	return string(buf)
}

func (ddb *DynamoDBDatabase) PutSession(ctx context.Context, item SessionItem) error {
	row := sessionRow{
		ArenaSession: sessionKey(item.ArenaID, item.SessionID),
		ArenaID:      item.ArenaID, SessionID: item.SessionID, PlayerID: item.PlayerID,
		ServerID: item.ServerID, CohortID: item.CohortID, GameID: item.GameID, Alias: item.Alias, Moderator: item.Moderator,
		Plays: item.Plays, PreviousID: item.PreviousID, UserAgentID: item.UserAgentID, Referrer: item.Referrer,
		DateCreated: unixMillis(item.DateCreated), DatePrevious: unixMillis(item.DatePrevious),
		DateRenewed: unixMillis(item.DateRenewed), DateTerminated: unixMillis(item.DateTerminated),
	}
	return ddb.sessionsTable.Put(row).RunWithContext(ctx)
}

func (ddb *DynamoDBDatabase) GetSession(ctx context.Context, arenaID uint32, sessionID uint64) (SessionItem, bool, error) {
	var row sessionRow
	err := ddb.sessionsTable.Get("ArenaSession", sessionKey(arenaID, sessionID)).OneWithContext(ctx, &row)
	if err == dynamo.ErrNotFound {
		return SessionItem{}, false, nil
	}
	if err != nil {
		return SessionItem{}, false, err
	}
	return SessionItem{
		ArenaID: row.ArenaID, SessionID: row.SessionID, PlayerID: row.PlayerID, ServerID: row.ServerID,
		CohortID: row.CohortID,
		GameID: row.GameID, Alias: row.Alias, Moderator: row.Moderator, Plays: row.Plays,
		PreviousID: row.PreviousID, UserAgentID: row.UserAgentID, Referrer: row.Referrer,
		DateCreated: millisToTime(row.DateCreated), DatePrevious: millisToTime(row.DatePrevious),
		DateRenewed: millisToTime(row.DateRenewed), DateTerminated: millisToTime(row.DateTerminated),
	}, true, nil
}

type scoreRow struct {
	GameIDPeriod string // partition key "<game_id>#<period>"
	PlayerID     uint32 // range key
	Alias        string
	Score        int
}

func (ddb *DynamoDBDatabase) PutScore(ctx context.Context, score LeaderboardScore) error {
	row := scoreRow{
		GameIDPeriod: string(score.GameID) + "#" + string(score.Period),
		PlayerID:     score.PlayerID, Alias: score.Alias, Score: score.Score,
	}
	return ddb.scoresTable.Put(row).
		If("attribute_not_exists(Score) OR Score < ?", score.Score).
		RunWithContext(ctx)
}

func (ddb *DynamoDBDatabase) TopScores(ctx context.Context, gameID string, period LeaderboardPeriod, count int) ([]LeaderboardScore, error) {
	var rows []scoreRow
	err := ddb.scoresTable.Get("GameIDPeriod", gameID+"#"+string(period)).
		Order(dynamo.Descending).
		Limit(int64(count)).
		AllWithContext(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, LeaderboardScore{GameID: gameID, Period: period, PlayerID: row.PlayerID, Alias: row.Alias, Score: row.Score})
	}
	return out, nil
}

type serverRow struct {
	ServerID    uint8
	Region      string
	PlayerCount int
	UpdatedAt   int64
}

func (ddb *DynamoDBDatabase) PutServer(ctx context.Context, server ServerRecord) error {
	return ddb.serversTable.Put(serverRow{
		ServerID: server.ServerID, Region: server.Region, PlayerCount: server.PlayerCount,
		UpdatedAt: unixMillis(server.UpdatedAt),
	}).RunWithContext(ctx)
}

func (ddb *DynamoDBDatabase) ListServers(ctx context.Context) ([]ServerRecord, error) {
	var rows []serverRow
	if err := ddb.serversTable.Scan().AllWithContext(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]ServerRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ServerRecord{ServerID: row.ServerID, Region: row.Region, PlayerCount: row.PlayerCount, UpdatedAt: millisToTime(row.UpdatedAt)})
	}
	return out, nil
}

// Close is a no-op: the AWS SDK session owns no closable resource, unlike
// the sqlite driver's *sql.DB.
func (ddb *DynamoDBDatabase) Close() error { return nil }

var _ Database = (*DynamoDBDatabase)(nil)
var _ Database = (*SQLiteDatabase)(nil)
