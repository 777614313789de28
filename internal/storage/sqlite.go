// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDatabase is the offline/dev-mode Database, used whenever Cloud
// credentials aren't configured. Schema kept deliberately small: one row
// per session/score/server; sessions and servers are last-write-wins, a
// score row keeps the highest score ever put.
type SQLiteDatabase struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a sqlite-backed Database at dsn, e.g.
// "file:arena.db?cache=shared" or ":memory:" for tests.
func OpenSQLite(dsn string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL: %w", err)
	}
	s := &SQLiteDatabase{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDatabase) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			arena_id INTEGER NOT NULL,
			session_id INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			server_id INTEGER NOT NULL,
			cohort_id INTEGER NOT NULL,
			game_id TEXT NOT NULL,
			alias TEXT NOT NULL,
			moderator INTEGER NOT NULL,
			plays INTEGER NOT NULL,
			previous_id INTEGER NOT NULL,
			user_agent_id INTEGER NOT NULL,
			referrer TEXT NOT NULL,
			date_created INTEGER NOT NULL,
			date_previous INTEGER NOT NULL,
			date_renewed INTEGER NOT NULL,
			date_terminated INTEGER NOT NULL,
			PRIMARY KEY (arena_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			game_id TEXT NOT NULL,
			period TEXT NOT NULL,
			player_id INTEGER NOT NULL,
			alias TEXT NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (game_id, period, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS servers (
			server_id INTEGER PRIMARY KEY,
			region TEXT NOT NULL,
			player_count INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) PutSession(ctx context.Context, item SessionItem) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(arena_id, session_id, player_id, server_id, cohort_id, game_id, alias, moderator, plays, previous_id, user_agent_id, referrer, date_created, date_previous, date_renewed, date_terminated)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(arena_id, session_id) DO UPDATE SET
			player_id=excluded.player_id, server_id=excluded.server_id, cohort_id=excluded.cohort_id, game_id=excluded.game_id,
			alias=excluded.alias, moderator=excluded.moderator, plays=excluded.plays,
			previous_id=excluded.previous_id, user_agent_id=excluded.user_agent_id, referrer=excluded.referrer,
			date_created=excluded.date_created, date_previous=excluded.date_previous,
			date_renewed=excluded.date_renewed, date_terminated=excluded.date_terminated`,
		item.ArenaID, item.SessionID, item.PlayerID, item.ServerID, item.CohortID, item.GameID, item.Alias,
		item.Moderator, item.Plays, item.PreviousID, item.UserAgentID, item.Referrer,
		unixMillis(item.DateCreated), unixMillis(item.DatePrevious), unixMillis(item.DateRenewed), unixMillis(item.DateTerminated))
	if err != nil {
		return fmt.Errorf("storage: put session: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetSession(ctx context.Context, arenaID uint32, sessionID uint64) (SessionItem, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT arena_id, session_id, player_id, server_id, cohort_id, game_id, alias, moderator, plays, previous_id, user_agent_id, referrer, date_created, date_previous, date_renewed, date_terminated
		FROM sessions WHERE arena_id=? AND session_id=?`, arenaID, sessionID)

	var item SessionItem
	var created, previous, renewed, terminated int64
	err := row.Scan(&item.ArenaID, &item.SessionID, &item.PlayerID, &item.ServerID, &item.CohortID, &item.GameID, &item.Alias,
		&item.Moderator, &item.Plays, &item.PreviousID, &item.UserAgentID, &item.Referrer,
		&created, &previous, &renewed, &terminated)
	if err == sql.ErrNoRows {
		return SessionItem{}, false, nil
	}
	if err != nil {
		return SessionItem{}, false, fmt.Errorf("storage: get session: %w", err)
	}
	item.DateCreated = millisToTime(created)
	item.DatePrevious = millisToTime(previous)
	item.DateRenewed = millisToTime(renewed)
	item.DateTerminated = millisToTime(terminated)
	return item, true, nil
}

func (s *SQLiteDatabase) PutScore(ctx context.Context, score LeaderboardScore) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO scores (game_id, period, player_id, alias, score)
		VALUES (?,?,?,?,?)
		ON CONFLICT(game_id, period, player_id) DO UPDATE SET
			alias=excluded.alias, score=CASE WHEN excluded.score > scores.score THEN excluded.score ELSE scores.score END`,
		score.GameID, score.Period, score.PlayerID, score.Alias, score.Score)
	if err != nil {
		return fmt.Errorf("storage: put score: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) TopScores(ctx context.Context, gameID string, period LeaderboardPeriod, count int) ([]LeaderboardScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id, period, player_id, alias, score FROM scores
		WHERE game_id=? AND period=? ORDER BY score DESC LIMIT ?`, gameID, period, count)
	if err != nil {
		return nil, fmt.Errorf("storage: top scores: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardScore
	for rows.Next() {
		var sc LeaderboardScore
		if err := rows.Scan(&sc.GameID, &sc.Period, &sc.PlayerID, &sc.Alias, &sc.Score); err != nil {
			return nil, fmt.Errorf("storage: scan score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) PutServer(ctx context.Context, server ServerRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO servers (server_id, region, player_count, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(server_id) DO UPDATE SET region=excluded.region, player_count=excluded.player_count, updated_at=excluded.updated_at`,
		server.ServerID, server.Region, server.PlayerCount, unixMillis(server.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: put server: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListServers(ctx context.Context) ([]ServerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT server_id, region, player_count, updated_at FROM servers`)
	if err != nil {
		return nil, fmt.Errorf("storage: list servers: %w", err)
	}
	defer rows.Close()

	var out []ServerRecord
	for rows.Next() {
		var rec ServerRecord
		var updated int64
		if err := rows.Scan(&rec.ServerID, &rec.Region, &rec.PlayerCount, &updated); err != nil {
			return nil, fmt.Errorf("storage: scan server: %w", err)
		}
		rec.UpdatedAt = millisToTime(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) Close() error { return s.db.Close() }

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
