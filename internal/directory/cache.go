// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/storage"
)

// flushInterval is the write-behind rate limit spec.md §5 names
// explicitly: "Durable store cache: owned by the central directory
// thread; writes are rate-limited (30 s)".
const flushInterval = 30 * time.Second

type sessionKey struct {
	arena   session.ArenaID
	session session.SessionID
}

// sessionCache is the write-behind cache of storage.SessionItem rows: put
// is immediate and in-memory, while the durable write happens at most
// once per flushInterval per dirty key, so a burst of renewals within one
// window costs a single database write, not one per renewal.
type sessionCache struct {
	db  storage.Database
	log *zap.SugaredLogger

	interval time.Duration

	mu    sync.Mutex
	items map[sessionKey]storage.SessionItem
	dirty map[sessionKey]bool
}

func newSessionCache(db storage.Database, interval time.Duration, log *zap.SugaredLogger) *sessionCache {
	return &sessionCache{
		db:       db,
		log:      log,
		interval: interval,
		items:    make(map[sessionKey]storage.SessionItem),
		dirty:    make(map[sessionKey]bool),
	}
}

func (c *sessionCache) put(item storage.SessionItem) {
	key := sessionKey{arena: session.ArenaID(item.ArenaID), session: session.SessionID(item.SessionID)}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item
	c.dirty[key] = true
}

func (c *sessionCache) get(arenaID session.ArenaID, sessionID session.SessionID) (storage.SessionItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[sessionKey{arena: arenaID, session: sessionID}]
	return item, ok
}

// run drives the periodic flush until ctx is cancelled, and performs one
// final flush on exit so a graceful shutdown doesn't lose the last
// interval's writes.
func (c *sessionCache) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

func (c *sessionCache) flush(ctx context.Context) {
	c.mu.Lock()
	pending := make([]storage.SessionItem, 0, len(c.dirty))
	for key := range c.dirty {
		pending = append(pending, c.items[key])
	}
	c.dirty = make(map[sessionKey]bool)
	c.mu.Unlock()

	for _, item := range pending {
		if err := c.db.PutSession(ctx, item); err != nil {
			c.log.Errorw("flush session", "arena_id", item.ArenaID, "session_id", item.SessionID, "error", err)
			directoryFlushErrorsTotal.Inc()
			continue
		}
		directoryFlushedTotal.Inc()
	}
}
