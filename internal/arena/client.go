// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package arena is the per-game-instance runtime: the explicit client
// connection state machine (spec.md §4.7), chat/liveboard/leaderboard
// delivery (§4.8) and the fixed-rate tick loop that drives them together
// with internal/world and internal/replication (§4.11). Grounded on
// server/client.go, server/hub.go, server/chat_history.go,
// server/leaderboard.go and engine/game_server/src/client.rs.
package arena

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// Status is the client connection state. Grounded on
// engine/game_server/src/client.rs's ClientStatus enum, restored from the
// teacher's own collapsed register/unregister/despawn (which has no Limbo
// window: a dropped socket is despawned immediately) per spec.md §4.7.
type Status int

const (
	// StatusPending: authenticated, no websocket registered yet.
	StatusPending Status = iota
	// StatusConnected: websocket open, receiving Updates every tick.
	StatusConnected
	// StatusLimbo: socket closed, game state preserved for reconnection.
	StatusLimbo
	// StatusLeavingLimbo: limbo expired, player-left callback in flight.
	StatusLeavingLimbo
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConnected:
		return "connected"
	case StatusLimbo:
		return "limbo"
	case StatusLeavingLimbo:
		return "leaving_limbo"
	default:
		return "unknown"
	}
}

// PendingExpiry bounds how long a Pending client may go without a websocket
// registering before it is forgotten. Grounded on client.rs's
// `Instant::now() + Duration::from_secs(10)`.
const PendingExpiry = 10 * time.Second

// LimboExpiry is how long a dropped socket's game state survives awaiting
// reconnection. spec.md §4.7 names this "LIMBO (e.g. 5 s)".
const LimboExpiry = 5 * time.Second

// Outbound is anything enqueued for delivery to one client's websocket.
// internal/arena only ever enqueues replication.Update payloads and
// one-off session/client notices; the transport (akin to the teacher's
// spoke.go) is responsible for marshaling and writing them.
type Outbound = any

// Sender is the registered websocket's write side, analogous to client.rs's
// ClientAddr (an UnboundedSender<ObserverUpdate<Update<...>>>) but named by
// what it does rather than tied to a channel type, so any transport
// (real websocket, in-process test double) can implement it.
type Sender interface {
	Send(msg Outbound)
}

// Client is one real player's connection bookkeeping: the status machine
// plus whatever session/player identity it was authenticated with.
// Grounded on client.rs's PlayerClientData, trimmed of fields
// internal/session or internal/world already own.
type Client struct {
	mu sync.Mutex

	PlayerID  world.PlayerID
	SessionID session.SessionID
	ArenaID   session.ArenaID
	IP        net.IP
	Moderator bool

	status Status
	// expiry is read by Prune: a Pending deadline or a Limbo deadline,
	// depending on status. Unused in Connected/LeavingLimbo.
	expiry time.Time
	// since records when LeavingLimbo began, for the same-tick invariant
	// client.rs documents (`since.elapsed() < Duration::from_secs(1)`).
	since time.Time

	sender Sender // set only while Connected; nil otherwise
}

// Send delivers msg to the client's websocket if one is currently
// registered (a no-op in every other status, matching client.rs's
// Connected-only send sites).
func (c *Client) Send(msg Outbound) {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender != nil {
		sender.Send(msg)
	}
}

// Status reports the client's current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// newPendingClient constructs a freshly authenticated, not-yet-connected
// Client.
func newPendingClient(playerID world.PlayerID, arenaID session.ArenaID, sessionID session.SessionID, ip net.IP) *Client {
	return &Client{
		PlayerID: playerID, ArenaID: arenaID, SessionID: sessionID, IP: ip,
		status: StatusPending, expiry: time.Now().Add(PendingExpiry),
	}
}

// Registry tracks every live Client by player id, and the per-IP
// authenticate rate limiter gating new ones.
type Registry struct {
	mu      sync.Mutex
	clients map[world.PlayerID]*Client

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	// fallback is the teacher's bare map[string]int connection counter
	// (server/http.go's ipConns), used for any IP first seen after the
	// rate.Limiter map already holds more than 1<<16 entries (that map is
	// never pruned). Such an IP gets authBurst attempts in total, with no
	// refill. Kept as belt-and-suspenders, not the primary gate.
	fallback map[string]int

	authLimit rate.Limit
	authBurst int
}

// NewRegistry returns an empty Registry whose authenticate calls are
// token-bucket limited to authPerSecond sustained / authBurst burst per IP.
func NewRegistry(authPerSecond float64, authBurst int) *Registry {
	return &Registry{
		clients:   make(map[world.PlayerID]*Client),
		limiters:  make(map[string]*rate.Limiter),
		fallback:  make(map[string]int),
		authLimit: rate.Limit(authPerSecond),
		authBurst: authBurst,
	}
}

// allowAuthenticate reports whether ip may attempt another Authenticate
// call right now, consuming one token if so. Grounded on client.rs's
// `authenticate_rate_limiter.should_limit_rate(msg.ip_address)`.
func (r *Registry) allowAuthenticate(ip string) bool {
	if ip == "" {
		return true // unknown IP (e.g. unit tests, direct dial) isn't gated
	}
	r.limiterMu.Lock()
	defer r.limiterMu.Unlock()

	lim, ok := r.limiters[ip]
	if !ok {
		if len(r.limiters) > 1<<16 {
			// Defensive cap mirroring the teacher's raw counter map: refuse
			// to grow the limiter table without bound under a distributed
			// flood instead of allocating a limiter per forged source IP.
			r.fallback[ip]++
			return r.fallback[ip] <= r.authBurst
		}
		lim = rate.NewLimiter(r.authLimit, r.authBurst)
		r.limiters[ip] = lim
	}
	return lim.Allow()
}

// Authenticate validates ip against the rate limiter, then delegates
// session/player allocation to sessions.CreateSession. Grounded on
// client.rs's Handler<Authenticate>, minus the Discord OAuth2 exchange
// (delegated to an external collaborator per spec.md §4.7 — the moderator
// flag it can set is a constructor parameter here instead).
func (r *Registry) Authenticate(
	sessions *session.Repo,
	gameID string,
	ip net.IP,
	referrer session.Referrer,
	invitation *session.Invitation,
	saved *struct {
		ArenaID   session.ArenaID
		SessionID session.SessionID
	},
	userAgent session.UserAgentID,
	moderator bool,
) (*Client, bool) {
	ipStr := ""
	if ip != nil {
		ipStr = ip.String()
	}
	if !r.allowAuthenticate(ipStr) {
		return nil, false
	}

	arenaID, sessionID, playerID, _, ok := sessions.CreateSession(gameID, invitation, referrer, saved, userAgent)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[playerID]; ok {
		// Renewed an in-memory session: keep the existing Client object (and
		// whatever connection it has) rather than replacing it, matching
		// client.rs's Entry::Occupied branch.
		existing.mu.Lock()
		existing.Moderator = existing.Moderator || moderator
		existing.mu.Unlock()
		return existing, true
	}

	client := newPendingClient(playerID, arenaID, sessionID, ip)
	client.Moderator = moderator
	r.clients[playerID] = client
	return client, true
}

// Register transitions a Client to Connected, recording conn as its
// outbound sink. Returns the previous status, so the caller (the arena
// loop) knows whether to re-run player-joined bookkeeping (Pending or
// LeavingLimbo) or merely retire a stale connection (already Connected).
// Grounded on client.rs's ClientRepo::register.
func (r *Registry) Register(playerID world.PlayerID, sender Sender) (previous Status, ok bool) {
	r.mu.Lock()
	client, ok := r.clients[playerID]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	previous = client.status
	client.status = StatusConnected
	client.sender = sender
	client.expiry = time.Time{}
	return previous, true
}

// Unregister transitions a Connected Client to Limbo. No-op if the client
// is already disconnected (another connection may have since replaced and
// then dropped it), matching client.rs's same_channel guard.
func (r *Registry) Unregister(playerID world.PlayerID, sender Sender) {
	r.mu.Lock()
	client, ok := r.clients[playerID]
	r.mu.Unlock()
	if !ok {
		return
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.status == StatusConnected && client.sender == sender {
		client.status = StatusLimbo
		client.expiry = time.Now().Add(LimboExpiry)
		client.sender = nil
	}
}

// Get returns the live Client for playerID, if any.
func (r *Registry) Get(playerID world.PlayerID) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[playerID]
	return c, ok
}

// Connected reports whether playerID currently has an open websocket.
func (r *Registry) Connected(playerID world.PlayerID) bool {
	c, ok := r.Get(playerID)
	return ok && c.Status() == StatusConnected
}

// ForEachConnected calls fn once per currently-Connected client. Grounded
// on client.rs's `ClientRepo::update`'s filter over ClientStatus::Connected.
func (r *Registry) ForEachConnected(fn func(*Client)) {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	for _, c := range snapshot {
		if c.Status() == StatusConnected {
			fn(c)
		}
	}
}

// Prune advances Pending clients past PendingExpiry and Limbo clients past
// LimboExpiry into LeavingLimbo, then forgets any LeavingLimbo client
// onLeft reports as finished (its game-side cleanup, e.g. despawn and
// metrics stop-visit, already ran). Grounded on client.rs's
// `ClientRepo::prune`'s three-way status match.
func (r *Registry) Prune(onLeft func(playerID world.PlayerID), isDone func(playerID world.PlayerID) bool) {
	now := time.Now()

	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	var toForget []world.PlayerID
	for _, c := range snapshot {
		c.mu.Lock()
		switch c.status {
		case StatusPending:
			if now.After(c.expiry) {
				toForget = append(toForget, c.PlayerID)
			}
		case StatusLimbo:
			if now.After(c.expiry) {
				c.status = StatusLeavingLimbo
				c.since = now
				c.mu.Unlock()
				onLeft(c.PlayerID)
				continue
			}
		case StatusLeavingLimbo:
			if isDone(c.PlayerID) {
				toForget = append(toForget, c.PlayerID)
			}
		}
		c.mu.Unlock()
	}

	if len(toForget) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range toForget {
		delete(r.clients, id)
	}
	r.mu.Unlock()
}
