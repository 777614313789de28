// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"net"
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

type recordingSender struct{ sent []Outbound }

func (s *recordingSender) Send(msg Outbound) { s.sent = append(s.sent, msg) }

func TestRegistry_AuthenticateThenRegisterConnects(t *testing.T) {
	sessions := session.NewRepo()
	r := NewRegistry(100, 10)

	c, ok := r.Authenticate(sessions, "mk48arena", net.ParseIP("1.2.3.4"), "", nil, nil, session.UserAgentBrowser, false)
	if !ok {
		t.Fatalf("expected Authenticate to succeed")
	}
	if c.Status() != StatusPending {
		t.Fatalf("expected a freshly authenticated client to be Pending, got %v", c.Status())
	}

	sender := &recordingSender{}
	prev, ok := r.Register(c.PlayerID, sender)
	if !ok || prev != StatusPending {
		t.Fatalf("expected Register to report previous status Pending, got %v, ok=%v", prev, ok)
	}
	if !r.Connected(c.PlayerID) {
		t.Fatalf("expected client to be Connected after Register")
	}

	c.Send("hello")
	if len(sender.sent) != 1 || sender.sent[0] != "hello" {
		t.Fatalf("expected Send to forward to the registered sender, got %v", sender.sent)
	}
}

func TestRegistry_UnregisterEntersLimbo(t *testing.T) {
	sessions := session.NewRepo()
	r := NewRegistry(100, 10)
	c, _ := r.Authenticate(sessions, "mk48arena", nil, "", nil, nil, session.UserAgentBrowser, false)
	sender := &recordingSender{}
	r.Register(c.PlayerID, sender)

	r.Unregister(c.PlayerID, sender)
	if c.Status() != StatusLimbo {
		t.Fatalf("expected Limbo after Unregister, got %v", c.Status())
	}

	// A stale sender from a since-replaced connection must not regress an
	// already-Connected client back into Limbo.
	other := &recordingSender{}
	r.Register(c.PlayerID, other)
	r.Unregister(c.PlayerID, sender)
	if c.Status() != StatusConnected {
		t.Fatalf("expected Connected to survive an Unregister from a stale sender, got %v", c.Status())
	}
}

func TestRegistry_PruneAdvancesPendingAndLimbo(t *testing.T) {
	sessions := session.NewRepo()
	r := NewRegistry(100, 10)
	c, _ := r.Authenticate(sessions, "mk48arena", nil, "", nil, nil, session.UserAgentBrowser, false)
	c.expiry = time.Now().Add(-time.Second) // force Pending expiry without sleeping

	var left []world.PlayerID
	r.Prune(func(id world.PlayerID) { left = append(left, id) }, func(world.PlayerID) bool { return true })

	if _, ok := r.Get(c.PlayerID); ok {
		t.Fatalf("expected an expired Pending client to be forgotten")
	}
	if len(left) != 0 {
		t.Fatalf("expected Pending expiry not to call onLeft (no game state to clean up), got %v", left)
	}
}

func TestRegistry_PruneRunsLimboThenLeavingLimbo(t *testing.T) {
	sessions := session.NewRepo()
	r := NewRegistry(100, 10)
	c, _ := r.Authenticate(sessions, "mk48arena", nil, "", nil, nil, session.UserAgentBrowser, false)
	sender := &recordingSender{}
	r.Register(c.PlayerID, sender)
	r.Unregister(c.PlayerID, sender)
	c.expiry = time.Now().Add(-time.Second) // force Limbo expiry

	var left []world.PlayerID
	done := false
	r.Prune(func(id world.PlayerID) { left = append(left, id) }, func(world.PlayerID) bool { return done })
	if len(left) != 1 || left[0] != c.PlayerID {
		t.Fatalf("expected onLeft to fire once for the expired Limbo client, got %v", left)
	}
	if c.Status() != StatusLeavingLimbo {
		t.Fatalf("expected LeavingLimbo after Limbo expiry, got %v", c.Status())
	}

	r.Prune(func(world.PlayerID) {}, func(world.PlayerID) bool { return false })
	if _, ok := r.Get(c.PlayerID); !ok {
		t.Fatalf("expected LeavingLimbo client to survive while isDone reports false")
	}

	done = true
	r.Prune(func(world.PlayerID) {}, func(world.PlayerID) bool { return done })
	if _, ok := r.Get(c.PlayerID); ok {
		t.Fatalf("expected LeavingLimbo client to be forgotten once isDone reports true")
	}
}

func TestRegistry_AllowAuthenticateRateLimits(t *testing.T) {
	r := NewRegistry(0, 2) // no refill, burst of 2
	ip := net.ParseIP("5.6.7.8")
	if !r.allowAuthenticate(ip.String()) || !r.allowAuthenticate(ip.String()) {
		t.Fatalf("expected the first two authenticate attempts to be allowed")
	}
	if r.allowAuthenticate(ip.String()) {
		t.Fatalf("expected the third attempt within burst+0 refill to be denied")
	}
}
