// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"net"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// PeerState is one probed server's classification this cycle, per spec.md
// §4.9 step 3.
type PeerState int

const (
	// PeerUnknown is the zero value: a peer that exists in DNS but hasn't
	// been probed yet this run. Kept distinct from PeerUnreachable so a
	// freshly discovered peer doesn't already read as dead before its
	// first probe.
	PeerUnknown PeerState = iota
	// PeerUnreachable means n consecutive probe attempts timed out or
	// connection-refused; n depends on whether the peer shares this
	// server's region (see retryThreshold).
	PeerUnreachable
	// PeerUnhealthy means the peer answered with a parseable
	// advertisement but reported itself unhealthy.
	PeerUnhealthy
	// PeerIncompatible means the peer answered but the body did not parse
	// as a StatusJSON at all (e.g. a different, incompatible build).
	PeerIncompatible
	// PeerHealthy means the peer answered with a parseable advertisement
	// and reported itself healthy.
	PeerHealthy
)

func (s PeerState) String() string {
	switch s {
	case PeerUnknown:
		return "unknown"
	case PeerUnreachable:
		return "unreachable"
	case PeerUnhealthy:
		return "unhealthy"
	case PeerIncompatible:
		return "incompatible"
	case PeerHealthy:
		return "healthy"
	default:
		return "unknown"
	}
}

// Peer is one fleet member's last-known classification plus the retry
// bookkeeping spec.md §4.9 step 4 requires before it is declared dead.
type Peer struct {
	ServerID session.ServerID
	Region   RegionID

	State            PeerState
	Status           StatusJSON
	ConsecutiveFails int
	LastSeen         time.Time
	Redirect         *session.ServerID

	// observedIP is this peer's address as last read back from DNS,
	// refreshed every cycle regardless of whether the probe itself
	// succeeded, so a promoted-home fallback still knows where to point.
	observedIP net.IP
}

// retryThreshold returns how many consecutive failures a peer in region
// peerRegion must accrue (as observed from self's region) before it is
// considered dead: 2 same-region, 3 cross-region, per spec.md §4.9 step 4
// (a same-region peer's health is cheaper to confirm, e.g. over a private
// link, so the fleet waits less before acting on it).
func retryThreshold(self, peerRegion RegionID) int {
	if self == peerRegion {
		return 2
	}
	return 3
}

// eligibleForHome reports whether p may appear on the rotating home
// record: Healthy or Incompatible, and not currently redirecting
// elsewhere. A redirecting peer answered the probe but wants traffic sent
// to Redirect instead of itself, so it must never be promoted to home.
func (p *Peer) eligibleForHome() bool {
	return (p.State == PeerHealthy || p.State == PeerIncompatible) && p.Redirect == nil
}

// recordFailure advances the peer's failure streak and moves it to
// PeerUnreachable once the streak reaches retryThreshold.
func (p *Peer) recordFailure(self RegionID) {
	p.ConsecutiveFails++
	if p.ConsecutiveFails >= retryThreshold(self, p.Region) {
		p.State = PeerUnreachable
	}
}

// recordSuccess resets the failure streak and applies a fresh
// classification from a successfully-received probe response.
func (p *Peer) recordSuccess(now time.Time, status StatusJSON, parsed bool, region RegionID) {
	p.ConsecutiveFails = 0
	p.LastSeen = now
	if region != RegionUnknown {
		p.Region = region
	}
	p.Status = status
	p.Redirect = status.RedirectServerID
	switch {
	case !parsed:
		p.State = PeerIncompatible
	case status.Healthy:
		p.State = PeerHealthy
	default:
		p.State = PeerUnhealthy
	}
}
