// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

func TestPeer_RecordFailureReachesUnreachableAfterThreshold(t *testing.T) {
	p := &Peer{ServerID: 2, Region: "us-east-1"}
	self := RegionID("us-east-1") // same region: threshold is 2

	p.recordFailure(self)
	if p.State == PeerUnreachable {
		t.Fatalf("expected peer to survive one failure before reaching the 2-failure same-region threshold")
	}
	p.recordFailure(self)
	if p.State != PeerUnreachable {
		t.Fatalf("expected peer to be Unreachable after 2 same-region failures, got %v", p.State)
	}
}

func TestPeer_RecordFailureCrossRegionNeedsThreeTries(t *testing.T) {
	p := &Peer{ServerID: 3, Region: "eu-west-1"}
	self := RegionID("us-east-1")

	p.recordFailure(self)
	p.recordFailure(self)
	if p.State == PeerUnreachable {
		t.Fatalf("expected a cross-region peer to survive 2 failures (threshold is 3)")
	}
	p.recordFailure(self)
	if p.State != PeerUnreachable {
		t.Fatalf("expected Unreachable after the 3rd cross-region failure, got %v", p.State)
	}
}

func TestPeer_RecordSuccessClassifiesHealthyUnhealthyIncompatible(t *testing.T) {
	p := &Peer{ServerID: 1}
	now := time.Now()

	p.recordSuccess(now, StatusJSON{Healthy: true}, true, "us-east-1")
	if p.State != PeerHealthy {
		t.Fatalf("expected Healthy, got %v", p.State)
	}

	p.recordSuccess(now, StatusJSON{Healthy: false}, true, "us-east-1")
	if p.State != PeerUnhealthy {
		t.Fatalf("expected Unhealthy, got %v", p.State)
	}

	p.recordSuccess(now, StatusJSON{}, false, "us-east-1")
	if p.State != PeerIncompatible {
		t.Fatalf("expected Incompatible for an unparseable body, got %v", p.State)
	}
}

func TestPeer_RecordSuccessResetsFailureStreak(t *testing.T) {
	p := &Peer{ServerID: 1, Region: "us-east-1"}
	p.recordFailure("us-east-1")
	p.recordSuccess(time.Now(), StatusJSON{Healthy: true}, true, "us-east-1")
	if p.ConsecutiveFails != 0 {
		t.Fatalf("expected a success to reset the failure streak, got %d", p.ConsecutiveFails)
	}
}

func TestPeer_EligibleForHome(t *testing.T) {
	cases := map[PeerState]bool{
		PeerHealthy:      true,
		PeerIncompatible: true,
		PeerUnhealthy:    false,
		PeerUnreachable:  false,
	}
	for state, want := range cases {
		p := &Peer{State: state}
		if got := p.eligibleForHome(); got != want {
			t.Fatalf("state %v: expected eligibleForHome=%v, got %v", state, want, got)
		}
	}
}

func TestPeer_EligibleForHomeExcludesRedirecting(t *testing.T) {
	other := session.ServerID(9)
	p := &Peer{State: PeerHealthy, Redirect: &other}
	if p.eligibleForHome() {
		t.Fatalf("expected a redirecting peer to be ineligible for home even when Healthy")
	}
}
