// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// fakeDNS is an in-memory double for DNS, recording every upsert so tests
// can assert on the final published state without a real Route53 zone.
type fakeDNS struct {
	records    []Record
	lastServer map[session.ServerID]net.IP
	lastHome   []net.IP
}

func (f *fakeDNS) ReadRecords(_ context.Context, _ string) ([]Record, error) {
	return f.records, nil
}

func (f *fakeDNS) UpsertServerRecord(_ context.Context, _ string, id session.ServerID, ip net.IP) error {
	if f.lastServer == nil {
		f.lastServer = make(map[session.ServerID]net.IP)
	}
	f.lastServer[id] = ip
	return nil
}

func (f *fakeDNS) UpsertHomeRecord(_ context.Context, _ string, ips []net.IP) error {
	f.lastHome = ips
	return nil
}

// fakeTransport answers /status.json for a fixed set of peer IPs and
// returns a connection error for anything else, standing in for an
// unreachable server without opening a real socket.
type fakeTransport struct {
	bodies map[string]string // ip -> JSON body
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ip := strings.Split(req.URL.Host, ":")[0]
	body, ok := f.bodies[ip]
	if !ok {
		return nil, fmt.Errorf("fake transport: connection refused to %s", ip)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

func newTestCoordinator(selfID session.ServerID, selfRegion RegionID, selfIP net.IP, dns DNS, bodies map[string]string) *Coordinator {
	c := NewCoordinator(selfID, selfRegion, selfIP, "example.com", dns, nil, func() Advertisement {
		return Advertisement{ServerID: selfID, Region: selfRegion, PlayerCount: 1}
	}, nil)
	c.client = &http.Client{Transport: &fakeTransport{bodies: bodies}}
	c.startedAt = time.Now().Add(-2 * WarmupPeriod) // clear warm-up for every test below
	return c
}

func recordName(id session.ServerID, domain string) string {
	return fmt.Sprintf("%d.%s", id, domain)
}

// TestCoordinator_CorroboratedRemovalDropsDeadPeerFromHome reproduces
// spec.md §4.9's own worked example: server 1 (self, us-east-1) sees
// server 2 (us-east-1) go unreachable while server 3 (eu-west-1) reports
// dying_server_ids=[2]. Per the cross-region corroboration rule, server 3
// (a different region than self) corroborating is sufficient, so server 2
// should be dropped from the home record once warm and Unreachable.
func TestCoordinator_CorroboratedRemovalDropsDeadPeerFromHome(t *testing.T) {
	selfIP := net.ParseIP("10.0.0.1")
	peer2IP := net.ParseIP("10.0.0.2")
	peer3IP := net.ParseIP("10.0.0.3")

	dns := &fakeDNS{records: []Record{
		{Name: recordName(1, "example.com"), IP: selfIP},
		{Name: recordName(2, "example.com"), IP: peer2IP},
		{Name: recordName(3, "example.com"), IP: peer3IP},
	}}

	// peer2 first answers healthy from us-east-1, so it joins home and its
	// region is known; its body is then removed so every later probe fails,
	// simulating an unreachable server. peer3 answers healthy and names
	// peer2 as dying.
	bodies := map[string]string{
		peer2IP.String(): `{"healthy":true,"region_id":"us-east-1"}`,
		peer3IP.String(): `{"healthy":true,"region_id":"eu-west-1","dying_server_ids":[2]}`,
	}

	c := newTestCoordinator(1, "us-east-1", selfIP, dns, bodies)
	ctx := context.Background()
	c.Cycle(ctx)
	delete(bodies, peer2IP.String())

	// Same-region threshold is 2 consecutive failures; run two cycles so
	// peer2 actually reaches Unreachable before corroboration is checked.
	c.Cycle(ctx)
	c.Cycle(ctx)

	if state := c.peers[2].State; state != PeerUnreachable {
		t.Fatalf("expected peer 2 to be Unreachable after 2 failed probes, got %v", state)
	}
	if !c.corroborates(c.peers[2]) {
		t.Fatalf("expected peer 3's dying_server_ids=[2] to corroborate peer 2's death")
	}

	var gotIPs []string
	for _, ip := range dns.lastHome {
		gotIPs = append(gotIPs, ip.String())
	}
	foundSelf, foundPeer3, foundPeer2 := false, false, false
	for _, ip := range gotIPs {
		switch ip {
		case selfIP.String():
			foundSelf = true
		case peer3IP.String():
			foundPeer3 = true
		case peer2IP.String():
			foundPeer2 = true
		}
	}
	if !foundSelf || !foundPeer3 {
		t.Fatalf("expected home record to contain self and peer 3, got %v", gotIPs)
	}
	if foundPeer2 {
		t.Fatalf("expected corroborated-dead peer 2 to be dropped from home, got %v", gotIPs)
	}
}

// TestCoordinator_WarmupSuppressesRemovalEvenWithCorroboration confirms
// that a coordinator still inside its warm-up window keeps a corroborated
// dead peer in home rather than dropping it immediately on startup.
func TestCoordinator_WarmupSuppressesRemovalEvenWithCorroboration(t *testing.T) {
	selfIP := net.ParseIP("10.0.0.1")
	peer2IP := net.ParseIP("10.0.0.2")
	peer3IP := net.ParseIP("10.0.0.3")

	dns := &fakeDNS{records: []Record{
		{Name: recordName(1, "example.com"), IP: selfIP},
		{Name: recordName(2, "example.com"), IP: peer2IP},
		{Name: recordName(3, "example.com"), IP: peer3IP},
	}}
	bodies := map[string]string{
		peer2IP.String(): `{"healthy":true,"region_id":"us-east-1"}`,
		peer3IP.String(): `{"healthy":true,"region_id":"eu-west-1","dying_server_ids":[2]}`,
	}

	c := newTestCoordinator(1, "us-east-1", selfIP, dns, bodies)
	c.startedAt = time.Now() // still inside the warm-up window

	ctx := context.Background()
	c.Cycle(ctx) // peer 2 answers healthy once and joins home
	delete(bodies, peer2IP.String())
	c.Cycle(ctx)
	c.Cycle(ctx)

	if state := c.peers[2].State; state != PeerUnreachable {
		t.Fatalf("expected peer 2 to be Unreachable, got %v", state)
	}

	var foundPeer2 bool
	for _, ip := range dns.lastHome {
		if ip.Equal(peer2IP) {
			foundPeer2 = true
		}
	}
	if !foundPeer2 {
		t.Fatalf("expected peer 2 to remain in home during warm-up despite corroboration, got %v", dns.lastHome)
	}
}

// TestCoordinator_UnreachableWithoutCorroborationStaysInHome confirms the
// stickiness half of the rule: an Unreachable peer that nobody else has
// corroborated as dying is not evicted, even once warm.
func TestCoordinator_UnreachableWithoutCorroborationStaysInHome(t *testing.T) {
	selfIP := net.ParseIP("10.0.0.1")
	peer2IP := net.ParseIP("10.0.0.2")

	dns := &fakeDNS{records: []Record{
		{Name: recordName(1, "example.com"), IP: selfIP},
		{Name: recordName(2, "example.com"), IP: peer2IP},
	}}
	bodies := map[string]string{
		peer2IP.String(): `{"healthy":true,"region_id":"us-east-1"}`,
	}

	c := newTestCoordinator(1, "us-east-1", selfIP, dns, bodies)
	ctx := context.Background()

	c.Cycle(ctx) // peer 2 answers healthy once and joins home
	delete(bodies, peer2IP.String())
	c.Cycle(ctx)
	c.Cycle(ctx)

	if state := c.peers[2].State; state != PeerUnreachable {
		t.Fatalf("expected peer 2 to be Unreachable, got %v", state)
	}

	var foundPeer2 bool
	for _, ip := range dns.lastHome {
		if ip.Equal(peer2IP) {
			foundPeer2 = true
		}
	}
	if !foundPeer2 {
		t.Fatalf("expected an uncorroborated Unreachable peer to remain in home, got %v", dns.lastHome)
	}
}

// TestCoordinator_HealthyPeerJoinsHomeWithoutCorroboration confirms that
// adding a newly-healthy peer needs no corroboration at all.
func TestCoordinator_HealthyPeerJoinsHomeWithoutCorroboration(t *testing.T) {
	selfIP := net.ParseIP("10.0.0.1")
	peer2IP := net.ParseIP("10.0.0.2")

	dns := &fakeDNS{records: []Record{
		{Name: recordName(1, "example.com"), IP: selfIP},
		{Name: recordName(2, "example.com"), IP: peer2IP},
	}}
	bodies := map[string]string{
		peer2IP.String(): `{"healthy":true,"region_id":"us-east-1"}`,
	}

	c := newTestCoordinator(1, "us-east-1", selfIP, dns, bodies)
	c.Cycle(context.Background())

	var foundPeer2 bool
	for _, ip := range dns.lastHome {
		if ip.Equal(peer2IP) {
			foundPeer2 = true
		}
	}
	if !foundPeer2 {
		t.Fatalf("expected a healthy peer to join home on its first successful probe, got %v", dns.lastHome)
	}
	if !dns.lastServer[1].Equal(selfIP) {
		t.Fatalf("expected self's own record to be upserted, got %v", dns.lastServer)
	}
}

// TestCoordinator_StatusJSONReportsUnreachablePeersAsDying exercises the
// other half of the loop: StatusJSON must list every currently-Unreachable
// peer so a sibling's Cycle can corroborate off it, per spec.md §6.
func TestCoordinator_StatusJSONReportsUnreachablePeersAsDying(t *testing.T) {
	selfIP := net.ParseIP("10.0.0.1")
	peer2IP := net.ParseIP("10.0.0.2")

	dns := &fakeDNS{records: []Record{
		{Name: recordName(1, "example.com"), IP: selfIP},
		{Name: recordName(2, "example.com"), IP: peer2IP},
	}}

	bodies := map[string]string{
		peer2IP.String(): `{"healthy":true,"region_id":"us-east-1"}`,
	}

	c := newTestCoordinator(1, "us-east-1", selfIP, dns, bodies)
	ctx := context.Background()
	c.Cycle(ctx) // peer 2's region is learned from its one healthy answer
	delete(bodies, peer2IP.String())
	c.Cycle(ctx)
	c.Cycle(ctx)

	status := c.StatusJSON()
	if !status.Healthy {
		t.Fatalf("expected self-report to always be healthy")
	}
	found := false
	for _, id := range status.DyingServerIDs {
		if id == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dying_server_ids to include Unreachable peer 2, got %v", status.DyingServerIDs)
	}
}

// TestParseServerRecords_SkipsHomeAndNonNumericLabels confirms the home
// record itself (and anything with a non-ServerID leading label) is
// filtered out of the per-server address map.
func TestParseServerRecords_SkipsHomeAndNonNumericLabels(t *testing.T) {
	records := []Record{
		{Name: "example.com", IP: net.ParseIP("10.0.0.9")},    // bare home record
		{Name: "www.example.com", IP: net.ParseIP("10.0.0.8")}, // unrelated label
		{Name: "4.example.com", IP: net.ParseIP("10.0.0.4")},
		{Name: "300.example.com", IP: net.ParseIP("10.0.0.5")}, // out of ServerID range
	}
	out := parseServerRecords(records, "example.com")
	if len(out) != 1 {
		t.Fatalf("expected exactly one valid server record, got %v", out)
	}
	if !out[4].Equal(net.ParseIP("10.0.0.4")) {
		t.Fatalf("expected server 4 to resolve to 10.0.0.4, got %v", out[4])
	}
}
