// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// ProbePeriod is how often the coordinator re-reads DNS and probes every
// sibling, per spec.md §4.9's "every RATE seconds (≈50 s)".
const ProbePeriod = 50 * time.Second

// WarmupPeriod is how long a freshly started coordinator waits before it
// will corroborate-remove any peer, per spec.md §4.9 step 5.
const WarmupPeriod = 5 * ProbePeriod

// probeTimeout is the hard per-peer HTTP deadline spec.md §4.9 step 2
// specifies ("short-timeout (16 s)").
const probeTimeout = 16 * time.Second

// Coordinator is one server's view of the fleet: it owns the probe/home-
// record cycle spec.md §4.9 describes end to end. Grounded on
// server/cloud.go's Cloud (region/slot/ip bookkeeping, UpdateServer) with
// the peer-probing and DNS-corroboration logic added, since the teacher
// never looks at its siblings.
type Coordinator struct {
	SelfID     session.ServerID
	SelfRegion RegionID
	SelfIP     net.IP
	Domain     string
	StatusPort int // port /status.json is served on; 0 defaults to 80

	DNS    DNS
	GeoIP  GeoIP
	client *http.Client

	// Advertise returns this instant's self-report (player count, client
	// hash); called fresh on every StatusJSON call so /status.json always
	// reports current data without the coordinator owning arena state
	// directly.
	Advertise func() Advertisement

	log       *zap.SugaredLogger
	startedAt time.Time

	mu    sync.Mutex
	peers map[session.ServerID]*Peer
	// home is the set of peer ServerIDs currently published on the home
	// record. Membership is sticky: a peer already in home stays there
	// even after turning Unreachable until corroborates() and warm-up
	// jointly justify dropping it, per spec.md §4.9 step 5. Without this
	// stickiness, eligibleForHome() alone would already exclude every
	// Unreachable peer and the corroboration rule would never fire.
	home map[session.ServerID]bool
}

// NewCoordinator returns a Coordinator ready to Run. A nil logger falls
// back to a no-op one, matching internal/arena's NewLoop convention.
func NewCoordinator(selfID session.ServerID, selfRegion RegionID, selfIP net.IP, domain string, dns DNS, geo GeoIP, advertise func() Advertisement, log *zap.SugaredLogger) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		SelfID: selfID, SelfRegion: selfRegion, SelfIP: selfIP, Domain: domain,
		DNS: dns, GeoIP: geo, Advertise: advertise,
		client:    &http.Client{Timeout: probeTimeout, Transport: &http.Transport{DisableKeepAlives: true}},
		log:       log,
		startedAt: time.Now(),
		peers:     make(map[session.ServerID]*Peer),
		home:      make(map[session.ServerID]bool),
	}
}

// Run drives the probe cycle at ProbePeriod until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(ProbePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cycle(ctx)
		}
	}
}

// StatusJSON assembles this server's own answer to an inbound GET
// /status.json, per spec.md §6's wire shape: its own health/region/player
// count plus every peer it currently believes is dead, so siblings running
// their own Cycle can corroborate off it.
func (c *Coordinator) StatusJSON() StatusJSON {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dying []session.ServerID
	for id, p := range c.peers {
		if p.State == PeerUnreachable {
			dying = append(dying, id)
		}
	}
	return c.Advertise().toStatusJSON(true, dying)
}

// Cycle runs exactly one probe-classify-corroborate-publish round,
// exposed standalone so it can be driven by Run or invoked directly by
// tests without waiting on a timer.
func (c *Coordinator) Cycle(ctx context.Context) {
	correlation := uuid.New()
	log := c.log.With("correlation_id", correlation.String())

	records, err := c.DNS.ReadRecords(ctx, c.Domain)
	if err != nil {
		log.Errorw("read dns records", "error", err)
		return
	}
	servers := parseServerRecords(records, c.Domain)

	now := time.Now()
	c.mu.Lock()
	for id, ip := range servers {
		if id == c.SelfID {
			continue
		}
		c.probeOne(ctx, id, ip, now, log)
	}
	home := c.computeHomeRecord(now, log)
	c.mu.Unlock()

	if err := c.DNS.UpsertServerRecord(ctx, c.Domain, c.SelfID, c.SelfIP); err != nil {
		log.Errorw("upsert self record", "error", err)
	}
	if err := c.DNS.UpsertHomeRecord(ctx, c.Domain, home); err != nil {
		log.Errorw("upsert home record", "error", err)
	}
	fleetHomeSize.Set(float64(len(home)))
}

// probeOne issues one /status.json GET against id's address and updates
// its Peer classification. Called with c.mu held.
func (c *Coordinator) probeOne(ctx context.Context, id session.ServerID, ip net.IP, now time.Time, log *zap.SugaredLogger) {
	peer, ok := c.peers[id]
	if !ok {
		peer = &Peer{ServerID: id}
		c.peers[id] = peer
	}
	peer.observedIP = ip

	status, parsed, err := c.fetchStatus(ctx, ip)
	if err != nil {
		peer.recordFailure(c.SelfRegion)
		log.Infow("probe failed", "server_id", id, "error", err, "state", peer.State)
		fleetPeerState.WithLabelValues(strconv.Itoa(int(id)), peer.State.String()).Set(1)
		return
	}

	region := status.RegionID
	if region == RegionUnknown && c.GeoIP != nil {
		region, _ = c.GeoIP.Lookup(ip.String())
	}
	peer.recordSuccess(now, status, parsed, region)
	fleetPeerState.WithLabelValues(strconv.Itoa(int(id)), peer.State.String()).Set(1)
}

// fetchStatus performs the actual HTTP GET, per spec.md §4.9 step 2: short
// timeout, HTTP/1.1, Connection: close (enforced by disabling keep-alives
// on the shared client).
func (c *Coordinator) fetchStatus(ctx context.Context, ip net.IP) (StatusJSON, bool, error) {
	port := c.StatusPort
	if port == 0 {
		port = 80
	}
	url := fmt.Sprintf("http://%s:%d/status.json", ip.String(), port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusJSON{}, false, err
	}
	req.Close = true
	req.Header.Set("Connection", "close")

	resp, err := c.client.Do(req)
	if err != nil {
		return StatusJSON{}, false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusJSON{}, false, err
	}

	var status StatusJSON
	if err := json.Unmarshal(body, &status); err != nil {
		return StatusJSON{}, false, nil // reachable, but unparseable: Incompatible, not an error
	}
	return status, true, nil
}

// corroborates reports whether some peer other than dying and self both
// lists dying as one of its own dying_server_ids and satisfies spec.md
// §4.9 step 5's region rule: same region as the dying peer, or a
// different region than self. Called with c.mu held.
func (c *Coordinator) corroborates(dying *Peer) bool {
	for id, p := range c.peers {
		if id == dying.ServerID || id == c.SelfID {
			continue
		}
		if !containsServerID(p.Status.DyingServerIDs, dying.ServerID) {
			continue
		}
		if p.Region == dying.Region || p.Region != c.SelfRegion {
			return true
		}
	}
	return false
}

func containsServerID(ids []session.ServerID, target session.ServerID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// computeHomeRecord updates c.home in place and returns the resulting
// address set: self plus every peer still published to home, falling back
// to the single lowest-ServerId alive peer if that set would otherwise be
// empty. Called with c.mu held.
//
// Membership changes follow spec.md §4.9 step 5 in two separate
// directions: a not-yet-published peer joins home as soon as it's
// eligible (Healthy or Incompatible) — no corroboration is needed to add a
// server, only to declare one dead — while a peer already in home is only
// evicted once it's Unreachable AND warm-up has elapsed AND another peer
// corroborates the death. A peer that regresses from Healthy to Unhealthy
// without ever reaching Unreachable is left in place; spec.md only
// describes a removal rule for "apparently dead" (Unreachable) servers.
func (c *Coordinator) computeHomeRecord(now time.Time, log *zap.SugaredLogger) []net.IP {
	warm := now.Sub(c.startedAt) >= WarmupPeriod

	candidates := []homeCandidate{{id: c.SelfID, ip: c.SelfIP, alive: true}}

	for id, p := range c.peers {
		candidates = append(candidates, homeCandidate{id: id, ip: p.observedIP, alive: p.State != PeerUnreachable})

		switch {
		case !c.home[id] && p.eligibleForHome():
			c.home[id] = true
		case c.home[id] && p.State == PeerUnreachable && warm && c.corroborates(p):
			log.Infow("removing corroborated-dead peer from home record", "server_id", id)
			delete(c.home, id)
		}
	}

	var home []net.IP
	if c.SelfIP != nil {
		home = append(home, c.SelfIP)
	}
	for id := range c.home {
		if p, ok := c.peers[id]; ok && p.observedIP != nil {
			home = append(home, p.observedIP)
		}
	}

	if len(home) == 0 {
		// Promote the lowest ServerId among every still-alive candidate,
		// per spec.md §4.9 step 5's "if home is empty" fallback. In
		// practice self is always appended above, so this only matters if
		// SelfIP is ever left unset.
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })
		for _, cand := range candidates {
			if cand.alive && cand.ip != nil {
				return []net.IP{cand.ip}
			}
		}
	}
	return home
}

// homeCandidate is one server considered for the "if home is empty,
// promote the lowest-ServerId alive server" fallback of spec.md §4.9
// step 5.
type homeCandidate struct {
	id    session.ServerID
	ip    net.IP
	alive bool
}

// parseServerRecords extracts "{server_id}.{domain}" -> ip from the raw
// record list, skipping the bare home record and anything whose leading
// label isn't a valid session.ServerID (0-255).
func parseServerRecords(records []Record, domain string) map[session.ServerID]net.IP {
	out := make(map[session.ServerID]net.IP)
	suffix := "." + domain
	for _, r := range records {
		if !strings.HasSuffix(r.Name, suffix) {
			continue // the home record itself, or unrelated
		}
		label := strings.TrimSuffix(r.Name, suffix)
		n, err := strconv.Atoi(label)
		if err != nil || n < 0 || n > 255 {
			continue
		}
		out[session.ServerID(n)] = r.IP
	}
	return out
}
