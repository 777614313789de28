// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	"context"
	"net"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// Record is one A record read back from the provider: name is the full
// host name (e.g. "3.example.com" or the bare "example.com" for the home
// record), ip its current target.
type Record struct {
	Name string
	IP   net.IP
}

// DNS is the provider seam the coordinator programs against. Grounded on
// the teacher's dns.DNS (UpdateRoute only, since it never reads back or
// removes a peer), widened per spec.md §4.9 step 1 ("read DNS records")
// and step 5 ("home record management") to a read/upsert surface a
// one-way self-registration interface cannot support. There is no remove
// method: a peer leaves the home record when UpsertHomeRecord is called
// without its address.
type DNS interface {
	// ReadRecords lists every A record under domain, both per-server
	// ("{server_id}.{domain}") and the home record ("{domain}" itself).
	ReadRecords(ctx context.Context, domain string) ([]Record, error)
	// UpsertServerRecord publishes this server's own address under
	// "{id}.{domain}", refreshed every probe cycle per spec.md §6's
	// "must resolve to exactly one A record" requirement.
	UpsertServerRecord(ctx context.Context, domain string, id session.ServerID, ip net.IP) error
	// UpsertHomeRecord replaces the rotating home record ("{domain}"
	// itself, the empty sub-domain) with exactly the given addresses.
	UpsertHomeRecord(ctx context.Context, domain string, ips []net.IP) error
}
