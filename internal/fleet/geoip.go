// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import (
	_ "embed"
	"encoding/csv"
	"net"
	"strconv"
	"strings"

	"github.com/SoftbearStudios/mk48arena/internal/session"
)

// embeddedRange is one parsed row of data/ranges.csv: an IP block and the
// RegionID/Location a lookup should resolve it to.
type embeddedRange struct {
	block    *net.IPNet
	region   RegionID
	location session.Location
}

//go:embed data/ranges.csv
var defaultRangesCSV []byte

// embeddedGeoIP is a GeoIP backed by a small compiled-in CIDR table,
// grounded on internal/catalog/loader.go's go:embed-plus-parse-at-init
// idiom (there for entity balance data, here for IP ranges) per
// SPEC_FULL.md's "embedded-database-backed implementation" requirement. A
// real deployment swaps in a MaxMind-backed GeoIP without touching any
// caller, since both satisfy the same narrow interface.
type embeddedGeoIP struct {
	ranges []embeddedRange
}

// NewEmbeddedGeoIP parses the compiled-in range table. Panics on a
// malformed table, the same fail-fast behavior internal/catalog's init
// uses for its own embedded data.
func NewEmbeddedGeoIP() GeoIP {
	g, err := parseRangesCSV(defaultRangesCSV)
	if err != nil {
		panic(err)
	}
	return g
}

func parseRangesCSV(data []byte) (*embeddedGeoIP, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	g := &embeddedGeoIP{}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		_, block, err := net.ParseCIDR(row[0])
		if err != nil {
			return nil, err
		}
		country, _ := strconv.Atoi(row[2])
		subdivision, _ := strconv.Atoi(row[3])
		city, _ := strconv.Atoi(row[4])
		g.ranges = append(g.ranges, embeddedRange{
			block:  block,
			region: RegionID(row[1]),
			location: session.Location{
				Country: uint16(country),
				Region:  uint16(subdivision),
				City:    uint16(city),
			},
		})
	}
	return g, nil
}

// Lookup scans the embedded table linearly; fleet-sized tables (dozens of
// blocks, not millions) make this cheaper and simpler than a radix trie.
func (g *embeddedGeoIP) Lookup(ip string) (RegionID, session.Location) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return RegionUnknown, session.Location{}
	}
	for _, r := range g.ranges {
		if r.block.Contains(parsed) {
			return r.region, r.location
		}
	}
	return RegionUnknown, session.Location{}
}

var _ GeoIP = (*embeddedGeoIP)(nil)
