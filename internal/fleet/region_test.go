// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fleet

import "testing"

func TestRegionDistance_SameRegionIsZero(t *testing.T) {
	if d := RegionDistance("us-east-1", "us-east-1"); d != 0 {
		t.Fatalf("expected 0, got %d", d)
	}
}

func TestRegionDistance_SameContinentIsOne(t *testing.T) {
	if d := RegionDistance("us-east-1", "us-west-1"); d != 1 {
		t.Fatalf("expected 1 for two NA regions, got %d", d)
	}
}

func TestRegionDistance_DifferentContinentIsTwo(t *testing.T) {
	if d := RegionDistance("us-east-1", "eu-west-1"); d != 2 {
		t.Fatalf("expected 2 for NA vs EU, got %d", d)
	}
}

func TestRegionDistance_UnknownIsAlwaysTwo(t *testing.T) {
	if d := RegionDistance(RegionUnknown, "us-east-1"); d != 2 {
		t.Fatalf("expected 2 when the ideal region is unknown, got %d", d)
	}
}

func TestEmbeddedGeoIP_LookupResolvesKnownRange(t *testing.T) {
	geo := NewEmbeddedGeoIP()
	region, _ := geo.Lookup("3.1.2.3")
	if region != "us-east-1" {
		t.Fatalf("expected 3.0.0.0/8 to resolve to us-east-1, got %q", region)
	}
}

func TestEmbeddedGeoIP_LookupUnknownAddressReturnsUnknown(t *testing.T) {
	geo := NewEmbeddedGeoIP()
	region, loc := geo.Lookup("203.0.113.1")
	if region != RegionUnknown {
		t.Fatalf("expected an unmapped address to resolve to RegionUnknown, got %q", region)
	}
	if !loc.IsZero() {
		t.Fatalf("expected a zero Location for an unmapped address, got %+v", loc)
	}
}
