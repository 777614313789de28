// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import "testing"

func TestEntityTypeData_ResistanceVariesBySubKind(t *testing.T) {
	c := Current()
	ironDuke := c.Data(c.ParseType("ironDuke"))

	if got := ironDuke.Resistance(c.SubKindTorpedo); got != 0.2 {
		t.Fatalf("expected ironDuke torpedo resistance 0.2, got %f", got)
	}
	if got := ironDuke.Resistance(c.SubKindShell); got != 1 {
		t.Fatalf("expected ironDuke to have no declared shell resistance (1), got %f", got)
	}
}

func TestEntityTypeData_ResistanceDefaultsToOneWhenUndeclared(t *testing.T) {
	c := Current()
	fairmileD := c.Data(c.ParseType("fairmileD"))

	if got := fairmileD.Resistance(c.SubKindTorpedo); got != 1 {
		t.Fatalf("expected a type with no resistance table to take full damage (1), got %f", got)
	}
}
