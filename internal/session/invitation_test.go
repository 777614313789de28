// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/world"
)

func TestSignParse_RoundTrips(t *testing.T) {
	secret := []byte("test-secret")
	inv := Invitation{ArenaID: 42, PlayerID: world.PlayerID(7), ServerID: 3}

	id, err := Sign(inv, secret)
	if err != nil {
		t.Fatalf("unexpected error signing: %v", err)
	}
	if id.ServerID != 3 {
		t.Fatalf("expected InvitationID to carry server id 3, got %v", id.ServerID)
	}

	got, err := Parse(id.String(), secret)
	if err != nil {
		t.Fatalf("unexpected error parsing: %v", err)
	}
	if got != inv {
		t.Fatalf("expected round-tripped invitation %+v, got %+v", inv, got)
	}
}

func TestParse_RejectsWrongSecret(t *testing.T) {
	id, err := Sign(Invitation{ArenaID: 1, PlayerID: 1, ServerID: 1}, []byte("correct"))
	if err != nil {
		t.Fatalf("unexpected error signing: %v", err)
	}
	if _, err := Parse(id.String(), []byte("wrong")); err == nil {
		t.Fatalf("expected parse with the wrong secret to fail")
	}
}

func TestInvitationRepo_CreateReplacesPriorOutstandingInvite(t *testing.T) {
	r := newInvitationRepo()
	secret := []byte("s")
	player := world.PlayerID(1)

	first, err := r.Create(1, 1, player, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Create(1, 1, player, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Get(first) != nil {
		t.Fatalf("expected the first invitation to be replaced and no longer retrievable")
	}
	if r.Get(second) == nil {
		t.Fatalf("expected the second invitation to be retrievable")
	}
}
