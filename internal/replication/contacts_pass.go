// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "github.com/SoftbearStudios/mk48arena/internal/world"

// ContactEventKind distinguishes the two notifications the contacts pass
// forwards about a partition (one per entity) beyond its ordinary
// visibility/uncertainty snapshot.
type ContactEventKind int

const (
	// ContactDamaged reports a health change worth an immediate push
	// rather than waiting for the next ordinary snapshot (e.g. a hit that
	// didn't kill, for hit-marker UI).
	ContactDamaged ContactEventKind = iota
	// ContactDied reports a contact's removal and its DeathReason.
	ContactDied
)

// ContactEvent is the contacts pass's Event type. Grounded on
// server/update.go's per-tick death/damage attribution (there folded into
// Player.DeathMessage instead of a dedicated event stream); this module
// routes it through the generic pass machinery so a client that already
// knows both the victim and the attacker can predict the notification
// instead of always waiting for an explicit echo.
type ContactEvent struct {
	Kind   ContactEventKind
	Target world.EntityID
	Source world.EntityID // world.EntityIDInvalid if none (border/terrain)
	Reason world.DeathReason
}

// ContactsPass is the built-in Pass adapted from server/update.go's contact
// visibility math (see Observe/EntityCamera in contacts.go). It never
// predicts events of its own — nothing about who-damaged-whom is derivable
// from a client's local simulation — so its Tick only flushes whatever the
// owning server pushed via Notify since the last tick, and its Apply is a
// pass-through to the caller's onInfo so the replication layer itself never
// has to know about death-message UI formatting.
type ContactsPass struct {
	queued []ContactEvent
}

// NewContactsPass returns an empty contacts pass ready to register on a
// Chain[world.EntityID].
func NewContactsPass() *ContactsPass { return &ContactsPass{} }

// Notify queues e to be emitted on the next Tick. Called by the owner of
// the authoritative world.World once per tick for each death/damage
// Mutation applied that tick, before Chain.Tick runs.
func (p *ContactsPass) Notify(e ContactEvent) { p.queued = append(p.queued, e) }

func (p *ContactsPass) Name() string { return "contacts" }

func (p *ContactsPass) Prioritize(e ContactEvent) int { return int(e.Kind) }

// Collapse keeps only the last queued damage notification per contact per
// tick; a death notification is never collapsed, since exactly one should
// ever exist for a given target in a tick.
func (p *ContactsPass) Collapse(e ContactEvent) bool { return e.Kind == ContactDamaged }

func (p *ContactsPass) SourcePartitions(e ContactEvent) []world.EntityID {
	if e.Source == world.EntityIDInvalid || e.Source == e.Target {
		return nil
	}
	return []world.EntityID{e.Source}
}

func (p *ContactsPass) DestinationPartition(e ContactEvent) world.EntityID { return e.Target }

func (p *ContactsPass) Apply(e ContactEvent, onInfo func(any)) { onInfo(e) }

func (p *ContactsPass) Tick(onEvent func(ContactEvent), _ func(any)) {
	for _, e := range p.queued {
		onEvent(e)
	}
	p.queued = p.queued[:0]
}
