// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "github.com/SoftbearStudios/mk48arena/internal/world"

// ContactState is the State implementation for the contacts pass.
//
// actor.rs's State models one canonical copy of every Partition, shared by
// every client. That doesn't hold for Contact: Observe resolves a
// different Contact (uncertainty, known fields) for every viewer, so there
// is no single "ground truth" Partition content to serve from a shared
// store. Instead each viewer's Server gets its own small ContactState,
// rebuilt every tick from that viewer's own BuildVisibility call just
// before Server.Update runs; on the client side, the very same type stores
// whatever Contacts have actually been delivered so far, across ticks,
// exactly the way actor.rs's per-client partition store works. See
// DESIGN.md for why this is a deliberate per-viewer specialization of the
// generic State contract rather than a literal one-world-one-State port.
type ContactState struct {
	contacts map[world.EntityID]Contact
}

// NewContactState returns an empty ContactState.
func NewContactState() *ContactState {
	return &ContactState{contacts: make(map[world.EntityID]Contact)}
}

// Put records c as the current resolved view of one entity, overwriting
// any previous value. Called once per visible entity before Server.Update,
// and by the client after accepting a complete or predicted update.
func (s *ContactState) Put(c Contact) { s.contacts[c.EntityID] = c }

func (s *ContactState) DestinationPartition(event ContactEvent) world.EntityID { return event.Target }

func (s *ContactState) VisitPartitionIDs(visit func(world.EntityID)) {
	for id := range s.contacts {
		visit(id)
	}
}

func (s *ContactState) GetPartition(id world.EntityID) (Contact, bool) {
	c, ok := s.contacts[id]
	return c, ok
}

func (s *ContactState) InsertPartition(id world.EntityID, c Contact) (Contact, bool) {
	old, had := s.contacts[id]
	s.contacts[id] = c
	return old, had
}

func (s *ContactState) RemovePartition(id world.EntityID) (Contact, bool) {
	old, had := s.contacts[id]
	delete(s.contacts, id)
	return old, had
}

// Apply is a no-op: a ContactEvent never itself mutates contact partition
// content (deaths and damage are simulated by internal/world.Mutation; this
// is purely the notification that gets forwarded to the caller via
// onInfo), so nothing needs to change in the partition store here.
func (s *ContactState) Apply(event ContactEvent, onInfo func(any)) { onInfo(event) }

// BuildVisibility resolves every entity within cam's sensor reach of a
// viewer in w, feeding each result into state and returning the set of
// entity ids now visible (the `visibility` argument Server.Update expects).
// Grounded on server/update.go's Hub.updateClient loop over
// ForEntitiesInRadius.
func BuildVisibility(w *world.World, cam Camera, viewer *world.Player, state *ContactState) []world.EntityID {
	maxRange := maxF(cam.Visual, maxF(cam.Radar, cam.Sonar))
	var visible []world.EntityID
	w.ForEntitiesInRadius(cam.Position, maxRange, func(distanceSquared float32, e *world.Entity) bool {
		contact, ok := Observe(cam, viewer, e, distanceSquared)
		if !ok {
			return false
		}
		state.Put(contact)
		visible = append(visible, contact.EntityID)
		return false
	})
	return visible
}
