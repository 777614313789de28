// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "fmt"

// State owns every partition and applies state-level events dispatched
// directly by the server — distinct from a Pass's own Event type, which
// routes through that PassDef's Apply instead. I is the partition id type,
// P the partition content type, SE the state-level event type. Grounded on
// actor.rs's State trait.
type State[I PartitionID, P any, SE any] interface {
	DestinationPartition(event SE) I
	VisitPartitionIDs(visit func(I))
	GetPartition(id I) (P, bool)
	InsertPartition(id I, p P) (old P, hadOld bool)
	RemovePartition(id I) (old P, hadOld bool)
	Apply(event SE, onInfo func(info any))
}

// Complete is one newly-visible partition's full snapshot, sent once when a
// client first learns of it.
type Complete[I PartitionID, P any] struct {
	ID        I
	Partition P
}

// Update is the per-tick, per-client server-to-client message. Grounded on
// actor.rs's Update<S,P> struct.
type Update[I PartitionID, P any, SE any] struct {
	Deletes     []I
	PassUpdates []any
	Events      []SE
	Completes   []Complete[I, P]
	Checksum    uint32
}

// Server is the authoritative replication role: it owns the canonical
// State and dispatches/ticks the shared pass Chain once per tick, then
// computes one Update per connected client. Grounded on actor.rs's
// World<S,P,Server<S>>.
type Server[I PartitionID, P any, SE any] struct {
	State       State[I, P, SE]
	Chain       *Chain[I]
	NewChecksum func() Checksum

	pending []SE // dispatched events awaiting echo to clients this tick
}

// NewServer wires state and chain into a Server role. newChecksum builds a
// fresh accumulator for each Update (typically func() Checksum { return
// &HashChecksum{} }, or func() Checksum { return NoChecksum{} } to disable
// verification).
func NewServer[I PartitionID, P any, SE any](state State[I, P, SE], chain *Chain[I], newChecksum func() Checksum) *Server[I, P, SE] {
	return &Server[I, P, SE]{State: state, Chain: chain, NewChecksum: newChecksum}
}

// Dispatch applies event to state immediately and queues it for echoing to
// any client whose view already includes its destination partition.
func (s *Server[I, P, SE]) Dispatch(event SE, onInfo func(any)) {
	s.pending = append(s.pending, event)
	s.State.Apply(event, onInfo)
}

// Update computes one client's Update for this tick: newly-visible
// partitions become completes (quota-limited), expired ones become
// deletes, dispatched events destined to an already-known partition are
// echoed, and every pass contributes its own Update payload.
func (s *Server[I, P, SE]) Update(data *ClientData[I], visibility []I) Update[I, P, SE] {
	var completes []Complete[I, P]
	for _, id := range visibility {
		if k, ok := data.Known[id]; ok {
			data.Known[id] = PartitionKnowledge{Since: k.Since, Until: PartitionKeepalive}
			continue
		}
		if len(completes) >= CompleteQuota {
			continue
		}
		partition, ok := s.State.GetPartition(id)
		if !ok {
			continue
		}
		data.Known[id] = PartitionKnowledge{Since: 0, Until: PartitionKeepalive}
		completes = append(completes, Complete[I, P]{ID: id, Partition: partition})
	}

	passUpdates := s.Chain.Update(data.Known)

	var events []SE
	for _, e := range s.pending {
		dest := s.State.DestinationPartition(e)
		k, ok := data.Known[dest]
		if ok && k.Until > 0 && k.Since > 0 {
			events = append(events, e)
		}
	}

	var deletes []I
	checksum := s.NewChecksum()
	for id, k := range data.Known {
		if k.Until == 0 {
			delete(data.Known, id)
			deletes = append(deletes, id)
			continue
		}
		data.Known[id] = PartitionKnowledge{Since: satAdd(k.Since), Until: k.Until - 1}
		if partition, ok := s.State.GetPartition(id); ok {
			checksum.Accumulate(id, EncodePartition(partition))
		}
	}

	return Update[I, P, SE]{
		Deletes:     deletes,
		PassUpdates: passUpdates,
		Events:      events,
		Completes:   completes,
		Checksum:    checksum.Value(),
	}
}

// Tick advances the pass chain by one server tick and clears the
// dispatched-event echo buffer (each tick's Update calls happen before the
// next Tick, mirroring the teacher's update-then-tick hub ordering).
func (s *Server[I, P, SE]) Tick(onInfo func(any)) {
	s.pending = nil
	s.Chain.Tick(onInfo)
}

func satAdd(v uint8) uint8 {
	if v == 255 {
		return v
	}
	return v + 1
}

// Client is the replaying role: it owns a (possibly partial) copy of State
// and applies each Update received from a Server. Grounded on actor.rs's
// World<S,P,Client>.
type Client[I PartitionID, P any, SE any] struct {
	State       State[I, P, SE]
	Chain       *Chain[I]
	NewChecksum func() Checksum
}

// NewClient wires state and chain into a Client role.
func NewClient[I PartitionID, P any, SE any](state State[I, P, SE], chain *Chain[I], newChecksum func() Checksum) *Client[I, P, SE] {
	return &Client[I, P, SE]{State: state, Chain: chain, NewChecksum: newChecksum}
}

// DesyncError reports that a client's recomputed checksum disagreed with
// the server's after applying an Update.
type DesyncError struct {
	Want, Got uint32
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("replication: desync, want checksum %08x got %08x", e.Want, e.Got)
}

// Tick applies one received Update: removes deleted partitions, runs the
// pass chain (seeding each pass's predictable events from its Update
// payload and merging in locally predicted ones), applies echoed events,
// inserts newly-completed partitions, then verifies the checksum.
func (c *Client[I, P, SE]) Tick(update Update[I, P, SE], onInfo func(any)) error {
	for _, id := range update.Deletes {
		c.State.RemovePartition(id)
	}

	c.Chain.TickClient(update.PassUpdates, onInfo)

	for _, e := range update.Events {
		c.State.Apply(e, onInfo)
	}

	for _, complete := range update.Completes {
		if _, had := c.State.InsertPartition(complete.ID, complete.Partition); had {
			return fmt.Errorf("replication: complete replaced existing partition %v", complete.ID)
		}
	}

	checksum := c.NewChecksum()
	c.State.VisitPartitionIDs(func(id I) {
		if partition, ok := c.State.GetPartition(id); ok {
			checksum.Accumulate(id, EncodePartition(partition))
		}
	})
	if got := checksum.Value(); got != update.Checksum {
		return &DesyncError{Want: update.Checksum, Got: got}
	}
	return nil
}
