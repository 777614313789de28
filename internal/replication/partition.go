// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package replication is the generic per-client delta protocol: a world's
// state is split into independently-tracked Partitions, and one or more
// Passes of behavior produce Events against them. Every tick the server
// computes one Update per client (deletes, a pass update, events,
// completes, a checksum); the client applies it and, for any pass whose
// event sources it already knows in full, predicts the same events locally
// instead of waiting for them over the wire.
//
// Grounded on original_source/engine/common_util/src/actor.rs's
// State/Pass/PassDef/Checksum traits, translated from Rust's associated-type
// trait objects into Go generics parameterized on one shared PartitionID
// type per replication Chain (this module's Chain plays the role of
// actor.rs's recursively-nested PassContext chain, but as a flat slice:
// idiomatic Go favors a runtime list over a compile-time-nested generic
// type for an open-ended pass count). The teacher's server/update.go
// (contact visibility/uncertainty math) is kept and adapted in contacts.go
// as the built-in "contacts" pass; chat/team/liveboard are additional
// passes in broadcast.go.
package replication

// PartitionID identifies one disjoint, independently-replicated subset of
// world state (one per visible contact, in the built-in contacts pass).
type PartitionID interface {
	comparable
}

// PartitionKeepalive is how many ticks an Update keeps sending a
// partition's events and checksum contribution after it drops out of a
// client's visibility set, so an Update already in flight when a partition
// vanishes doesn't immediately desync the client. Grounded on actor.rs's
// State::PARTITION_KEEPALIVE default of 5.
const PartitionKeepalive = 5

// CompleteQuota caps how many full partition snapshots ("completes") one
// client receives in a single tick, spreading a reconnecting or
// fast-traveling client's backlog of newly-visible partitions across
// several ticks instead of spiking one frame. Grounded on actor.rs's
// State::COMPLETE_QUOTA (there defaulted to usize::MAX, i.e. unbounded;
// this module picks a concrete finite default since every real caller
// wants the backlog spread out).
const CompleteQuota = 32

// PartitionKnowledge is what the server remembers about one client's view
// of one partition.
type PartitionKnowledge struct {
	Since uint8 // ticks since the partition became (continuously) visible
	Until uint8 // ticks remaining before the partition expires from view
}

// ClientData is the server's per-client replication bookkeeping: its
// current knowledge of every partition it has ever been shown. Grounded on
// actor.rs's ClientData<S>.
type ClientData[I PartitionID] struct {
	Known map[I]PartitionKnowledge
}

// NewClientData returns an empty ClientData ready for its first Update.
func NewClientData[I PartitionID]() *ClientData[I] {
	return &ClientData[I]{Known: make(map[I]PartitionKnowledge)}
}

// knownSince reports whether id has been continuously visible for at least
// one whole tick (since > 0): the threshold actor.rs uses to decide whether
// a destination partition is stable enough to deliver pass events to.
func (d *ClientData[I]) knownSince(id I) bool {
	k, ok := d.Known[id]
	return ok && k.Since > 0
}

// predictable reports whether id is known well enough for the client to be
// trusted to predict events sourced from it locally, instead of requiring
// an explicit echo: known, continuously so (since > 0), and not about to
// expire (until > 0). Matches actor.rs's inverted filter condition exactly
// (there: `since == 0 || until == 0` means NOT predictable).
func (d *ClientData[I]) predictable(id I) bool {
	k, ok := d.Known[id]
	return ok && k.Since > 0 && k.Until > 0
}
