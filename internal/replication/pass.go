// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "sort"

// PassDef is one user-defined behavior layer: its own Event type, priority
// ordering, source/destination partition selectors, apply and tick.
// Grounded on actor.rs's PassDef trait. I is the Chain's shared PartitionID
// type; E is this pass's own Event type.
type PassDef[I PartitionID, E any] interface {
	// Name identifies the pass in logs and metrics.
	Name() string

	// Prioritize orders events within one tick; lower runs first.
	Prioritize(event E) int

	// Collapse reports whether this event's kind should be collapsed to
	// just the last one sorted adjacent to it with the same destination.
	// Used for idempotent overwrites (e.g. "set liveboard snapshot").
	Collapse(event E) bool

	// SourcePartitions returns the partitions this event originated from;
	// a client that already fully knows all of them can predict the event
	// itself instead of needing it echoed explicitly.
	SourcePartitions(event E) []I

	// DestinationPartition returns the partition this event affects.
	DestinationPartition(event E) I

	// Apply commits event to state, optionally emitting local-only info.
	Apply(event E, onInfo func(info any))

	// Tick runs this pass's own behavior for the tick, emitting zero or
	// more events via onEvent (which sorting/collapsing happens after).
	Tick(onEvent func(event E), onInfo func(info any))
}

// pass is the Chain's narrow, PartitionID-only view of one registered
// PassDef, letting the chain drive ticking/updates without needing to name
// each pass's own Event type.
type pass[I PartitionID] interface {
	name() string
	// tick runs one tick of this pass. serverEvents is nil on the server
	// (fresh tick) or the network-delivered non-predictable events on the
	// client (a replay of this pass's own Update payload).
	tick(serverEvents any, onInfo func(any))
	// clientUpdate returns this pass's own Update payload for one client,
	// given its current partition knowledge.
	clientUpdate(known map[I]PartitionKnowledge) any
}

// passAdapter implements pass[I] for a concrete PassDef[I,E], owning the
// pending-event buffer actor.rs calls PassContext.pending.
type passAdapter[I PartitionID, E any] struct {
	def     PassDef[I, E]
	pending []E
}

// AddPass registers def as the next pass in chain.
func AddPass[I PartitionID, E any](chain *Chain[I], def PassDef[I, E]) {
	chain.passes = append(chain.passes, &passAdapter[I, E]{def: def})
}

func (p *passAdapter[I, E]) name() string { return p.def.Name() }

func (p *passAdapter[I, E]) tick(serverEvents any, onInfo func(any)) {
	server := serverEvents == nil
	if server {
		p.pending = p.pending[:0]
	} else {
		incoming, _ := serverEvents.([]E)
		p.pending = append(p.pending[:0], incoming...)
	}

	p.def.Tick(func(e E) { p.pending = append(p.pending, e) }, onInfo)

	sort.SliceStable(p.pending, func(i, j int) bool {
		pi, pj := p.pending[i], p.pending[j]
		if a, b := p.def.Prioritize(pi), p.def.Prioritize(pj); a != b {
			return a < b
		}
		return lessSourcePartitions(p.def.SourcePartitions(pi), p.def.SourcePartitions(pj))
	})

	p.applyCollapsed(onInfo, server)
}

// applyCollapsed walks the sorted pending buffer, applying each event
// unless it is marked collapsible and the very next event shares its
// destination and (by type switch key) its kind — in which case only the
// last of the run survives. Grounded on actor.rs's PassDef::apply_all.
func (p *passAdapter[I, E]) applyCollapsed(onInfo func(any), server bool) {
	for i, e := range p.pending {
		if p.def.Collapse(e) && i+1 < len(p.pending) {
			next := p.pending[i+1]
			if p.def.DestinationPartition(e) == p.def.DestinationPartition(next) &&
				sameEventKind(e, next) {
				continue
			}
		}
		p.def.Apply(e, onInfo)
	}
	if !server {
		p.pending = p.pending[:0]
	}
}

func (p *passAdapter[I, E]) clientUpdate(known map[I]PartitionKnowledge) any {
	data := &ClientData[I]{Known: known}
	local := make([]E, 0, len(p.pending))
	for _, e := range p.pending {
		dest := p.def.DestinationPartition(e)
		if !data.knownSince(dest) {
			continue
		}
		needsEcho := false
		for _, src := range p.def.SourcePartitions(e) {
			if !data.predictable(src) {
				needsEcho = true
				break
			}
		}
		if needsEcho {
			local = append(local, e)
		}
	}
	return local
}

// lessSourcePartitions orders two source-partition lists lexicographically,
// the tie-break actor.rs's Pass::sort uses alongside priority.
func lessSourcePartitions[I PartitionID](a, b []I) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if ai, bi := any(a[i]), any(b[i]); ai != bi {
			return lessAny(ai, bi)
		}
	}
	return len(a) < len(b)
}

// Chain is an ordered list of passes sharing one PartitionID space. Every
// tick runs each pass in registration order; each client's Update carries
// one payload per pass, in the same order, analogous to actor.rs's
// recursively nested PassContext::Update tuple flattened into a slice.
type Chain[I PartitionID] struct {
	passes []pass[I]
}

// NewChain returns an empty pass chain.
func NewChain[I PartitionID]() *Chain[I] { return &Chain[I]{} }

// Tick runs every registered pass, in order, for one server tick.
func (c *Chain[I]) Tick(onInfo func(any)) {
	for _, p := range c.passes {
		p.tick(nil, onInfo)
	}
}

// TickClient runs every registered pass using the matching payload from a
// received Update (one entry per pass, same order as registration).
func (c *Chain[I]) TickClient(updates []any, onInfo func(any)) {
	for i, p := range c.passes {
		var payload any
		if i < len(updates) {
			payload = updates[i]
		}
		p.tick(payload, onInfo)
	}
}

// Update returns one Update payload per pass for a client with the given
// partition knowledge.
func (c *Chain[I]) Update(known map[I]PartitionKnowledge) []any {
	out := make([]any, len(c.passes))
	for i, p := range c.passes {
		out[i] = p.clientUpdate(known)
	}
	return out
}
