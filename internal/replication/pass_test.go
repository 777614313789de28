// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import "testing"

// stringState is a minimal State[int, string, stringEvent] used to exercise
// the chain/world machinery without depending on internal/world, analogous
// to actor.rs's own SimpleState test fixture.
type stringState struct {
	partitions map[int]string
}

func newStringState() *stringState { return &stringState{partitions: make(map[int]string)} }

type stringEvent struct {
	partition int
	text      string
}

func (s *stringState) DestinationPartition(e stringEvent) int { return e.partition }
func (s *stringState) VisitPartitionIDs(visit func(int)) {
	for id := range s.partitions {
		visit(id)
	}
}
func (s *stringState) GetPartition(id int) (string, bool) { v, ok := s.partitions[id]; return v, ok }
func (s *stringState) InsertPartition(id int, v string) (string, bool) {
	old, had := s.partitions[id]
	s.partitions[id] = v
	return old, had
}
func (s *stringState) RemovePartition(id int) (string, bool) {
	old, had := s.partitions[id]
	delete(s.partitions, id)
	return old, had
}
func (s *stringState) Apply(e stringEvent, onInfo func(any)) {
	s.partitions[e.partition] = e.text
	onInfo(e)
}

// appendPass appends its event's text onto the destination partition; it
// never predicts (Tick produces nothing on its own), so every event it
// sees must come from an explicit Dispatch.
type appendPass struct{}

func (appendPass) Name() string                      { return "append" }
func (appendPass) Prioritize(stringEvent) int         { return 0 }
func (appendPass) Collapse(stringEvent) bool          { return false }
func (appendPass) SourcePartitions(e stringEvent) []int { return []int{e.partition} }
func (appendPass) DestinationPartition(e stringEvent) int { return e.partition }
func (appendPass) Apply(e stringEvent, onInfo func(any)) {}
func (appendPass) Tick(func(stringEvent), func(any))      {}

func newTestServer() (*Server[int, string, stringEvent], *stringState) {
	state := newStringState()
	chain := NewChain[int]()
	AddPass[int, stringEvent](chain, appendPass{})
	return NewServer[int, string, stringEvent](state, chain, func() Checksum { return &HashChecksum{} }), state
}

func TestServerUpdate_NewPartitionBecomesComplete(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "hello"

	data := NewClientData[int]()
	update := server.Update(data, []int{1})

	if len(update.Completes) != 1 || update.Completes[0].ID != 1 || update.Completes[0].Partition != "hello" {
		t.Fatalf("expected partition 1 to complete as %q, got %+v", "hello", update.Completes)
	}
	if len(update.Deletes) != 0 {
		t.Fatalf("expected no deletes on first sight, got %v", update.Deletes)
	}
	k := data.Known[1]
	if k.Since != 1 || k.Until != PartitionKeepalive-1 {
		t.Fatalf("expected since=1 until=%d after first Update, got %+v", PartitionKeepalive-1, k)
	}
}

func TestServerUpdate_KnownPartitionNeverResent(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "hello"
	data := NewClientData[int]()

	server.Update(data, []int{1})
	update := server.Update(data, []int{1})

	if len(update.Completes) != 0 {
		t.Fatalf("expected no re-complete of an already-known partition, got %+v", update.Completes)
	}
}

func TestServerUpdate_PartitionExpiresAfterKeepalive(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "hello"
	data := NewClientData[int]()

	server.Update(data, []int{1}) // becomes known, until = keepalive-1

	var lastDeletes []int
	for i := 0; i < PartitionKeepalive; i++ {
		update := server.Update(data, nil) // no longer visible
		lastDeletes = update.Deletes
	}

	if len(lastDeletes) != 1 || lastDeletes[0] != 1 {
		t.Fatalf("expected partition 1 to expire into deletes after %d ticks of invisibility, got %v", PartitionKeepalive, lastDeletes)
	}
	if _, ok := data.Known[1]; ok {
		t.Fatalf("expected expired partition to be removed from ClientData.Known")
	}
}

func TestDispatch_EchoesOnlyOnceDestinationKnown(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "a"
	data := NewClientData[int]()

	// Not yet known to this client: dispatched event isn't echoed.
	server.Dispatch(stringEvent{partition: 1, text: "ab"}, func(any) {})
	update := server.Update(data, nil)
	if len(update.Events) != 0 {
		t.Fatalf("expected no echoed events before the destination partition is visible, got %v", update.Events)
	}

	// Now visible: a fresh dispatch this tick is echoed.
	server.Update(data, []int{1})
	server.Tick(func(any) {})
	server.Dispatch(stringEvent{partition: 1, text: "abc"}, func(any) {})
	update = server.Update(data, []int{1})
	if len(update.Events) != 1 || update.Events[0].text != "abc" {
		t.Fatalf("expected the dispatched event to be echoed once its destination is known, got %v", update.Events)
	}
}

func TestClientTick_AppliesCompletesEventsAndMatchesChecksum(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "hello"
	data := NewClientData[int]()
	update := server.Update(data, []int{1})

	clientState := newStringState()
	clientChain := NewChain[int]()
	AddPass[int, stringEvent](clientChain, appendPass{})
	client := NewClient[int, string, stringEvent](clientState, clientChain, func() Checksum { return &HashChecksum{} })

	if err := client.Tick(update, func(any) {}); err != nil {
		t.Fatalf("unexpected desync on first Update: %v", err)
	}
	if clientState.partitions[1] != "hello" {
		t.Fatalf("expected the complete to install partition 1, got %q", clientState.partitions[1])
	}
}

func TestClientTick_DetectsDesync(t *testing.T) {
	server, state := newTestServer()
	state.partitions[1] = "hello"
	data := NewClientData[int]()
	update := server.Update(data, []int{1})
	update.Checksum ^= 1 // corrupt it

	clientState := newStringState()
	clientChain := NewChain[int]()
	AddPass[int, stringEvent](clientChain, appendPass{})
	client := NewClient[int, string, stringEvent](clientState, clientChain, func() Checksum { return &HashChecksum{} })

	if err := client.Tick(update, func(any) {}); err == nil {
		t.Fatalf("expected a desync error after corrupting the checksum")
	}
}
