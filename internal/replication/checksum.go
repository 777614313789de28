// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import (
	"hash/fnv"

	jsoniter "github.com/json-iterator/go"
)

// Checksum accumulates an order-independent fingerprint of a client's
// currently-known partitions, verified after every applied Update.
// Grounded on actor.rs's Checksum<S> trait; this module keeps its two
// production implementations (no-op and XOR-combined hash) and drops the
// third, a full BTreeMap copy of every partition used there only to debug
// the fuzz test — a complete per-partition snapshot already exists in the
// Update's own completes/partition store, so nothing in this module's
// scope needs a second copy for checksum purposes (see DESIGN.md).
type Checksum interface {
	// Accumulate folds one partition's encoded contents into the running
	// checksum. Order of calls must not matter.
	Accumulate(id any, encoded []byte)
	// Value returns the checksum's current wire representation.
	Value() uint32
}

// NoChecksum disables desync verification entirely (zero overhead).
type NoChecksum struct{}

func (NoChecksum) Accumulate(any, []byte) {}
func (NoChecksum) Value() uint32          { return 0 }

// HashChecksum XORs together an FNV-1a hash of each partition's
// jsoniter-encoded bytes. XOR keeps the result independent of accumulation
// order, matching actor.rs's `u32` Checksum impl (there: CompatHasher over
// partition_id + state.hash_partition).
type HashChecksum struct {
	sum uint32
}

func (c *HashChecksum) Accumulate(id any, encoded []byte) {
	h := fnv.New32a()
	idBytes, _ := jsoniter.ConfigFastest.Marshal(id)
	h.Write(idBytes)
	h.Write(encoded)
	c.sum ^= h.Sum32()
}

func (c *HashChecksum) Value() uint32 { return c.sum }

// EncodePartition is the default Partition->bytes encoder passed to
// HashChecksum.Accumulate and to wire serialization, using the fast-path
// jsoniter codec the rest of this package's Update frames are sent with.
func EncodePartition(p any) []byte {
	b, _ := jsoniter.ConfigFastest.Marshal(p)
	return b
}
