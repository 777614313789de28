// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package replication

import (
	"fmt"
	"reflect"
)

// lessAny orders two partition ids for the event-sort tie-break. Go's
// `comparable` constraint (unlike Rust's Ord, which actor.rs requires of
// PartitionId) doesn't imply an ordering, so this falls back to comparing
// the values' formatted text — stable and deterministic across a tick for
// any concrete id type this module uses (uint32 entity/player/team ids),
// just not as cheap as a native integer compare.
func lessAny(a, b any) bool {
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// sameEventKind reports whether two pass events share a concrete Go type,
// the "discriminant" check actor.rs's apply_all performs with
// mem::discriminant before collapsing an enum variant.
func sameEventKind(a, b any) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}
