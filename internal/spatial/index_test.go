// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package spatial

import (
	"testing"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

type point struct{ x, y float32 }

func (p point) Pos() flat.Vec2 { return flat.Vec2{X: p.x, Y: p.y} }

func TestIndex_insertRemoveFind(t *testing.T) {
	idx := New[int, point](2000)

	idx.Insert(1, point{0, 0})
	idx.Insert(2, point{10, 10})
	idx.Insert(3, point{1000, 1000})

	if idx.Count() != 3 {
		t.Fatalf("count = %d, want 3", idx.Count())
	}

	var found []int
	idx.ForEachInRadius(flat.Vec2{X: 0, Y: 0}, 50, func(_ float32, id int, _ point) bool {
		found = append(found, id)
		return false
	})
	if len(found) != 2 {
		t.Fatalf("found %v, want 2 ids near origin", found)
	}

	idx.Remove(2)
	if idx.Count() != 2 {
		t.Fatalf("count after remove = %d, want 2", idx.Count())
	}

	found = nil
	idx.ForEachInRadius(flat.Vec2{X: 0, Y: 0}, 50, func(_ float32, id int, _ point) bool {
		found = append(found, id)
		return false
	})
	if len(found) != 1 || found[0] != 1 {
		t.Fatalf("found %v after remove, want [1]", found)
	}
}

func TestIndex_insertDuringIteration(t *testing.T) {
	idx := New[int, point](2000)
	idx.Insert(1, point{0, 0})

	idx.ForEachInRadius(flat.Vec2{X: 0, Y: 0}, 50, func(_ float32, id int, _ point) bool {
		idx.Insert(2, point{1, 1})
		return false
	})

	if idx.Count() != 2 {
		t.Fatalf("count = %d, want 2 after buffered insert drains", idx.Count())
	}
}
