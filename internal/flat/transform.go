// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package flat

// Transform is a position, velocity and heading triple, the basic kinematic
// state every entity and every armament mount carries.
type Transform struct {
	Position  Vec2     `json:"position"`
	Velocity  Velocity `json:"velocity"`
	Direction Angle    `json:"direction"`
}

// Add composes a local transform (e.g. a turret offset) onto a world one,
// rotating the local offset by the world transform's direction first.
func (t Transform) Add(local Transform) Transform {
	normal := t.Direction.Unit()
	t.Position.X += local.Position.X*normal.X - local.Position.Y*normal.Y
	t.Position.Y += local.Position.X*normal.Y + local.Position.Y*normal.X
	t.Direction += local.Direction
	t.Velocity += local.Velocity
	return t
}
