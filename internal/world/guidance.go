// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/SoftbearStudios/mk48arena/internal/flat"

// Guidance is the desired heading/throttle an entity's controller (player
// input, or the homing logic in interaction.go) is steering toward this
// tick. Grounded on server/world/guidance.go.
type Guidance struct {
	DirectionTarget flat.Angle    `json:"directionTarget,omitempty"`
	VelocityTarget  flat.Velocity `json:"velocityTarget,omitempty"`
}
