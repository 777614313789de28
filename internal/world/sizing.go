// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/chewxy/math32"

// MinRadius is the smallest an arena's world radius ever shrinks to,
// regardless of player count. Grounded verbatim on server/world/world.go's
// own MinRadius (a deploy-wide constant the client's own zoom/camera
// tuning assumes).
const MinRadius = 500

// PlayerSpace is the target world area, in square meters, reserved per
// connected player when sizing the arena. Grounded on server/world/
// world.go's PlayerSpace.
const PlayerSpace = 300000

// RadiusOf returns the world radius that gives playerCount players
// PlayerSpace each, never smaller than MinRadius. Grounded on
// server/world/world.go's RadiusOf/AreaOf pair, called once at startup by
// cmd/arenad; the radius is not recomputed as the player count changes.
func RadiusOf(playerCount int) float32 {
	area := float32(playerCount) * PlayerSpace
	radius := math32.Sqrt(area / math32.Pi)
	if radius < MinRadius {
		return MinRadius
	}
	return radius
}
