// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// Collides does an oriented rectangle-to-rectangle collision test between e
// and other, swept forward by each one's own velocity over seconds.
// Altitude is not considered (see AltitudeOverlap). Grounded on
// server/world/collision.go's Entity.Collides + satCollision.
func (e *Entity) Collides(other *Entity, seconds float32) bool {
	data, otherData := e.Data(), other.Data()

	sweep := seconds * e.Transform.Velocity.Float()
	otherSweep := seconds * other.Transform.Velocity.Float()

	r := data.Radius + otherData.Radius + sweep + otherSweep
	if e.Transform.Position.DistanceSquared(other.Transform.Position) > r*r {
		return false
	}

	c := catalog.Current()
	if data.SubKind == c.SubKindSAM || otherData.SubKind == c.SubKindSAM {
		return true
	}

	dimensions := flat.Vec2{X: data.Length + sweep, Y: data.Width}
	otherDimensions := flat.Vec2{X: otherData.Length + otherSweep, Y: otherData.Width}

	normal := e.Transform.Direction.Unit()
	otherNormal := other.Transform.Direction.Unit()

	return satCollision(e.Transform.Position.AddScaled(normal, sweep*0.5), other.Transform.Position, normal, otherNormal, dimensions, otherDimensions) &&
		satCollision(other.Transform.Position.AddScaled(otherNormal, otherSweep*0.5), e.Transform.Position, otherNormal, normal, otherDimensions, dimensions)
}

// satCollision is the separating-axis test for two oriented rectangles,
// ported near-verbatim from server/world/collision.go's satCollision.
func satCollision(position, otherPosition, axisNormal, otherAxisNormal, dimensions, otherDimensions flat.Vec2) bool {
	otherDimensions = otherDimensions.Scale(0.5)
	dimensions = dimensions.Scale(0.5)
	otherAxisTangent := otherAxisNormal.Rot90CW()

	otherScaledNormal := otherAxisNormal.Scale(otherDimensions.X)
	otherScaledTangent := otherAxisTangent.Scale(otherDimensions.Y)

	otherPosition1 := otherPosition.Add(otherScaledNormal)
	otherPosition2 := otherPosition1.Sub(otherScaledTangent)
	otherPosition1 = otherPosition1.Add(otherScaledTangent)

	otherPosition3 := otherPosition.Sub(otherScaledNormal)
	otherPosition4 := otherPosition3.Add(otherScaledTangent)
	otherPosition3 = otherPosition3.Sub(otherScaledTangent)

	for f := 0; f < 4; f++ {
		dimension := dimensions.X
		if f&1 == 1 {
			dimension = dimensions.Y
		}

		dot := position.Dot(axisNormal)
		minimum := dot - dimension
		maximum := dot + dimension

		d := otherPosition1.Dot(axisNormal)
		otherMin, otherMax := d, d

		d = otherPosition2.Dot(axisNormal)
		otherMin, otherMax = minF(otherMin, d), maxF(otherMax, d)
		d = otherPosition3.Dot(axisNormal)
		otherMin, otherMax = minF(otherMin, d), maxF(otherMax, d)
		d = otherPosition4.Dot(axisNormal)
		otherMin, otherMax = minF(otherMin, d), maxF(otherMax, d)

		if minimum > otherMax || otherMin > maximum {
			return false
		}

		axisNormal = axisNormal.Rot90CW()
	}

	return true
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
