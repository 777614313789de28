// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package flat

import (
	"math"

	"github.com/chewxy/math32"
)

// Vec2 is a 2D Cartesian point or displacement, in meters.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (v Vec2) Scale(factor float32) Vec2 {
	v.X *= factor
	v.Y *= factor
	return v
}

func (v Vec2) Div(divisor float32) Vec2 {
	return v.Scale(1.0 / divisor)
}

func (v Vec2) AddScaled(other Vec2, factor float32) Vec2 {
	v.X += other.X * factor
	v.Y += other.Y * factor
	return v
}

func (v Vec2) Add(other Vec2) Vec2 {
	v.X += other.X
	v.Y += other.Y
	return v
}

func (v Vec2) Sub(other Vec2) Vec2 {
	v.X -= other.X
	v.Y -= other.Y
	return v
}

func (v Vec2) Dot(other Vec2) float32 {
	return v.X*other.X + v.Y*other.Y
}

// Angle returns the direction from the origin to v.
func (v Vec2) Angle() Angle {
	return Radians(math32.Atan2(v.Y, v.X))
}

// Rot90CW rotates 90 degrees clockwise.
func (v Vec2) Rot90CW() Vec2 {
	return Vec2{X: -v.Y, Y: v.X}
}

// Rot90CCW rotates 90 degrees counter-clockwise.
func (v Vec2) Rot90CCW() Vec2 {
	return Vec2{X: v.Y, Y: -v.X}
}

func (v Vec2) Distance(other Vec2) float32 {
	return v.Sub(other).Length()
}

func (v Vec2) DistanceSquared(other Vec2) float32 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	return dx*dx + dy*dy
}

func (v Vec2) Length() float32 {
	return math32.Hypot(v.X, v.Y)
}

func (v Vec2) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y
}

// Lerp linearly interpolates between two scalars.
func Lerp(a, b, factor float32) float32 {
	return a + (b-a)*factor
}

func (v Vec2) Lerp(other Vec2, factor float32) Vec2 {
	v.X = Lerp(v.X, other.X, factor)
	v.Y = Lerp(v.Y, other.Y, factor)
	return v
}

func (v Vec2) Abs() Vec2 {
	v.X = math32.Abs(v.X)
	v.Y = math32.Abs(v.Y)
	return v
}

// Ceil/Floor/Round use math.Ceil et al (float64) because the standard
// library versions compile to a single assembly instruction, unlike math32's.

func (v Vec2) Ceil() Vec2 {
	v.X = float32(math.Ceil(float64(v.X)))
	v.Y = float32(math.Ceil(float64(v.Y)))
	return v
}

func (v Vec2) Floor() Vec2 {
	v.X = float32(math.Floor(float64(v.X)))
	v.Y = float32(math.Floor(float64(v.Y)))
	return v
}

func (v Vec2) Round() Vec2 {
	v.X = float32(math.Round(float64(v.X)))
	v.Y = float32(math.Round(float64(v.Y)))
	return v
}

func (v Vec2) Norm() Vec2 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Div(l)
}

// AABB is an axis-aligned bounding box, origin at its min corner.
type AABB struct {
	Vec2
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// NewAABB builds an AABB from a min corner and dimensions.
func NewAABB(x, y, w, h float32) AABB {
	return AABB{Vec2: Vec2{X: x, Y: y}, Width: w, Height: h}
}

// Contains reports whether p lies within the box.
func (b AABB) Contains(p Vec2) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}
