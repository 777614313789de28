// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flat holds the fixed-point geometry and kinematics primitives
// shared by every simulation component: Angle, Vec2, Ticks and Speed.
// Types are deliberately small (2-4 bytes) so that Entity stays compact.
package flat

import (
	"encoding/json"
	"fmt"

	"github.com/13rac1/fastmath"
	"github.com/chewxy/math32"
)

// HalfTurn is the Angle value of pi radians.
const HalfTurn Angle = 32768

// Angle is a full turn packed into a uint16, matching the data model's
// "16-bit fixed-point fraction of a full turn" for wire compactness.
type Angle uint16

// Radians converts a float32 radian measure into an Angle, wrapping modulo 2pi.
func Radians(rad float32) Angle {
	return Angle(rad * (float32(HalfTurn) / math32.Pi))
}

// Float returns the Angle in radians, in [-pi, pi).
func (a Angle) Float() float32 {
	return float32(int16(a)) * (math32.Pi * 2 / 65536)
}

// Unit returns the unit vector the Angle points along.
func (a Angle) Unit() Vec2 {
	sin := fastmath.Sin16(uint16(a))
	cos := fastmath.Cos16(uint16(a))
	return Vec2{
		X: float32(float64(cos) * (1.0 / 32767)),
		Y: float32(float64(sin) * (1.0 / 32767)),
	}
}

// ClampMagnitude clamps the signed distance of a to within [-m, m].
func (a Angle) ClampMagnitude(m Angle) Angle {
	if int16(a) < -int16(m) {
		return -m
	}
	if int16(a) > int16(m) {
		return m
	}
	return a
}

// Diff returns the signed angular distance from other to a.
func (a Angle) Diff(other Angle) Angle {
	return a - other
}

// Lerp interpolates from a toward other by factor, taking the short way round.
func (a Angle) Lerp(other Angle, factor float32) Angle {
	return a + Radians(other.Diff(a).Float()*factor)
}

// Abs returns the magnitude of the Angle in radians, in [0, pi].
func (a Angle) Abs() float32 {
	return math32.Abs(a.Float())
}

// Opposite returns the angle rotated by a half turn.
func (a Angle) Opposite() Angle {
	return a + HalfTurn
}

func (a Angle) String() string {
	return fmt.Sprintf("%.1f°", a.Float()*(180/math32.Pi))
}

func (a Angle) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Float())
}

func (a *Angle) UnmarshalJSON(b []byte) error {
	var f float32
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Radians(f)
	return nil
}
