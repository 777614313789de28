// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package flat

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

const (
	// MeterPerSecond is 1 m/s in the 11.5 fixed-point Velocity representation.
	MeterPerSecond Velocity = 1 << 5
	VelocityMax             = math32.MaxInt16 / float32(MeterPerSecond)
	VelocityMin             = math32.MinInt16 / float32(MeterPerSecond)
)

// Velocity is an 11.5 fixed-point encoding of any valid speed, in m/s.
type Velocity int16

// ToVelocity converts a float in m/s to a Velocity.
func ToVelocity(x float32) Velocity {
	// math.Floor is much faster than math32.Floor.
	return Velocity(math.Floor(float64(x * float32(MeterPerSecond))))
}

// Float returns the Velocity as a float in m/s.
func (vel Velocity) Float() float32 {
	return float32(vel) * (1.0 / float32(MeterPerSecond))
}

func (vel Velocity) ClampMagnitude(mag Velocity) Velocity {
	if vel < -mag {
		return -mag
	}
	if vel > mag {
		return mag
	}
	return vel
}

// ClampMin clamps the magnitude of vel to be at least min, preserving sign.
func (vel Velocity) ClampMin(min Velocity) Velocity {
	if vel < 0 {
		if vel > -min {
			return -min
		}
	} else if vel < min {
		return min
	}
	return vel
}

// AddClamped adds a float32 amount (m/s) to vel and clamps the result to mag.
func (vel Velocity) AddClamped(amount float32, mag Velocity) Velocity {
	// int64 to avoid overflow of the intermediate sum.
	v := int64(vel) + int64(amount*float32(MeterPerSecond))
	if v > int64(mag) {
		return mag
	}
	if v < int64(-mag) {
		return -mag
	}
	return Velocity(v)
}

func (vel Velocity) String() string {
	return fmt.Sprintf("%.01f m/s", vel.Float())
}

func (vel Velocity) MarshalJSON() ([]byte, error) {
	return json.Marshal(vel.Float())
}

func (vel *Velocity) UnmarshalJSON(b []byte) error {
	var f float32
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f < VelocityMin || f > VelocityMax {
		return fmt.Errorf("flat: velocity out of range [%f, %f]: %f", VelocityMin, VelocityMax, f)
	}
	*vel = ToVelocity(f)
	return nil
}
