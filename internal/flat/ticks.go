// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package flat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

// TickPeriod is the fixed simulation rate: 10 Hz, per the data model.
const TickPeriod = time.Second / 10

// TicksPerSecond is the number of Ticks in one second of wall-clock time.
const TicksPerSecond = Ticks(time.Second / TickPeriod)

// TicksMax is a sentinel meaning "never" (e.g. a limited armament not yet consumed).
const TicksMax = Ticks(math32.MaxUint16)

// Ticks is a duration measured in fixed 100ms simulation steps. It wraps
// after 65535 ticks (~109 minutes); every lifespan, reload and damage total
// in the simulation is expressed in Ticks rather than wall-clock time.
type Ticks uint16

// Seconds converts a float32 second count into Ticks.
func Seconds(s float32) Ticks {
	return Ticks(s * float32(float64(time.Second)/float64(TickPeriod)))
}

// Float returns the Ticks value in seconds.
func (t Ticks) Float() float32 {
	return float32(t) * float32(float64(TickPeriod)/float64(time.Second))
}

// DamageToTicks converts an accumulated damage quantity (itself denominated
// in ticks of time-to-sink) into a Ticks value; damage and lifespan share
// units by design so that "damage ticks" and "time ticks" compare directly.
func DamageToTicks(damage float32) Ticks {
	return Seconds(damage)
}

func (t Ticks) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Float())
}

func (t *Ticks) UnmarshalJSON(b []byte) error {
	var seconds float32
	if err := json.Unmarshal(b, &seconds); err != nil {
		return err
	}
	const maximum = float32(float64(math32.MaxUint16) * float64(TickPeriod) / float64(time.Second))
	if seconds < 0 || seconds > maximum {
		return fmt.Errorf("flat: ticks out of range [0, %f]: %f", maximum, seconds)
	}
	*t = Seconds(seconds)
	return nil
}
