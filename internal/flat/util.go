// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package flat

import (
	"crypto/rand"
	"math/big"
)

// Square returns a*a; named rather than inlined since a*a reads ambiguously
// when a itself is a compound expression.
func Square(a float32) float32 {
	return a * a
}

// Clamp restricts val to [minimum, maximum].
func Clamp(val, minimum, maximum float32) float32 {
	return min(max(val, minimum), maximum)
}

// ClampMagnitude restricts val to [-mag, mag].
func ClampMagnitude(val, mag float32) float32 {
	return Clamp(val, -mag, mag)
}

// MapRange linearly remaps number from [oldMin, oldMax] to [newMin, newMax],
// optionally clamping the result to the new range.
func MapRange(number, oldMin, oldMax, newMin, newMax float32, clampToRange bool) float32 {
	oldRange := oldMax - oldMin
	newRange := newMax - newMin
	normalized := (number - oldMin) / oldRange
	mapped := newMin + normalized*newRange
	if clampToRange {
		mapped = Clamp(mapped, newMin, newMax)
	}
	return mapped
}

// CopyFloats returns a new slice with the same contents as a.
func CopyFloats(a []float32) []float32 {
	b := make([]float32, len(a))
	copy(b, a)
	return b
}

// CopyAngles returns a new slice with the same contents as a.
func CopyAngles(a []Angle) []Angle {
	b := make([]Angle, len(a))
	copy(b, a)
	return b
}

const randStringAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandString returns a cryptographically random alphanumeric string of
// length n, used for session and invitation tokens.
func RandString(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(randStringAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = randStringAlphabet[idx.Int64()]
	}
	return string(b)
}
