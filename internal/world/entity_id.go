// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

// EntityIDInvalid never denotes a real entity.
const EntityIDInvalid = EntityID(0)

// EntityID is a 32-bit opaque handle, unique among the entities currently
// in use; an id may be drawn again once its entity is gone. Bots occupy a reserved high
// subrange so their ids never collide with a human player's freshly
// allocated one.
type EntityID uint32

// BotEntityIDFloor is the lowest id reserved for bot-controlled entities.
const BotEntityIDFloor = EntityID(1 << 28)

// AllocateEntityID returns a unique, non-bot id (favoring shorter ids, since
// ids round-trip through JSON as hex strings on the wire). used reports
// whether a candidate id is already taken.
func AllocateEntityID(used func(id EntityID) bool) EntityID {
	for i := 0; i < 10; i++ {
		chars := i + 1
		if chars > 7 {
			chars = 7
		}
		id := EntityID(randUint32(uint32(1) << (chars * 4)))
		if id == EntityIDInvalid || id >= BotEntityIDFloor {
			continue
		}
		if !used(id) {
			return id
		}
	}
	panic("could not find unique EntityID in 10 tries")
}

// AllocateBotEntityID is AllocateEntityID restricted to the bot subrange.
func AllocateBotEntityID(used func(id EntityID) bool) EntityID {
	for i := 0; i < 10; i++ {
		id := BotEntityIDFloor + EntityID(randUint32(uint32(1)<<28))
		if !used(id) {
			return id
		}
	}
	panic("could not find unique bot EntityID in 10 tries")
}

func randUint32(bound uint32) uint32 {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(bound)))
	if err != nil {
		panic(err)
	}
	return uint32(n.Int64())
}

func (id EntityID) IsBot() bool { return id >= BotEntityIDFloor }

func (id EntityID) String() string {
	buf, err := id.MarshalText()
	if err != nil {
		return "invalid"
	}
	return string(buf)
}

func (id EntityID) MarshalText() ([]byte, error) {
	if id == EntityIDInvalid {
		return nil, errInvalidEntityID
	}
	return strconv.AppendUint(make([]byte, 0, 8), uint64(id), 16), nil
}

var errInvalidEntityID = errors.New("world: invalid entity id")

func (id *EntityID) UnmarshalText(text []byte) error {
	i, err := strconv.ParseUint(string(text), 16, 32)
	*id = EntityID(i)
	if err == nil && *id == EntityIDInvalid {
		err = errInvalidEntityID
	}
	return err
}
