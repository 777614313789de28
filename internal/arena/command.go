// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"golang.org/x/time/rate"

	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// Command is one inbound per-tick game message (spec.md §4.11's "Game:
// per-tick command bundle"), narrowed to the two effects this module's
// world package already has a Mutation for: steering and firing a weapon
// slot. Grounded on client.rs's Command enum; pay/altitude_target/hint are
// not modeled here since nothing in internal/world tracks aircraft payload
// state or dive depth yet (see DESIGN.md).
type Command struct {
	Guidance *world.Guidance
	// FireIndex addresses an armament by its position in the entity's
	// catalog Slots, matching client.rs's `armament_index`.
	FireIndex *int
}

// commandLimiter rate-limits one session's Command throughput, separate
// from Registry's per-IP authenticate limiter. Grounded on
// client.rs's per-client rate limiting and SPEC_FULL.md's "per-session
// command limiter" row for golang.org/x/time/rate.
type commandLimiter struct {
	limit rate.Limit
	burst int
	lims  map[world.PlayerID]*rate.Limiter
}

func newCommandLimiter(perSecond float64, burst int) *commandLimiter {
	return &commandLimiter{limit: rate.Limit(perSecond), burst: burst, lims: make(map[world.PlayerID]*rate.Limiter)}
}

func (c *commandLimiter) allow(id world.PlayerID) bool {
	lim, ok := c.lims[id]
	if !ok {
		lim = rate.NewLimiter(c.limit, c.burst)
		c.lims[id] = lim
	}
	return lim.Allow()
}

func (c *commandLimiter) forget(id world.PlayerID) { delete(c.lims, id) }

// Dispatch applies one inbound Command from playerID against the loop's
// World, queuing a Mutation the next tick's applyMutations pass will run.
// Silently drops commands for an unknown player, a player with no live
// entity, a fire index out of range, or a session over its rate budget —
// all "client sent something stale/hostile", never a server error.
func (l *Loop) Dispatch(playerID world.PlayerID, cmd Command) {
	if !l.commands.allow(playerID) {
		commandsDropped.WithLabelValues("rate_limited").Inc()
		return
	}

	p := l.World.Player(playerID)
	if p == nil || p.EntityID == world.EntityIDInvalid {
		commandsDropped.WithLabelValues("no_entity").Inc()
		return
	}

	if cmd.Guidance != nil {
		l.World.QueueMutation(world.NewGuidanceMutation(p.EntityID, *cmd.Guidance, 0))
	}
	if cmd.FireIndex != nil {
		subKind, ok := l.slotSubKind(p.EntityID, *cmd.FireIndex)
		if !ok {
			commandsDropped.WithLabelValues("bad_fire_index").Inc()
			return
		}
		l.World.QueueMutation(world.NewFireAll(p.EntityID, subKind))
	}
}

// slotSubKind looks up the catalog sub-kind armed at index on entity id's
// current type, the same lookup FireAll.Apply itself does per-slot.
func (l *Loop) slotSubKind(id world.EntityID, index int) (subKind catalog.EntitySubKind, ok bool) {
	l.World.EntityByID(id, func(e *world.Entity) {
		slots := e.Data().Slots
		if index >= 0 && index < len(slots) {
			subKind, ok = slots[index].SubKind, true
		}
	})
	return
}
