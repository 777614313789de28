// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package arena

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/finnbear/moderation"

	"github.com/SoftbearStudios/mk48arena/internal/replication"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// chatHistory is one session's running spam/toxicity estimate. Ported
// directly from server/chat_history.go's ChatHistory, whose content-based
// fading math spec.md §4.8 summarizes as "a profanity/toxicity context
// whose output gates delivery" without naming the algorithm itself, so this
// stays the teacher's exact heuristic rather than a reinvention.
type chatHistory struct {
	total         float32
	inappropriate float32

	recentLengths      [7]uint8
	recentLengthsIndex int8

	updated int64 // unix millis of the last fade
}

// evaluate scans message for moderation violations, censors it if needed,
// and reports whether it should still be delivered (false means blocked as
// spam or severely inappropriate). Grounded on ChatHistory.Update.
func (hist *chatHistory) evaluate(message string, now time.Time) (censored string, deliver bool) {
	hist.total++
	result := moderation.Scan(message)
	inappropriate := result.Is(moderation.Inappropriate)
	severelyInappropriate := result.Is(moderation.Inappropriate & moderation.Severe)

	var censorAmount int
	if inappropriate {
		message, censorAmount = moderation.Censor(message, moderation.Inappropriate)
		hist.inappropriate++
	}

	inappropriateFraction := hist.inappropriate / hist.total

	n := uint8(math32.MaxUint8)
	if len(message) < math32.MaxUint8 {
		n = uint8(len(message))
	}
	hist.recentLengths[hist.recentLengthsIndex] = n
	hist.recentLengthsIndex = int8(int(hist.recentLengthsIndex+1) % len(hist.recentLengths))

	averageLength := float32(0)
	for _, length := range hist.recentLengths {
		averageLength += float32(length)
	}
	averageLength /= float32(len(hist.recentLengths))

	lengthSpecificDeviation := int(n) - int(averageLength)
	if lengthSpecificDeviation < 0 {
		lengthSpecificDeviation = -lengthSpecificDeviation
	}

	lengthStandardDeviation := float32(0)
	for _, length := range hist.recentLengths {
		deviation := averageLength - float32(length)
		lengthStandardDeviation += deviation * deviation
	}
	lengthStandardDeviation /= float32(len(hist.recentLengths))

	nowMillis := now.UnixMilli()
	seconds := (nowMillis - hist.updated) / 1000

	if hist.updated == 0 {
		hist.updated = nowMillis
	} else if seconds > 0 {
		fadeRate := float32(0.95)
		switch {
		case hist.inappropriate > 5 && inappropriateFraction > 0.5:
			fadeRate = 0.999999
		case hist.inappropriate > 4 && inappropriateFraction > 0.4:
			fadeRate = 0.99999
		case hist.inappropriate > 3 && inappropriateFraction > 0.3:
			fadeRate = 0.9999
		case inappropriateFraction > 0.2:
			fadeRate = 0.999
		case inappropriateFraction > 0.1:
			fadeRate = 0.99
		}

		fade := math32.Pow(fadeRate, float32(seconds))
		hist.total *= fade
		hist.inappropriate *= fade
		hist.updated = nowMillis
	}

	const repetitionThresholdTotal = 3
	frequencySpam := hist.total >= 10
	inappropriateSpam := hist.inappropriate > 2 && inappropriateFraction > 0.20
	repetitionSpam := int(hist.total) > repetitionThresholdTotal && lengthStandardDeviation < 3 && lengthSpecificDeviation < 3

	block := (inappropriate && censorAmount > 4) || severelyInappropriate || frequencySpam || inappropriateSpam || repetitionSpam
	return message, !block
}

// ChatGate owns one chatHistory per live session and forwards accepted
// messages into the replication chain's ChatPass. Moderators bypass
// filtering entirely, per spec.md §4.8.
type ChatGate struct {
	pass       *replication.ChatPass
	histories  map[session.SessionID]*chatHistory
	sessions   *session.Repo
}

// NewChatGate wires a gate that notifies pass once a message clears
// moderation.
func NewChatGate(sessions *session.Repo, pass *replication.ChatPass) *ChatGate {
	return &ChatGate{pass: pass, histories: make(map[session.SessionID]*chatHistory), sessions: sessions}
}

func (g *ChatGate) historyFor(id session.SessionID) *chatHistory {
	h, ok := g.histories[id]
	if !ok {
		h = &chatHistory{}
		g.histories[id] = h
	}
	return h
}

// Send evaluates message from sender (whose entity is senderEntity, for the
// pass's source-partition prediction) and, if accepted, dispatches it as a
// broadcast (to == world.PlayerIDInvalid) or whisper. Muted recipients are
// silently dropped before the moderation check even runs, matching the
// teacher's server/chat_history.go whisper gating in spirit (there folded
// into the HTTP command handler instead of a dedicated gate).
func (g *ChatGate) Send(arenaID session.ArenaID, from session.SessionID, senderEntity, toEntity world.EntityID, sender world.PlayerID, to world.PlayerID, text string, now time.Time) bool {
	arena := g.sessions.Arena(arenaID)
	if arena == nil {
		return false
	}
	s := arena.Sessions[from]
	if s == nil {
		return false
	}

	if to != world.PlayerIDInvalid && s.Muted[to] {
		return false
	}

	var censored string
	var deliver bool
	if s.Moderator {
		censored, deliver = text, true
	} else {
		censored, deliver = g.historyFor(from).evaluate(text, now)
	}
	if !deliver {
		s.ChatStrikes++
		chatMessagesBlocked.Inc()
		return false
	}
	chatMessagesDelivered.Inc()

	msg := replication.ChatMessage{From: replication.PlayerEntity{Player: sender, Entity: senderEntity}, Text: censored}
	if to != world.PlayerIDInvalid {
		dest := replication.PlayerEntity{Player: to, Entity: toEntity}
		msg.To = &dest
	}
	g.pass.Notify(msg)

	entry := session.ChatInboxEntry{From: sender, Text: censored, Sent: now}
	if to == world.PlayerIDInvalid {
		// Broadcast: every live session's inbox gets it, mirroring the
		// teacher's HistoryBuffer fan-out (session.rs keeps one buffer per
		// session regardless of who is currently connected).
		for _, other := range arena.Sessions {
			other.ReceiveChat(entry)
		}
	} else if recipient := findSessionByPlayer(arena, to); recipient != nil {
		recipient.ReceiveChat(entry)
	}
	return true
}

// findSessionByPlayer finds the live session currently identified as to, if
// any. Mirrors session.Arena's own unexported helper of the same name (not
// reachable from this package), O(n) on sessions like client.rs accepts
// elsewhere for player lookups (its own TODO: "O(n) on players").
func findSessionByPlayer(arena *session.Arena, to world.PlayerID) *session.Session {
	for _, s := range arena.Sessions {
		if s.PlayerID == to && s.DateTerminated.IsZero() && s.Live {
			return s
		}
	}
	return nil
}
