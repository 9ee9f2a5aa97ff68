package chat

import (
	"context"
	"encoding/json"
	"sort"
)

// handleJoinVoice moves c into the voice room and broadcasts the member list.
// Joining again while already a member keeps the original position and rebroadcasts.
func (h *Hub) handleJoinVoice(c *Client, s *Session, _ json.RawMessage) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	entry, already := h.voice[c]
	if !already {
		h.seq++
		entry.seq = h.seq
	}
	entry.member = VoiceMember{UserID: s.UserID, Username: s.Username}
	h.voice[c] = entry
	h.recordGaugesLocked()
	h.mu.Unlock()

	c.logger.Info().Str("username", s.Username).Bool("rejoin", already).Msg("Joined voice channel")
	h.broadcastVoiceMembers()

	if already {
		return
	}

	h.goBackground("voice_notification", func(ctx context.Context) error {
		recipients, err := h.offlineRecipients(ctx, s.Email)
		if err != nil || len(recipients) == 0 {
			return err
		}
		return h.mailer.SendVoiceNotification(ctx, recipients, s.Username)
	})
}

// handleLeaveVoice removes c from the voice room. Leaving while not a member does nothing.
func (h *Hub) handleLeaveVoice(c *Client, s *Session, _ json.RawMessage) {
	h.mu.Lock()
	_, inVoice := h.voice[c]
	delete(h.voice, c)
	h.recordGaugesLocked()
	h.mu.Unlock()

	if !inVoice {
		return
	}

	c.logger.Info().Str("username", s.Username).Msg("Left voice channel")
	h.broadcastVoiceMembers()
}

// handleVoiceSignal relays an opaque signal to every other voice member. The signal is never
// inspected and never echoed to its sender. Signals from non-members are dropped.
func (h *Hub) handleVoiceSignal(c *Client, s *Session, payload json.RawMessage) {
	var req VoiceSignalPayload
	if !decodePayload(c, TypeVoiceSignal, payload, &req) {
		return
	}

	h.mu.RLock()
	_, inVoice := h.voice[c]
	targets := make([]*Client, 0, len(h.voice))
	if inVoice {
		for member := range h.voice {
			if member != c {
				targets = append(targets, member)
			}
		}
	}
	h.mu.RUnlock()

	if !inVoice {
		c.logger.Debug().Msg("Dropping voice_signal from connection outside the voice channel")
		return
	}

	h.deliver(TypeVoiceSignal, RelayedSignal{
		From:         s.UserID,
		FromUsername: s.Username,
		Signal:       req.Signal,
	}, targets)
}

// voiceMembers lists the voice room in join order.
func (h *Hub) voiceMembers() []VoiceMember {
	h.mu.RLock()
	entries := make([]voiceEntry, 0, len(h.voice))
	for _, e := range h.voice {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	members := make([]VoiceMember, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.member)
	}
	return members
}

func (h *Hub) broadcastVoiceMembers() {
	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()

	h.Broadcast(TypeVoiceUsers, h.voiceMembers())
}
