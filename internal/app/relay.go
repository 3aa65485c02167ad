package app

import (
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

// Relay forwards room-scoped signaling to every member except the sender.
// Delivery is fire and forget: a member whose send buffer is full simply
// misses the message, the negotiation layer owns the timeouts.
type Relay struct {
	registry *Registry
	rooms    *RoomTracker
}

func NewRelay(registry *Registry, rooms *RoomTracker) *Relay {
	return &Relay{registry: registry, rooms: rooms}
}

// Forward encodes once and pushes to all other room members. Returns how
// many members were handed the frame. A missing room id or payload is a
// logged no-op, one malformed message must never take the relay down.
func (r *Relay) Forward(room domain.RoomID, from domain.ConnID, ev protocol.Event, payload any) int {
	if room == "" {
		log.Warn().Str("module", "app.relay").Str("event", string(ev)).Msg("dropped: missing room id")
		return 0
	}
	if payload == nil {
		log.Warn().Str("module", "app.relay").Str("event", string(ev)).Str("room", string(room)).Msg("dropped: missing payload")
		return 0
	}
	frame, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", string(ev)).Msg("encode failed")
		return 0
	}

	sent := 0
	for _, cid := range r.rooms.MembersOf(room) {
		if cid == from {
			continue
		}
		peer, ok := r.registry.Peer(cid)
		if !ok {
			continue
		}
		if err := peer.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("event", string(ev)).Str("dst", string(cid)).Msg("drop frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.relay").Str("event", string(ev)).Str("room", string(room)).Int("sent_to", sent).Msg("forwarded")
	return sent
}

// Send targets a single connection.
func (r *Relay) Send(cid domain.ConnID, ev protocol.Event, payload any) bool {
	peer, ok := r.registry.Peer(cid)
	if !ok {
		return false
	}
	frame, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", string(ev)).Msg("encode failed")
		return false
	}
	if err := peer.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("event", string(ev)).Str("dst", string(cid)).Msg("drop frame")
		return false
	}
	return true
}

// Broadcast pushes to every live connection except one. Used for
// presence notices.
func (r *Relay) Broadcast(except domain.ConnID, ev protocol.Event, payload any) {
	frame, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", string(ev)).Msg("encode failed")
		return
	}
	for _, snap := range r.registry.Peers(except) {
		if err := snap.Peer.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("event", string(ev)).Str("dst", string(snap.Conn)).Msg("drop frame")
		}
	}
}
