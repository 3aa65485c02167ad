package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
	"github.com/mzholl/callwire/internal/store"
)

// DisconnectReason is sent to the remaining room members when a peer's
// transport drops without an explicit hang-up.
const DisconnectReason = "user-disconnected"

// Coordinator drives call lifecycle: registration, ringing, room
// readiness, accept/reject/end and cleanup on abrupt disconnect. All
// signaling fans out through the Relay; call records go through the
// store port.
type Coordinator struct {
	Registry *Registry
	Rooms    *RoomTracker
	Relay    *Relay
	Calls    store.CallStore

	mu    sync.Mutex
	ended map[domain.RoomID]struct{}
}

func NewCoordinator(registry *Registry, rooms *RoomTracker, relay *Relay, calls store.CallStore) *Coordinator {
	return &Coordinator{
		Registry: registry,
		Rooms:    rooms,
		Relay:    relay,
		Calls:    calls,
		ended:    make(map[domain.RoomID]struct{}),
	}
}

// RegisterUser binds the user identity to this connection and announces
// presence. A previous registration for the same user is displaced, not
// closed; that tab keeps its socket but stops receiving calls.
func (c *Coordinator) RegisterUser(cid domain.ConnID, uid domain.UserID) {
	if uid == "" {
		c.Relay.Send(cid, protocol.EventRegistrationError, protocol.RegistrationError{Message: "userId is required"})
		return
	}
	if len(uid) > domain.MaxUserIDLen {
		c.Relay.Send(cid, protocol.EventRegistrationError, protocol.RegistrationError{Message: "userId too long"})
		return
	}
	displaced, evicted := c.Registry.Register(uid, cid)
	if evicted {
		log.Info().Str("module", "app.coordinator").Str("user", string(uid)).Str("displaced", string(displaced)).Msg("previous connection displaced")
	}
	c.Relay.Send(cid, protocol.EventUserRegistered, protocol.UserRegistered{UserID: uid, SocketID: cid})
	c.Relay.Broadcast(cid, protocol.EventUserOnline, protocol.Presence{UserID: uid, Timestamp: time.Now().UnixMilli()})
}

// JoinRoom adds the connection to the call room. The join that grows the
// room to two is the readiness trigger: everyone in the room gets
// both-users-ready, which is what unblocks the caller's offer. A retried
// join from a member already present acks with room-joined but never
// re-fires readiness.
func (c *Coordinator) JoinRoom(cid domain.ConnID, room domain.RoomID, uid domain.UserID) {
	if room == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("join-room without room id")
		return
	}
	count, grew := c.Rooms.Join(room, cid)
	c.Relay.Send(cid, protocol.EventRoomJoined, protocol.RoomJoined{RoomID: room, UserCount: count})
	if !grew {
		return
	}
	c.Relay.Forward(room, cid, protocol.EventUserJoined, protocol.UserJoined{UserID: uid, SocketID: cid, RoomID: room})

	if count == 2 {
		ready := protocol.BothUsersReady{RoomID: room, UserCount: count}
		for _, member := range c.Rooms.MembersOf(room) {
			c.Relay.Send(member, protocol.EventBothUsersReady, ready)
		}
		log.Info().Str("module", "app.coordinator").Str("room", string(room)).Msg("both users ready")
	}
}

// LeaveRoom removes the connection without ending the call for anyone
// else. Clients use it to drop out of a room whose call already ended or
// was rejected, so the room empties without waiting for a disconnect.
func (c *Coordinator) LeaveRoom(cid domain.ConnID, room domain.RoomID) {
	if room == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("leave-room without room id")
		return
	}
	c.leave(room, cid)
}

// CallUser resolves the callee's live connection and rings it. When the
// callee is offline only the caller hears about it; nothing dangles
// server-side.
func (c *Coordinator) CallUser(cid domain.ConnID, p protocol.CallUser) {
	if p.UserToCall == "" || p.RoomID == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("call-user with missing fields")
		return
	}
	target, ok := c.Registry.Resolve(p.UserToCall)
	if !ok {
		log.Info().Str("module", "app.coordinator").Str("callee", string(p.UserToCall)).Msg("callee offline")
		c.Relay.Send(cid, protocol.EventCallError, protocol.CallError{Message: "recipient is offline"})
		return
	}
	c.Relay.Send(target, protocol.EventIncomingCall, protocol.IncomingCall{
		From:      p.From,
		Name:      p.Name,
		RoomID:    p.RoomID,
		Image:     p.Image,
		CallID:    p.CallID,
		Timestamp: time.Now().UnixMilli(),
	})
	c.Relay.Send(cid, protocol.EventCallInitiated, protocol.CallInitiated{Success: true, ReceiverID: p.UserToCall})
	log.Info().Str("module", "app.coordinator").Str("caller", string(p.From)).Str("callee", string(p.UserToCall)).Str("room", string(p.RoomID)).Msg("ringing")
}

// AcceptCall moves the record to ongoing and tells the caller's side.
// Membership changes happen via each client's own join-room.
func (c *Coordinator) AcceptCall(ctx context.Context, cid domain.ConnID, room domain.RoomID) {
	if room == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("accept-call without room id")
		return
	}
	c.updateStatusByRoom(ctx, room, domain.CallOngoing)
	c.Relay.Forward(room, cid, protocol.EventCallAccepted, protocol.CallAccepted{AcceptedBy: cid})
}

// RejectCall notifies the other member, updates the record and removes
// the rejecting connection from the room even though no media was ever
// established.
func (c *Coordinator) RejectCall(ctx context.Context, cid domain.ConnID, room domain.RoomID) {
	if room == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("reject-call without room id")
		return
	}
	c.Relay.Forward(room, cid, protocol.EventCallRejected, protocol.CallRejected{RejectedBy: cid})
	c.updateStatusByRoom(ctx, room, domain.CallRejected)
	c.leave(room, cid)
}

// EndCall is one-shot per room: the first end wins, a racing second end
// (local double click or a remote end arriving at the same time) is a
// no-op and produces no duplicate broadcast.
func (c *Coordinator) EndCall(ctx context.Context, cid domain.ConnID, room domain.RoomID, endedBy domain.UserID) {
	if room == "" {
		log.Warn().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("end-call without room id")
		return
	}
	c.endOnce(ctx, cid, room, endedBy, "ended")
	c.leave(room, cid)
}

// HandleDisconnect runs the full cleanup for a dropped transport: every
// room the connection was in is notified and left, then the identity
// mapping goes away. The remote party must never be left ringing a dead
// peer.
func (c *Coordinator) HandleDisconnect(ctx context.Context, cid domain.ConnID) {
	uid, _ := c.Registry.UserOf(cid)
	for _, room := range c.Rooms.RoomsOf(cid) {
		c.endOnce(ctx, cid, room, uid, DisconnectReason)
		c.leave(room, cid)
	}
	gone, wasCurrent := c.Registry.Unregister(cid)
	if wasCurrent {
		c.Relay.Broadcast(cid, protocol.EventUserOffline, protocol.Presence{UserID: gone, Timestamp: time.Now().UnixMilli()})
	}
	c.Registry.Unbind(cid)
	log.Info().Str("module", "app.coordinator").Str("conn", string(cid)).Msg("disconnect cleanup done")
}

// ForwardNotice relays a room-scoped notice verbatim (screen share,
// recording markers, mute toggles, latency pings).
func (c *Coordinator) ForwardNotice(cid domain.ConnID, ev protocol.Event, p protocol.RoomNotice) {
	if p.RoomID == "" {
		log.Warn().Str("module", "app.coordinator").Str("event", string(ev)).Msg("notice without room id")
		return
	}
	c.Relay.Forward(p.RoomID, cid, ev, p)
}

func (c *Coordinator) endOnce(ctx context.Context, cid domain.ConnID, room domain.RoomID, endedBy domain.UserID, reason string) {
	c.mu.Lock()
	if _, done := c.ended[room]; done {
		c.mu.Unlock()
		log.Debug().Str("module", "app.coordinator").Str("room", string(room)).Msg("end already processed")
		return
	}
	c.ended[room] = struct{}{}
	c.mu.Unlock()

	c.Relay.Forward(room, cid, protocol.EventCallEnded, protocol.CallEnded{EndedBy: endedBy, Reason: reason})
	c.updateStatusByRoom(ctx, room, domain.CallEnded)
}

// leave removes the member and, once the room is gone, retires its
// one-shot guard so a future room with the same id starts clean.
func (c *Coordinator) leave(room domain.RoomID, cid domain.ConnID) {
	if c.Rooms.Leave(room, cid) == 0 {
		c.mu.Lock()
		delete(c.ended, room)
		c.mu.Unlock()
	}
}

// updateStatusByRoom is best-effort: the record may belong to a store
// this node cannot reach, signaling still has to proceed.
func (c *Coordinator) updateStatusByRoom(ctx context.Context, room domain.RoomID, status domain.CallStatus) {
	if c.Calls == nil {
		return
	}
	call, err := c.Calls.FindByRoom(ctx, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("room", string(room)).Msg("no call record for room")
		return
	}
	if err := c.Calls.UpdateStatus(ctx, call.ID, status); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("call", string(call.ID)).Str("status", string(status)).Msg("status update failed")
	}
}
