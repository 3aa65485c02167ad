package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
)

// RoomTracker maps call rooms to the set of joined connections. Rooms are
// created on first join and deleted the moment the last member leaves, so
// an empty room never exists.
type RoomTracker struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.ConnID]struct{}
}

func NewRoomTracker() *RoomTracker {
	return &RoomTracker{rooms: make(map[domain.RoomID]map[domain.ConnID]struct{})}
}

// Join adds the connection to the room and returns the member count plus
// whether the join actually grew the membership. A duplicate join from an
// existing member reports grew=false so callers can tell a retry from a
// real arrival.
func (t *RoomTracker) Join(room domain.RoomID, cid domain.ConnID) (count int, grew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		t.rooms[room] = members
	}
	if _, present := members[cid]; !present {
		members[cid] = struct{}{}
		grew = true
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(cid)).Int("count", len(members)).Bool("grew", grew).Msg("joined room")
	return len(members), grew
}

// Leave removes the connection and returns the remaining count, deleting
// the room entirely at zero. Safe for unknown rooms and members.
func (t *RoomTracker) Leave(room domain.RoomID, cid domain.ConnID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[room]
	if !ok {
		return 0
	}
	delete(members, cid)
	if len(members) == 0 {
		delete(t.rooms, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room deleted")
		return 0
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(cid)).Int("count", len(members)).Msg("left room")
	return len(members)
}

// MembersOf snapshots the room's membership, empty for unknown rooms.
func (t *RoomTracker) MembersOf(room domain.RoomID) []domain.ConnID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := t.rooms[room]
	out := make([]domain.ConnID, 0, len(members))
	for cid := range members {
		out = append(out, cid)
	}
	return out
}

// RoomsOf lists every room the connection currently belongs to. Used by
// disconnect cleanup, which must visit all of them.
func (t *RoomTracker) RoomsOf(cid domain.ConnID) []domain.RoomID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []domain.RoomID
	for room, members := range t.rooms {
		if _, ok := members[cid]; ok {
			out = append(out, room)
		}
	}
	return out
}

// Exists reports whether the room currently has members.
func (t *RoomTracker) Exists(room domain.RoomID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[room]
	return ok
}
