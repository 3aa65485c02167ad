package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
)

// Peer is the transport endpoint of one live connection.
// Owned by the adapter; the adapter must Close() it.
type Peer interface {
	TrySend(data []byte) error
	Close()
}

// PeerSnap pairs a connection id with its transport for fan-out.
type PeerSnap struct {
	Conn domain.ConnID
	Peer Peer
}

// Registry tracks live connections and the user identity bound to each.
// At most one connection is registered per user at any instant; a new
// registration displaces the previous one instead of closing it.
type Registry struct {
	mu     sync.RWMutex
	peers  map[domain.ConnID]Peer
	byUser map[domain.UserID]domain.ConnID
	byConn map[domain.ConnID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		peers:  make(map[domain.ConnID]Peer),
		byUser: make(map[domain.UserID]domain.ConnID),
		byConn: make(map[domain.ConnID]domain.UserID),
	}
}

// Bind attaches the transport endpoint for a freshly accepted connection.
func (r *Registry) Bind(cid domain.ConnID, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[cid] = p
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("bound connection")
}

// Unbind forgets the transport endpoint. Safe for unknown ids.
func (r *Registry) Unbind(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("unbound connection")
}

// Peer returns the transport endpoint for a connection id.
func (r *Registry) Peer(cid domain.ConnID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[cid]
	return p, ok
}

// Peers snapshots every live connection except the excluded one.
func (r *Registry) Peers(except domain.ConnID) []PeerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerSnap, 0, len(r.peers))
	for cid, p := range r.peers {
		if cid == except {
			continue
		}
		out = append(out, PeerSnap{Conn: cid, Peer: p})
	}
	return out
}

// Register binds userID to connID, last write wins. When the user already
// had a different live connection that mapping is evicted first and
// returned as displaced; the old connection stays open but is no longer a
// routing target. Registering the same pair twice is a no-op.
func (r *Registry) Register(uid domain.UserID, cid domain.ConnID) (displaced domain.ConnID, evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[uid]; ok {
		if prev == cid {
			return "", false
		}
		delete(r.byConn, prev)
		displaced, evicted = prev, true
	}
	// A connection re-registering as a different user drops its old identity.
	if prevUser, ok := r.byConn[cid]; ok && prevUser != uid {
		delete(r.byUser, prevUser)
	}
	r.byUser[uid] = cid
	r.byConn[cid] = uid

	ev := log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(cid))
	if evicted {
		ev = ev.Str("displaced", string(displaced))
	}
	ev.Msg("registered user")
	return displaced, evicted
}

// Resolve returns the currently-registered connection for a user.
func (r *Registry) Resolve(uid domain.UserID) (domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byUser[uid]
	return cid, ok
}

// UserOf returns the user registered on a connection, if any.
func (r *Registry) UserOf(cid domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.byConn[cid]
	return uid, ok
}

// Unregister removes both directions of the mapping for whatever user was
// bound to this connection. wasCurrent is false when the connection had
// already been displaced by a newer registration, so a stale tab going
// away must not be reported as the user going offline. No-op for
// connections that never registered.
func (r *Registry) Unregister(cid domain.ConnID) (uid domain.UserID, wasCurrent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.byConn[cid]
	if !ok {
		return "", false
	}
	delete(r.byConn, cid)
	if r.byUser[uid] == cid {
		delete(r.byUser, uid)
		wasCurrent = true
	}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(cid)).Bool("was_current", wasCurrent).Msg("unregistered user")
	return uid, wasCurrent
}
