package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzholl/callwire/internal/protocol"
)

// fakePeer captures frames handed to TrySend, optionally refusing them
// to simulate a full send buffer.
type fakePeer struct {
	mu     sync.Mutex
	frames [][]byte
	refuse bool
	closed bool
}

func (p *fakePeer) TrySend(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refuse {
		return errors.New("send buffer full")
	}
	p.frames = append(p.frames, data)
	return nil
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) events(t *testing.T) []protocol.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Event, 0, len(p.frames))
	for _, frame := range p.frames {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		out = append(out, env.Event)
	}
	return out
}

func (p *fakePeer) last(t *testing.T) protocol.Envelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.frames)
	env, err := protocol.Decode(p.frames[len(p.frames)-1])
	require.NoError(t, err)
	return env
}

func newRelayFixture() (*Relay, *Registry, *RoomTracker) {
	registry := NewRegistry()
	rooms := NewRoomTracker()
	return NewRelay(registry, rooms), registry, rooms
}

func TestRelay_ForwardExcludesSender(t *testing.T) {
	relay, registry, rooms := newRelayFixture()
	sender, other := &fakePeer{}, &fakePeer{}
	registry.Bind("a", sender)
	registry.Bind("b", other)
	rooms.Join("call-1", "a")
	rooms.Join("call-1", "b")

	sent := relay.Forward("call-1", "a", protocol.EventOffer, protocol.OfferRelay{
		Offer: protocol.SDP{Type: "offer", SDP: "v=0"},
		From:  "a",
	})

	assert.Equal(t, 1, sent)
	assert.Empty(t, sender.events(t), "sender must not receive its own signal")
	assert.Equal(t, []protocol.Event{protocol.EventOffer}, other.events(t))
}

func TestRelay_ForwardValidation(t *testing.T) {
	relay, registry, rooms := newRelayFixture()
	peer := &fakePeer{}
	registry.Bind("b", peer)
	rooms.Join("call-1", "a")
	rooms.Join("call-1", "b")

	assert.Equal(t, 0, relay.Forward("", "a", protocol.EventOffer, protocol.OfferRelay{}))
	assert.Equal(t, 0, relay.Forward("call-1", "a", protocol.EventOffer, nil))
	assert.Equal(t, 0, relay.Forward("ghost", "a", protocol.EventOffer, protocol.OfferRelay{}))
	assert.Empty(t, peer.frames)
}

func TestRelay_ForwardFireAndForget(t *testing.T) {
	relay, registry, rooms := newRelayFixture()
	slow := &fakePeer{refuse: true}
	fine := &fakePeer{}
	registry.Bind("b", slow)
	registry.Bind("c", fine)
	rooms.Join("call-1", "a")
	rooms.Join("call-1", "b")
	rooms.Join("call-1", "c")

	sent := relay.Forward("call-1", "a", protocol.EventICECandidate, protocol.CandidateRelay{
		Candidate: protocol.ICECandidate{Candidate: "candidate:1"},
		From:      "a",
	})

	// The stalled member misses the frame; the healthy one still gets it.
	assert.Equal(t, 1, sent)
	assert.Empty(t, slow.frames)
	assert.Len(t, fine.frames, 1)
}

func TestRelay_SendAndBroadcast(t *testing.T) {
	relay, registry, _ := newRelayFixture()
	a, b, c := &fakePeer{}, &fakePeer{}, &fakePeer{}
	registry.Bind("a", a)
	registry.Bind("b", b)
	registry.Bind("c", c)

	assert.True(t, relay.Send("b", protocol.EventCallError, protocol.CallError{Message: "recipient is offline"}))
	assert.False(t, relay.Send("ghost", protocol.EventCallError, protocol.CallError{}))

	relay.Broadcast("a", protocol.EventUserOnline, protocol.Presence{UserID: "alice"})
	assert.Empty(t, a.events(t))
	assert.Equal(t, []protocol.Event{protocol.EventCallError, protocol.EventUserOnline}, b.events(t))
	assert.Equal(t, []protocol.Event{protocol.EventUserOnline}, c.events(t))
}
