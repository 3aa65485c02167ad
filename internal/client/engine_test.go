package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzholl/callwire/internal/protocol"
)

// emitLog captures frames the engine pushes toward the server.
type emitLog struct {
	mu     sync.Mutex
	frames []protocol.Envelope
}

func (l *emitLog) send(ev protocol.Event, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, protocol.Envelope{Event: ev, Data: raw})
	return nil
}

func (l *emitLog) byEvent(ev protocol.Event) []protocol.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range l.frames {
		if env.Event == ev {
			out = append(out, env)
		}
	}
	return out
}

func newTestEngine(t *testing.T, readyTimeout time.Duration) (*Engine, *emitLog) {
	t.Helper()
	sent := &emitLog{}
	eng := NewEngine(NewSynthSource(), sent.send, EngineOptions{
		ReadyTimeout:     readyTimeout,
		TrackLiveTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, eng.Start(context.Background(), "call-1"))
	t.Cleanup(eng.Close)
	return eng, sent
}

func TestEngine_OfferWaitsForReady(t *testing.T) {
	eng, sent := newTestEngine(t, 5*time.Second)

	eng.SignalReady()
	eng.SignalReady() // more than once is fine

	require.NoError(t, eng.SendOffer(context.Background()))

	offers := sent.byEvent(protocol.EventOffer)
	require.Len(t, offers, 1)
	var sig protocol.OfferSignal
	require.NoError(t, offers[0].Unmarshal(&sig))
	assert.Equal(t, "offer", sig.Offer.Type)
	assert.NotEmpty(t, sig.Offer.SDP)
	assert.Equal(t, "call-1", string(sig.RoomID))
}

func TestEngine_OfferTimeoutProceedsAnyway(t *testing.T) {
	eng, sent := newTestEngine(t, 100*time.Millisecond)

	start := time.Now()
	require.NoError(t, eng.SendOffer(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, sent.byEvent(protocol.EventOffer), 1)
}

func TestEngine_OfferCancelled(t *testing.T) {
	eng, sent := newTestEngine(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, eng.SendOffer(ctx), context.Canceled)
	assert.Empty(t, sent.byEvent(protocol.EventOffer))
}

func TestEngine_OfferAnswerExchange(t *testing.T) {
	caller, callerSent := newTestEngine(t, time.Second)
	callee, calleeSent := newTestEngine(t, time.Second)

	caller.SignalReady()
	require.NoError(t, caller.SendOffer(context.Background()))

	offers := callerSent.byEvent(protocol.EventOffer)
	require.Len(t, offers, 1)
	var offer protocol.OfferSignal
	require.NoError(t, offers[0].Unmarshal(&offer))

	require.NoError(t, callee.HandleOffer(offer.Offer))

	answers := calleeSent.byEvent(protocol.EventAnswer)
	require.Len(t, answers, 1)
	var answer protocol.AnswerSignal
	require.NoError(t, answers[0].Unmarshal(&answer))
	assert.Equal(t, "answer", answer.Answer.Type)

	require.NoError(t, caller.HandleAnswer(answer.Answer))
}

func TestEngine_CandidatesQueueUntilRemoteDescription(t *testing.T) {
	caller, callerSent := newTestEngine(t, time.Second)
	callee, _ := newTestEngine(t, time.Second)

	mid := "0"
	idx := uint16(0)
	cand := protocol.ICECandidate{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}

	// Empty candidates are dropped outright.
	callee.HandleCandidate(protocol.ICECandidate{})
	assert.Equal(t, 0, callee.PendingCandidates())

	callee.HandleCandidate(cand)
	callee.HandleCandidate(cand)
	assert.Equal(t, 2, callee.PendingCandidates())

	caller.SignalReady()
	require.NoError(t, caller.SendOffer(context.Background()))
	var offer protocol.OfferSignal
	require.NoError(t, callerSent.byEvent(protocol.EventOffer)[0].Unmarshal(&offer))

	// The remote description flushes the queue.
	require.NoError(t, callee.HandleOffer(offer.Offer))
	assert.Equal(t, 0, callee.PendingCandidates())
}

func TestEngine_ToggleGatesWithoutRenegotiation(t *testing.T) {
	eng, sent := newTestEngine(t, time.Second)

	assert.False(t, eng.ToggleAudio())
	assert.True(t, eng.ToggleAudio())
	assert.False(t, eng.ToggleVideo())

	audio := sent.byEvent(protocol.EventAudioToggled)
	require.Len(t, audio, 2)
	var n protocol.RoomNotice
	require.NoError(t, audio[0].Unmarshal(&n))
	require.NotNil(t, n.Enabled)
	assert.False(t, *n.Enabled)

	assert.Len(t, sent.byEvent(protocol.EventVideoToggled), 1)
	// No new offer was generated by any toggle.
	assert.Empty(t, sent.byEvent(protocol.EventOffer))
}

func TestEngine_ScreenShareSwapsVideoOnly(t *testing.T) {
	eng, sent := newTestEngine(t, time.Second)
	ctx := context.Background()

	require.NoError(t, eng.StartScreenShare(ctx))
	// Starting again while sharing is a no-op.
	require.NoError(t, eng.StartScreenShare(ctx))
	assert.Len(t, sent.byEvent(protocol.EventStartScreenShare), 1)

	require.NoError(t, eng.StopScreenShare())
	require.NoError(t, eng.StopScreenShare())
	assert.Len(t, sent.byEvent(protocol.EventStopScreenShare), 1)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t, time.Second)

	eng.Close()
	eng.Close()
	assert.Equal(t, EngineEnded, eng.State())

	// Late signals after teardown are tolerated.
	eng.HandleCandidate(protocol.ICECandidate{Candidate: "candidate:1"})
	assert.NoError(t, eng.HandleAnswer(protocol.SDP{Type: "answer"}))
	assert.Error(t, eng.SendOffer(context.Background()))
}

func TestEngine_StartTwiceFails(t *testing.T) {
	eng, _ := newTestEngine(t, time.Second)
	assert.Error(t, eng.Start(context.Background(), "call-2"))
}
