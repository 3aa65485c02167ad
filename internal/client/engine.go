package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

// EngineState tracks one call attempt through the negotiation engine.
type EngineState int32

const (
	EngineNew EngineState = iota
	EngineRinging
	EngineOngoing
	EngineEnded
)

// SendFunc pushes a signaling frame toward the server.
type SendFunc func(ev protocol.Event, payload any) error

type EngineOptions struct {
	RTC              webrtc.Configuration
	ReadyTimeout     time.Duration
	TrackLiveTimeout time.Duration
}

func DefaultRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Engine owns one PeerConnection per call attempt; an engine is never
// reused, a new attempt gets a fresh one. It translates relay messages
// into local state changes and decides when to send an offer.
type Engine struct {
	media MediaSource
	send  SendFunc
	opts  EngineOptions
	log   zerolog.Logger

	mu     sync.Mutex
	state  EngineState
	roomID domain.RoomID
	pc     *webrtc.PeerConnection

	audio       *GatedTrack
	video       *GatedTrack
	videoSender *webrtc.RTPSender
	sharing     bool

	remoteSet bool
	pending   []webrtc.ICECandidateInit

	ready     chan struct{}
	readyOnce sync.Once

	remote     *RemoteStream
	remoteOnce sync.Once
	onRemote   func(*RemoteStream)
	onState    func(webrtc.PeerConnectionState)
}

func NewEngine(media MediaSource, send SendFunc, opts EngineOptions) *Engine {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}
	if opts.TrackLiveTimeout <= 0 {
		opts.TrackLiveTimeout = 5 * time.Second
	}
	if len(opts.RTC.ICEServers) == 0 {
		opts.RTC = DefaultRTCConfig()
	}
	return &Engine{
		media: media,
		send:  send,
		opts:  opts,
		log:   log.With().Str("module", "client.engine").Logger(),
		ready: make(chan struct{}),
	}
}

// OnRemoteStream sets the callback fired once the remote stream is
// exposed (after the live wait). Must be set before Start.
func (e *Engine) OnRemoteStream(fn func(*RemoteStream)) { e.onRemote = fn }

// OnStateChange reports the underlying connection state, which is where
// a negotiation that silently went nowhere eventually surfaces as failed.
func (e *Engine) OnStateChange(fn func(webrtc.PeerConnectionState)) { e.onState = fn }

// Start builds the fresh PeerConnection, acquires local media and
// attaches the two outbound tracks. The call is ringing after this.
func (e *Engine) Start(ctx context.Context, roomID domain.RoomID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EngineNew {
		return fmt.Errorf("engine already started")
	}

	audio, video, err := e.media.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire media: %w", err)
	}
	// Some platforms hand over transiently muted tracks; force the gates
	// open after acquisition.
	audio.SetEnabled(true)
	video.SetEnabled(true)

	pc, err := webrtc.NewPeerConnection(e.opts.RTC)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	if _, err := pc.AddTrack(audio.Track()); err != nil {
		_ = pc.Close()
		return fmt.Errorf("add audio track: %w", err)
	}
	videoSender, err := pc.AddTrack(video.Track())
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("add video track: %w", err)
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		ci := cand.ToJSON()
		out := protocol.ICECandidate{Candidate: ci.Candidate, SDPMid: ci.SDPMid, SDPMLineIndex: ci.SDPMLineIndex}
		if err := e.send(protocol.EventICECandidate, protocol.CandidateSignal{RoomID: roomID, Candidate: out}); err != nil {
			e.log.Warn().Err(err).Msg("candidate send failed")
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.log.Info().Str("state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateConnected {
			e.mu.Lock()
			if e.state == EngineRinging {
				e.state = EngineOngoing
			}
			e.mu.Unlock()
		}
		if e.onState != nil {
			e.onState(s)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.handleRemoteTrack(ctx, track)
	})

	e.pc = pc
	e.roomID = roomID
	e.audio = audio
	e.video = video
	e.videoSender = videoSender
	e.state = EngineRinging
	e.log.Info().Str("room", string(roomID)).Msg("engine started")
	return nil
}

// SignalReady unblocks the initiator's offer. Called when
// both-users-ready arrives; safe to call more than once.
func (e *Engine) SignalReady() {
	e.readyOnce.Do(func() { close(e.ready) })
}

// SendOffer waits for both parties (bounded) and sends the offer. On
// timeout it proceeds anyway: an offer into a half-empty room beats a
// caller stuck forever, and the connection state reports the truth later.
func (e *Engine) SendOffer(ctx context.Context) error {
	timer := time.NewTimer(e.opts.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-e.ready:
	case <-timer.C:
		e.log.Warn().Dur("timeout", e.opts.ReadyTimeout).Msg("both-ready wait timed out, sending offer anyway")
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded {
		return fmt.Errorf("engine ended")
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	return e.send(protocol.EventOffer, protocol.OfferSignal{
		RoomID: e.roomID,
		Offer:  protocol.SDP{Type: offer.Type.String(), SDP: offer.SDP},
	})
}

// HandleOffer answers immediately; the answerer side has no ready gate.
func (e *Engine) HandleOffer(sdp protocol.SDP) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded {
		return nil
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp.SDP}
	if err := e.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	e.remoteSet = true
	e.flushPendingLocked()

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	return e.send(protocol.EventAnswer, protocol.AnswerSignal{
		RoomID: e.roomID,
		Answer: protocol.SDP{Type: answer.Type.String(), SDP: answer.SDP},
	})
}

// HandleAnswer completes the initiator's negotiation.
func (e *Engine) HandleAnswer(sdp protocol.SDP) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded {
		return nil
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp.SDP}
	if err := e.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	e.remoteSet = true
	e.flushPendingLocked()
	return nil
}

// HandleCandidate applies a remote candidate, queueing any that arrive
// before the remote description is in place. Duplicates and strays after
// teardown are tolerated silently.
func (e *Engine) HandleCandidate(c protocol.ICECandidate) {
	if c.Candidate == "" {
		return
	}
	ci := webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded {
		return
	}
	if !e.remoteSet {
		e.pending = append(e.pending, ci)
		return
	}
	if err := e.pc.AddICECandidate(ci); err != nil {
		e.log.Debug().Err(err).Msg("add candidate failed")
	}
}

func (e *Engine) flushPendingLocked() {
	for _, ci := range e.pending {
		if err := e.pc.AddICECandidate(ci); err != nil {
			e.log.Debug().Err(err).Msg("flush candidate failed")
		}
	}
	e.pending = nil
}

// PendingCandidates reports how many candidates are queued waiting for
// the remote description.
func (e *Engine) PendingCandidates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) handleRemoteTrack(ctx context.Context, track *webrtc.TrackRemote) {
	e.mu.Lock()
	if e.remote == nil {
		e.remote = newRemoteStream()
	}
	rs := e.remote
	e.mu.Unlock()

	rs.addTrack(track)
	go rs.pump(track)

	// Expose the combined stream once, after the first track reports
	// live (bounded wait; a muted-forever track still surfaces).
	e.remoteOnce.Do(func() {
		go func() {
			if !rs.WaitLive(ctx, e.opts.TrackLiveTimeout) {
				e.log.Warn().Dur("timeout", e.opts.TrackLiveTimeout).Msg("remote track never went live, exposing anyway")
			}
			if e.onRemote != nil {
				e.onRemote(rs)
			}
		}()
	})
}

// RemoteStream returns the combined remote stream, nil before any remote
// track arrived.
func (e *Engine) RemoteStream() *RemoteStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remote
}

// StartScreenShare swaps only the outbound video track for a display
// capture; audio is untouched.
func (e *Engine) StartScreenShare(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded {
		return fmt.Errorf("engine ended")
	}
	if e.sharing {
		return nil
	}
	screen, err := e.media.AcquireScreen(ctx)
	if err != nil {
		return fmt.Errorf("acquire screen: %w", err)
	}
	if err := e.videoSender.ReplaceTrack(screen); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}
	e.sharing = true
	if err := e.send(protocol.EventStartScreenShare, protocol.RoomNotice{RoomID: e.roomID}); err != nil {
		e.log.Warn().Err(err).Msg("screen-share notice failed")
	}
	return nil
}

// StopScreenShare restores the camera track. Also the path for the
// platform-native "stop sharing" control.
func (e *Engine) StopScreenShare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded || !e.sharing {
		return nil
	}
	if err := e.videoSender.ReplaceTrack(e.video.Track()); err != nil {
		return fmt.Errorf("restore camera track: %w", err)
	}
	e.sharing = false
	if err := e.send(protocol.EventStopScreenShare, protocol.RoomNotice{RoomID: e.roomID}); err != nil {
		e.log.Warn().Err(err).Msg("screen-share notice failed")
	}
	return nil
}

// ToggleAudio flips the outbound audio gate and returns the new enabled
// state. No renegotiation; the far side observes silence.
func (e *Engine) ToggleAudio() bool {
	return e.toggle(e.audio, protocol.EventAudioToggled)
}

// ToggleVideo flips the outbound video gate.
func (e *Engine) ToggleVideo() bool {
	return e.toggle(e.video, protocol.EventVideoToggled)
}

func (e *Engine) toggle(track *GatedTrack, ev protocol.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineEnded || track == nil {
		return false
	}
	next := !track.Enabled()
	track.SetEnabled(next)
	if err := e.send(ev, protocol.RoomNotice{RoomID: e.roomID, Enabled: &next}); err != nil {
		e.log.Warn().Err(err).Msg("toggle notice failed")
	}
	return next
}

// State returns the engine's lifecycle state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close tears the attempt down: stop capture, close the connection,
// release references. Only the first call from ringing/ongoing does
// anything; from ended it is a no-op by construction.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.state == EngineEnded {
		e.mu.Unlock()
		return
	}
	e.state = EngineEnded
	pc := e.pc
	e.pc = nil
	e.audio = nil
	e.video = nil
	e.videoSender = nil
	e.pending = nil
	e.mu.Unlock()

	// Cleanup is best-effort-complete: one failing step must not stop
	// the rest.
	if err := e.media.Close(); err != nil {
		e.log.Warn().Err(err).Msg("media close failed")
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			e.log.Warn().Err(err).Msg("peer connection close failed")
		}
	}
	e.log.Info().Str("room", string(e.roomID)).Msg("engine closed")
}
