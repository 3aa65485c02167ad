package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/client/notify"
	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

var (
	ErrCallInProgress = errors.New("another call is in progress")
	ErrNoIncomingCall = errors.New("no incoming call to answer")
)

// Phase is the client-side view of the call lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequested
	PhaseRinging
	PhaseOngoing
)

// CallRecords is the persistence collaborator: creating a record yields
// the call and room ids signaling runs on.
type CallRecords interface {
	Create(ctx context.Context, caller, callee domain.UserID) (*domain.Call, error)
	UpdateStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error
}

// Directory resolves display data for a user id.
type Directory interface {
	Lookup(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Manager is the call state machine: it owns at most one engine at a
// time and translates socket events into engine and notify actions.
type Manager struct {
	sock    *Socket
	records CallRecords
	dir     Directory
	channel *notify.Channel
	media   MediaSource
	opts    EngineOptions
	selfID  domain.UserID
	log     zerolog.Logger

	mu     sync.Mutex
	phase  Phase
	engine *Engine
	roomID domain.RoomID
	callID domain.CallID

	onIncoming func(notify.Record)
	onRemote   func(*RemoteStream)
	onEnded    func(reason string)
	onError    func(msg string)
}

func NewManager(sock *Socket, records CallRecords, dir Directory, channel *notify.Channel, media MediaSource, selfID domain.UserID, opts EngineOptions) *Manager {
	m := &Manager{
		sock:    sock,
		records: records,
		dir:     dir,
		channel: channel,
		media:   media,
		opts:    opts,
		selfID:  selfID,
		log:     log.With().Str("module", "client.call").Str("user", string(selfID)).Logger(),
	}
	m.wire()
	return m
}

// UI hooks. Set before the socket runs.
func (m *Manager) OnIncoming(fn func(notify.Record)) { m.onIncoming = fn }
func (m *Manager) OnRemoteStream(fn func(*RemoteStream)) {
	m.onRemote = fn
}
func (m *Manager) OnEnded(fn func(reason string)) { m.onEnded = fn }
func (m *Manager) OnError(fn func(msg string))    { m.onError = fn }

func (m *Manager) wire() {
	m.sock.On(protocol.EventIncomingCall, m.handleIncoming)
	m.sock.On(protocol.EventBothUsersReady, func(protocol.Envelope) {
		if eng := m.currentEngine(); eng != nil {
			eng.SignalReady()
		}
	})
	m.sock.On(protocol.EventOffer, func(env protocol.Envelope) {
		var p protocol.OfferRelay
		if err := env.Unmarshal(&p); err != nil {
			m.log.Warn().Err(err).Msg("bad offer relay")
			return
		}
		if eng := m.currentEngine(); eng != nil {
			if err := eng.HandleOffer(p.Offer); err != nil {
				m.log.Error().Err(err).Msg("handle offer")
			}
		}
	})
	m.sock.On(protocol.EventAnswer, func(env protocol.Envelope) {
		var p protocol.AnswerRelay
		if err := env.Unmarshal(&p); err != nil {
			m.log.Warn().Err(err).Msg("bad answer relay")
			return
		}
		if eng := m.currentEngine(); eng != nil {
			if err := eng.HandleAnswer(p.Answer); err != nil {
				m.log.Error().Err(err).Msg("handle answer")
			}
		}
	})
	m.sock.On(protocol.EventICECandidate, func(env protocol.Envelope) {
		var p protocol.CandidateRelay
		if err := env.Unmarshal(&p); err != nil {
			return
		}
		if eng := m.currentEngine(); eng != nil {
			eng.HandleCandidate(p.Candidate)
		}
	})
	m.sock.On(protocol.EventCallInitiated, func(protocol.Envelope) {
		m.mu.Lock()
		if m.phase == PhaseRequested {
			m.phase = PhaseRinging
		}
		m.mu.Unlock()
	})
	m.sock.On(protocol.EventCallError, func(env protocol.Envelope) {
		var p protocol.CallError
		_ = env.Unmarshal(&p)
		m.log.Info().Str("reason", p.Message).Msg("call failed")
		m.teardown(false, p.Message)
		if m.onError != nil {
			m.onError(p.Message)
		}
	})
	m.sock.On(protocol.EventCallRejected, func(protocol.Envelope) {
		m.teardown(false, "rejected")
	})
	m.sock.On(protocol.EventCallEnded, func(env protocol.Envelope) {
		var p protocol.CallEnded
		_ = env.Unmarshal(&p)
		m.teardown(false, p.Reason)
	})
	m.sock.On(protocol.EventPing, func(env protocol.Envelope) {
		var p protocol.RoomNotice
		if err := env.Unmarshal(&p); err != nil {
			return
		}
		if err := m.sock.Emit(protocol.EventPong, protocol.RoomNotice{RoomID: p.RoomID, UserID: m.selfID}); err != nil {
			m.log.Debug().Err(err).Msg("pong emit failed")
		}
	})
}

func (m *Manager) handleIncoming(env protocol.Envelope) {
	var p protocol.IncomingCall
	if err := env.Unmarshal(&p); err != nil {
		m.log.Warn().Err(err).Msg("bad incoming-call")
		return
	}
	rec := notify.Record{
		From:   p.From,
		Name:   p.Name,
		RoomID: p.RoomID,
		Image:  p.Image,
		CallID: p.CallID,
	}
	if err := m.channel.Store(rec); err != nil {
		m.log.Warn().Err(err).Msg("notify store failed")
	}
	if m.onIncoming != nil {
		m.onIncoming(rec)
	}
}

func (m *Manager) currentEngine() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// Phase returns the current call phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// PlaceCall creates the persisted record, starts a fresh engine and
// rings the callee. The offer goes out once both-users-ready arrives,
// or after the bounded wait expires.
func (m *Manager) PlaceCall(ctx context.Context, callee domain.UserID) (*domain.Call, error) {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return nil, ErrCallInProgress
	}
	m.phase = PhaseRequested
	m.mu.Unlock()

	rec, err := m.records.Create(ctx, m.selfID, callee)
	if err != nil {
		m.resetPhase()
		return nil, err
	}

	name, image := m.selfDisplay(ctx)

	eng := NewEngine(m.media, m.sock.Emit, m.opts)
	eng.OnRemoteStream(m.onRemote)
	if err := eng.Start(ctx, rec.RoomID); err != nil {
		m.resetPhase()
		return nil, err
	}

	m.mu.Lock()
	m.engine = eng
	m.roomID = rec.RoomID
	m.callID = rec.ID
	m.mu.Unlock()

	if err := m.sock.Emit(protocol.EventCallUser, protocol.CallUser{
		UserToCall: callee,
		From:       m.selfID,
		Name:       name,
		RoomID:     rec.RoomID,
		Image:      image,
		CallID:     rec.ID,
	}); err != nil {
		m.teardown(false, "signaling unavailable")
		return nil, err
	}
	if err := m.sock.Emit(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: rec.RoomID, UserID: m.selfID}); err != nil {
		m.teardown(false, "signaling unavailable")
		return nil, err
	}

	go func() {
		if err := eng.SendOffer(ctx); err != nil {
			m.log.Error().Err(err).Msg("send offer")
		}
	}()

	m.log.Info().Str("callee", string(callee)).Str("room", string(rec.RoomID)).Msg("call placed")
	return rec, nil
}

// Answer picks up the active incoming call: record goes ongoing, the
// other windows get the accepted marker, and this side joins the room.
func (m *Manager) Answer(ctx context.Context) error {
	rec := m.channel.Read()
	if rec == nil {
		return ErrNoIncomingCall
	}
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	m.phase = PhaseOngoing
	m.mu.Unlock()

	if err := m.records.UpdateStatus(ctx, rec.CallID, domain.CallOngoing); err != nil {
		m.log.Warn().Err(err).Msg("record update failed")
	}
	m.channel.MarkAccepted(rec.RoomID)
	m.channel.Clear()

	eng := NewEngine(m.media, m.sock.Emit, m.opts)
	eng.OnRemoteStream(m.onRemote)
	if err := eng.Start(ctx, rec.RoomID); err != nil {
		m.resetPhase()
		return err
	}

	m.mu.Lock()
	m.engine = eng
	m.roomID = rec.RoomID
	m.callID = rec.CallID
	m.mu.Unlock()

	if err := m.sock.Emit(protocol.EventAcceptCall, protocol.RoomRef{RoomID: rec.RoomID}); err != nil {
		m.teardown(false, "signaling unavailable")
		return err
	}
	if err := m.sock.Emit(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: rec.RoomID, UserID: m.selfID}); err != nil {
		m.teardown(false, "signaling unavailable")
		return err
	}
	m.log.Info().Str("room", string(rec.RoomID)).Msg("call answered")
	return nil
}

// Reject declines the active incoming call and dismisses it everywhere.
func (m *Manager) Reject(ctx context.Context) error {
	rec := m.channel.Read()
	if rec == nil {
		return ErrNoIncomingCall
	}
	if err := m.sock.Emit(protocol.EventRejectCall, protocol.RoomRef{RoomID: rec.RoomID}); err != nil {
		m.log.Warn().Err(err).Msg("reject emit failed")
	}
	if err := m.records.UpdateStatus(ctx, rec.CallID, domain.CallRejected); err != nil {
		m.log.Warn().Err(err).Msg("record update failed")
	}
	m.channel.MarkRejected(rec.RoomID)
	m.channel.Clear()
	m.log.Info().Str("room", string(rec.RoomID)).Msg("call rejected")
	return nil
}

// HangUp ends the active call. Calling it twice, or racing it against a
// remote call-ended, runs the teardown exactly once.
func (m *Manager) HangUp() {
	m.teardown(true, "ended")
}

// Engine exposes the active negotiation engine for in-call controls
// (toggles, screen share). Nil when idle.
func (m *Manager) Engine() *Engine { return m.currentEngine() }

func (m *Manager) resetPhase() {
	m.mu.Lock()
	m.phase = PhaseIdle
	m.mu.Unlock()
}

// teardown is the single exit path. The phase transition is the
// one-shot guard: whoever moves us back to idle runs the cleanup, every
// later caller sees idle and leaves.
func (m *Manager) teardown(emitEnd bool, reason string) {
	m.mu.Lock()
	if m.phase == PhaseIdle {
		m.mu.Unlock()
		return
	}
	room := m.roomID
	eng := m.engine
	m.phase = PhaseIdle
	m.engine = nil
	m.roomID = ""
	m.callID = ""
	m.mu.Unlock()

	// Either path vacates the server-side room: end-call for a local
	// hang-up, leave-room when the call already ended elsewhere (remote
	// end, rejection, routing error). Without the leave the room would
	// hold this connection until its transport drops.
	if room != "" {
		if emitEnd {
			if err := m.sock.Emit(protocol.EventEndCall, protocol.EndCall{RoomID: room, EndedBy: m.selfID}); err != nil {
				m.log.Warn().Err(err).Msg("end-call emit failed")
			}
		} else if err := m.sock.Emit(protocol.EventLeaveRoom, protocol.RoomRef{RoomID: room}); err != nil {
			m.log.Warn().Err(err).Msg("leave-room emit failed")
		}
	}
	if eng != nil {
		eng.Close()
	}
	m.channel.Clear()
	m.log.Info().Str("room", string(room)).Str("reason", reason).Msg("call torn down")
	if m.onEnded != nil {
		m.onEnded(reason)
	}
}

func (m *Manager) selfDisplay(ctx context.Context) (name, image string) {
	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	u, err := m.dir.Lookup(lookupCtx, m.selfID)
	if err != nil || u == nil {
		return string(m.selfID), ""
	}
	return u.Username, u.Avatar
}
