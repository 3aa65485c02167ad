// Package client is the Go peer of the signaling server: a reconnecting
// socket, the WebRTC negotiation engine and the call state machine that
// ties them together.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/protocol"
)

var ErrNotConnected = errors.New("socket not connected")

// Handler receives the decoded envelope of one event. Handlers run on
// the socket's read goroutine; keep them short.
type Handler func(env protocol.Envelope)

// Socket keeps one live connection to the signaling server, reconnecting
// with exponential backoff (unlimited attempts) and re-registering the
// user after every successful dial.
type Socket struct {
	url    string
	userID domain.UserID
	log    zerolog.Logger

	initial time.Duration
	max     time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[protocol.Event][]Handler
}

func NewSocket(url string, uid domain.UserID, initial, max time.Duration) *Socket {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	return &Socket{
		url:      url,
		userID:   uid,
		log:      log.With().Str("module", "client.socket").Logger(),
		initial:  initial,
		max:      max,
		handlers: make(map[protocol.Event][]Handler),
	}
}

// On appends a handler for an event. Must be called before Run.
func (s *Socket) On(ev protocol.Event, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[ev] = append(s.handlers[ev], fn)
}

// Emit sends one frame. Fails fast while disconnected; the caller
// decides whether the message was worth retrying after reconnect.
func (s *Socket) Emit(ev protocol.Event, payload any) error {
	frame, err := protocol.Encode(ev, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Run dials and reads until ctx is cancelled. Every reconnect starts the
// backoff over from the initial delay once a dial has succeeded.
func (s *Socket) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			delay := Backoff(attempt, s.initial, s.max)
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("dial failed")
			attempt++
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.log.Info().Str("url", s.url).Msg("connected")

		// Identity does not survive the old connection; registration is
		// re-sent on every (re)connect.
		if err := s.Emit(protocol.EventRegisterUser, protocol.RegisterUser{UserID: s.userID}); err != nil {
			s.log.Error().Err(err).Msg("re-register failed")
		}

		s.readLoop(ctx, conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Info().Err(err).Msg("read error, will reconnect")
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("bad frame from server")
			continue
		}
		s.mu.Lock()
		handlers := append([]Handler(nil), s.handlers[env.Event]...)
		s.mu.Unlock()
		for _, fn := range handlers {
			fn(env)
		}
	}
}

// Close drops the current connection. Run's dial loop exits via its ctx.
func (s *Socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Backoff returns the delay before reconnect attempt n: exponential from
// initial, capped at max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
