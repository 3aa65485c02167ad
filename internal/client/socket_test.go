package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzholl/callwire/internal/protocol"
)

func TestBackoff(t *testing.T) {
	initial := time.Second
	max := 5 * time.Second

	assert.Equal(t, 1*time.Second, Backoff(0, initial, max))
	assert.Equal(t, 2*time.Second, Backoff(1, initial, max))
	assert.Equal(t, 4*time.Second, Backoff(2, initial, max))
	assert.Equal(t, 5*time.Second, Backoff(3, initial, max))
	assert.Equal(t, 5*time.Second, Backoff(10, initial, max))
}

// signalStub accepts websocket upgrades and records every frame,
// answering register-user the way the real server does.
type signalStub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	frames []protocol.Envelope
	conns  []*websocket.Conn
}

func (s *signalStub) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.frames = append(s.frames, env)
		s.mu.Unlock()
		if env.Event == protocol.EventRegisterUser {
			var reg protocol.RegisterUser
			if env.Unmarshal(&reg) == nil {
				frame, _ := protocol.Encode(protocol.EventUserRegistered, protocol.UserRegistered{UserID: reg.UserID, SocketID: "stub-conn"})
				_ = conn.WriteMessage(websocket.TextMessage, frame)
			}
		}
	}
}

func (s *signalStub) registrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, env := range s.frames {
		if env.Event == protocol.EventRegisterUser {
			n++
		}
	}
	return n
}

func (s *signalStub) dropConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

func TestSocket_RegistersOnConnect(t *testing.T) {
	stub := &signalStub{}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sock := NewSocket(wsURL, "alice", 10*time.Millisecond, 50*time.Millisecond)

	registered := make(chan protocol.Envelope, 1)
	sock.On(protocol.EventUserRegistered, func(env protocol.Envelope) {
		select {
		case registered <- env:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sock.Run(ctx)

	select {
	case env := <-registered:
		var reg protocol.UserRegistered
		require.NoError(t, env.Unmarshal(&reg))
		assert.Equal(t, "alice", string(reg.UserID))
	case <-time.After(2 * time.Second):
		t.Fatal("never saw user-registered")
	}
	assert.Equal(t, 1, stub.registrations())
}

func TestSocket_ReRegistersAfterReconnect(t *testing.T) {
	stub := &signalStub{}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sock := NewSocket(wsURL, "alice", 10*time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sock.Run(ctx)

	require.Eventually(t, func() bool { return stub.registrations() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Kill the server side; the socket must dial back and register again.
	stub.dropConns()
	require.Eventually(t, func() bool { return stub.registrations() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_EmitWhileDisconnected(t *testing.T) {
	sock := NewSocket("ws://127.0.0.1:1/ws", "alice", time.Second, time.Second)
	err := sock.Emit(protocol.EventPing, protocol.RoomNotice{RoomID: "call-1"})
	assert.ErrorIs(t, err, ErrNotConnected)
}
