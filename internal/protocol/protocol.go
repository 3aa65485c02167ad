// Package protocol defines the wire catalog of the signaling channel:
// one Event name per message kind and one payload struct per event,
// carried in a small JSON envelope.
package protocol

import (
	"encoding/json"
	"errors"
)

type Event string

const (
	// Identity.
	EventRegisterUser      Event = "register-user"
	EventUserRegistered    Event = "user-registered"
	EventRegistrationError Event = "registration-error"
	EventUserOnline        Event = "user-online"
	EventUserOffline       Event = "user-offline"

	// Rooms.
	EventJoinRoom       Event = "join-room"
	EventLeaveRoom      Event = "leave-room"
	EventRoomJoined     Event = "room-joined"
	EventUserJoined     Event = "user-joined"
	EventBothUsersReady Event = "both-users-ready"

	// Negotiation relay.
	EventOffer        Event = "offer"
	EventAnswer       Event = "answer"
	EventICECandidate Event = "ice-candidate"

	// Call lifecycle.
	EventCallUser      Event = "call-user"
	EventIncomingCall  Event = "incoming-call"
	EventCallInitiated Event = "call-initiated"
	EventCallError     Event = "call-error"
	EventAcceptCall    Event = "accept-call"
	EventRejectCall    Event = "reject-call"
	EventEndCall       Event = "end-call"
	EventCallAccepted  Event = "call-accepted"
	EventCallRejected  Event = "call-rejected"
	EventCallEnded     Event = "call-ended"

	// Room-scoped notices relayed verbatim.
	EventStartScreenShare Event = "start-screen-share"
	EventStopScreenShare  Event = "stop-screen-share"
	EventRecordingStarted Event = "recording-started"
	EventRecordingStopped Event = "recording-stopped"
	EventAudioToggled     Event = "audio-toggled"
	EventVideoToggled     Event = "video-toggled"
	EventPing             Event = "ping"
	EventPong             Event = "pong"
)

var ErrEmptyEvent = errors.New("empty event name")

// Envelope is the outer frame of every signaling message.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire frame for the given event and payload.
func Encode(ev Event, payload any) ([]byte, error) {
	if ev == "" {
		return nil, ErrEmptyEvent
	}
	env := Envelope{Event: ev}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a wire frame into its envelope without touching the payload.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	return env, nil
}

// Unmarshal decodes the payload into a typed struct.
func (e Envelope) Unmarshal(v any) error {
	if len(e.Data) == 0 {
		return errors.New("envelope has no payload")
	}
	return json.Unmarshal(e.Data, v)
}
