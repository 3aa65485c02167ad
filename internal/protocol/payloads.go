package protocol

import "github.com/mzholl/callwire/internal/domain"

// SDP mirrors a session description without dragging the webrtc package
// into the wire format.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors an ICE candidate init. Pointers keep absent
// fields absent on the wire, some stacks care.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type RegisterUser struct {
	UserID domain.UserID `json:"userId"`
}

type UserRegistered struct {
	UserID   domain.UserID `json:"userId"`
	SocketID domain.ConnID `json:"socketId"`
}

type RegistrationError struct {
	Message string `json:"message"`
}

type Presence struct {
	UserID    domain.UserID `json:"userId"`
	Timestamp int64         `json:"timestamp"`
}

type JoinRoom struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type RoomJoined struct {
	RoomID    domain.RoomID `json:"roomId"`
	UserCount int           `json:"userCount"`
}

type UserJoined struct {
	UserID   domain.UserID `json:"userId"`
	SocketID domain.ConnID `json:"socketId"`
	RoomID   domain.RoomID `json:"roomId"`
}

type BothUsersReady struct {
	RoomID    domain.RoomID `json:"roomId"`
	UserCount int           `json:"userCount"`
}

// OfferSignal is sent by a client into its room.
type OfferSignal struct {
	RoomID domain.RoomID `json:"roomId"`
	Offer  SDP           `json:"offer"`
}

// OfferRelay is what the other members receive.
type OfferRelay struct {
	Offer SDP           `json:"offer"`
	From  domain.ConnID `json:"from"`
}

type AnswerSignal struct {
	RoomID domain.RoomID `json:"roomId"`
	Answer SDP           `json:"answer"`
}

type AnswerRelay struct {
	Answer SDP           `json:"answer"`
	From   domain.ConnID `json:"from"`
}

type CandidateSignal struct {
	RoomID    domain.RoomID `json:"roomId"`
	Candidate ICECandidate  `json:"candidate"`
}

type CandidateRelay struct {
	Candidate ICECandidate  `json:"candidate"`
	From      domain.ConnID `json:"from"`
}

type CallUser struct {
	UserToCall domain.UserID `json:"userToCall"`
	From       domain.UserID `json:"from"`
	Name       string        `json:"name"`
	RoomID     domain.RoomID `json:"roomId"`
	Image      string        `json:"image,omitempty"`
	CallID     domain.CallID `json:"callId"`
}

type IncomingCall struct {
	From      domain.UserID `json:"from"`
	Name      string        `json:"name"`
	RoomID    domain.RoomID `json:"roomId"`
	Image     string        `json:"image,omitempty"`
	CallID    domain.CallID `json:"callId"`
	Timestamp int64         `json:"timestamp"`
}

type CallInitiated struct {
	Success    bool          `json:"success"`
	ReceiverID domain.UserID `json:"receiverId,omitempty"`
}

type CallError struct {
	Message string `json:"message"`
}

// RoomRef is the whole payload of accept-call and reject-call.
type RoomRef struct {
	RoomID domain.RoomID `json:"roomId"`
}

type EndCall struct {
	RoomID  domain.RoomID `json:"roomId"`
	EndedBy domain.UserID `json:"endedBy"`
}

type CallAccepted struct {
	AcceptedBy domain.ConnID `json:"acceptedBy"`
}

type CallRejected struct {
	RejectedBy domain.ConnID `json:"rejectedBy"`
}

type CallEnded struct {
	EndedBy domain.UserID `json:"endedBy,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// RoomNotice covers the verbatim-relayed room events: screen share,
// recording markers, mute toggles and latency pings.
type RoomNotice struct {
	RoomID  domain.RoomID `json:"roomId"`
	UserID  domain.UserID `json:"userId,omitempty"`
	Enabled *bool         `json:"enabled,omitempty"`
}
