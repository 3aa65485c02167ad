package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	RoomID string
	CallID string
)

// CallStatus follows the persisted call record through its lifetime.
type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallOngoing   CallStatus = "ongoing"
	CallEnded     CallStatus = "ended"
	CallRejected  CallStatus = "rejected"
)

// Call is the persisted record of one call attempt. The signaling core
// references it by ID and room; the schema is owned by the store.
type Call struct {
	ID        CallID     `json:"id"`
	RoomID    RoomID     `json:"room_id"`
	CallerID  UserID     `json:"caller_id"`
	CalleeID  UserID     `json:"callee_id"`
	Status    CallStatus `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	// Duration in seconds, set when the call ends.
	Duration int `json:"duration,omitempty"`
}

// NewCall builds a fresh record in the initiated state. The room id is
// derived from the call id so every attempt gets its own room.
func NewCall(caller, callee UserID) *Call {
	id := uuid.NewString()
	return &Call{
		ID:        CallID(id),
		RoomID:    RoomID("call-" + id),
		CallerID:  caller,
		CalleeID:  callee,
		Status:    CallInitiated,
		StartedAt: time.Now(),
	}
}

// Finish marks the record ended and fixes the duration.
func (c *Call) Finish(status CallStatus, at time.Time) {
	c.Status = status
	c.EndedAt = &at
	c.Duration = int(at.Sub(c.StartedAt).Seconds())
}
