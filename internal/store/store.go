// Package store is the persistence boundary for call records. The
// signaling core only needs create, status transitions and room lookup;
// everything else about the records belongs to the owning service.
package store

import (
	"context"
	"errors"

	"github.com/mzholl/callwire/internal/domain"
)

var ErrNotFound = errors.New("call not found")

type CallStore interface {
	// Create persists a new record in the initiated state and returns it
	// with its call and room ids assigned.
	Create(ctx context.Context, caller, callee domain.UserID) (*domain.Call, error)
	// Get returns the record by call id.
	Get(ctx context.Context, id domain.CallID) (*domain.Call, error)
	// FindByRoom returns the record whose room id matches.
	FindByRoom(ctx context.Context, room domain.RoomID) (*domain.Call, error)
	// UpdateStatus moves the record to the given status. Terminal
	// statuses fix EndedAt and Duration.
	UpdateStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error
}
