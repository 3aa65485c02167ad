// Package memory keeps call records in process memory. Default backend
// and the one the tests run against.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	calls  map[domain.CallID]*domain.Call
	byRoom map[domain.RoomID]domain.CallID
}

func New() *Store {
	return &Store{
		calls:  make(map[domain.CallID]*domain.Call),
		byRoom: make(map[domain.RoomID]domain.CallID),
	}
}

func (s *Store) Create(_ context.Context, caller, callee domain.UserID) (*domain.Call, error) {
	call := domain.NewCall(caller, callee)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[call.ID] = call
	s.byRoom[call.RoomID] = call.ID
	cp := *call
	return &cp, nil
}

func (s *Store) Get(_ context.Context, id domain.CallID) (*domain.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.calls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *call
	return &cp, nil
}

func (s *Store) FindByRoom(_ context.Context, room domain.RoomID) (*domain.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRoom[room]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.calls[id]
	return &cp, nil
}

func (s *Store) UpdateStatus(_ context.Context, id domain.CallID, status domain.CallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	switch status {
	case domain.CallEnded, domain.CallRejected:
		call.Finish(status, time.Now())
	default:
		call.Status = status
	}
	return nil
}
