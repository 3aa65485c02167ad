// Package redis persists call records in Redis so they survive a
// signaling server restart. Records live under call:<id> with a room
// index at callroom:<room>, both on a 24h TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/store"
)

const recordTTL = 24 * time.Hour

type Store struct {
	rdb *redis.Client
}

func New(addr string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies the connection at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func callKey(id domain.CallID) string   { return fmt.Sprintf("call:%s", id) }
func roomKey(room domain.RoomID) string { return fmt.Sprintf("callroom:%s", room) }

func (s *Store) Create(ctx context.Context, caller, callee domain.UserID) (*domain.Call, error) {
	call := domain.NewCall(caller, callee)
	if err := s.write(ctx, call); err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, roomKey(call.RoomID), string(call.ID), recordTTL).Err(); err != nil {
		return nil, fmt.Errorf("index call room: %w", err)
	}
	return call, nil
}

func (s *Store) Get(ctx context.Context, id domain.CallID) (*domain.Call, error) {
	raw, err := s.rdb.Get(ctx, callKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	var call domain.Call
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	return &call, nil
}

func (s *Store) FindByRoom(ctx context.Context, room domain.RoomID) (*domain.Call, error) {
	id, err := s.rdb.Get(ctx, roomKey(room)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve call room: %w", err)
	}
	return s.Get(ctx, domain.CallID(id))
}

func (s *Store) UpdateStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error {
	call, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch status {
	case domain.CallEnded, domain.CallRejected:
		call.Finish(status, time.Now())
	default:
		call.Status = status
	}
	return s.write(ctx, call)
}

func (s *Store) write(ctx context.Context, call *domain.Call) error {
	raw, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("encode call: %w", err)
	}
	if err := s.rdb.Set(ctx, callKey(call.ID), raw, recordTTL).Err(); err != nil {
		return fmt.Errorf("store call: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
