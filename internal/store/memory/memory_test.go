package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/store"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	call, err := s.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, domain.RoomID("call-"+string(call.ID)), call.RoomID)
	assert.Equal(t, domain.CallInitiated, call.Status)
	assert.False(t, call.StartedAt.IsZero())

	got, err := s.Get(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, call.ID, got.ID)
	assert.Equal(t, domain.UserID("alice"), got.CallerID)
	assert.Equal(t, domain.UserID("bob"), got.CalleeID)
}

func TestStore_FindByRoom(t *testing.T) {
	s := New()
	ctx := context.Background()
	call, err := s.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	got, err := s.FindByRoom(ctx, call.RoomID)
	require.NoError(t, err)
	assert.Equal(t, call.ID, got.ID)

	_, err = s.FindByRoom(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	call, err := s.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, call.ID, domain.CallOngoing))
	got, err := s.Get(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallOngoing, got.Status)
	assert.Nil(t, got.EndedAt)

	require.NoError(t, s.UpdateStatus(ctx, call.ID, domain.CallEnded))
	got, err = s.Get(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallEnded, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.False(t, got.EndedAt.Before(got.StartedAt))

	assert.ErrorIs(t, s.UpdateStatus(ctx, "nope", domain.CallEnded), store.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	call, err := s.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	call.Status = domain.CallEnded
	got, err := s.Get(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallInitiated, got.Status, "callers must not mutate stored records")
}
