// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// UserID is the durable identity of a platform user. It outlives any
// single transport connection.
type UserID string

// ConnID identifies one live transport connection. Assigned on connect,
// invalid after disconnect.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// NewUser validates the display name and assigns a fresh id. Callers
// with a platform-issued id overwrite ID afterwards.
func NewUser(username string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Username: username}, nil
}
