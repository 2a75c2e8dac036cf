// ABOUTME: Store interface and data types for ledger-gateway persistence
// ABOUTME: Defines the platform User record and the UserStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a requested user does not exist
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists is returned when trying to create a user with an existing username
var ErrUsernameExists = errors.New("username already exists")

// User represents a registered platform user. The ledger identity that
// belongs to the same username lives in the wallet, not here; this record
// only carries login credentials and profile fields.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	Firstname    string
	Lastname     string
	CreatedAt    time.Time
}

// UserStore defines the interface for platform user persistence
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	Close() error
}
