// Package user owns the user identity rows and their data access.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the user package.
var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("username or email already taken")
)

// User holds the core identity fields read from the database.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials extends User with the password hash. Only the repository method serving the login path returns this
// type; all other reads return *User so hashes cannot leak into response payloads.
type Credentials struct {
	User
	PasswordHash string `json:"-"`
}

// CreateParams groups the inputs for creating a new user.
type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// Repository defines the data-access contract for user operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*Credentials, error)
	ResolveID(ctx context.Context, username string) (uuid.UUID, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
}
