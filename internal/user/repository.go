package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/postgres"
)

// selectColumns lists the columns returned by queries that produce a *User. Every method that scans into a User must
// select these columns in this exact order.
const selectColumns = `id, username, email, created_at`

// scanUser scans a single row into a *User. The row must contain the columns listed in selectColumns.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed user repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Create inserts a new user and returns the generated ID. Returns ErrAlreadyExists when the username or email is
// already taken.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		params.Username, params.Email, params.PasswordHash,
	).Scan(&userID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return uuid.Nil, ErrAlreadyExists
		}
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

// GetByID returns the user matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// GetByUsername returns the user with credentials matching the given username. This is the only method that returns
// the password hash, since it serves the login path.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (*Credentials, error) {
	var c Credentials
	err := r.db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&c.ID, &c.Username, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}
	return &c, nil
}

// UpdatePasswordHash updates the stored password hash for a user, used for lazy hash rotation when Argon2 parameters
// change.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`,
		hash, userID,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

// ResolveID maps a username to its user ID. Used when inviting users by name.
func (r *PGRepository) ResolveID(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve username: %w", err)
	}
	return id, nil
}
