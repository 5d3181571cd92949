package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository defines the data-access contract for session rows. A session is valid only while its expiry lies
// in the future; token resolution treats expired rows the same as absent ones.
type SessionRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	UserForToken(ctx context.Context, token string) (uuid.UUID, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// PGSessionRepository implements SessionRepository using PostgreSQL.
type PGSessionRepository struct {
	db *pgxpool.Pool
}

// NewPGSessionRepository creates a new PostgreSQL-backed session repository.
func NewPGSessionRepository(db *pgxpool.Pool) *PGSessionRepository {
	return &PGSessionRepository{db: db}
}

// Create inserts a session row for the given user and token.
func (r *PGSessionRepository) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UserForToken resolves a token to its user ID. Returns ErrUnauthorized when no unexpired session row matches.
func (r *PGSessionRepository) UserForToken(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE token = $1 AND expires_at > NOW()`,
		token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUnauthorized
		}
		return uuid.Nil, fmt.Errorf("query session by token: %w", err)
	}
	return userID, nil
}

// purgeBatchSize is the maximum number of rows deleted per batch to avoid long-running transactions.
const purgeBatchSize = 1000

// PurgeExpired deletes expired session rows in batches and returns the total number removed.
func (r *PGSessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE ctid IN (SELECT ctid FROM sessions WHERE expires_at <= NOW() LIMIT 1000)`

	var total int64
	for {
		tag, err := r.db.Exec(ctx, query)
		if err != nil {
			return total, fmt.Errorf("purge sessions: %w", err)
		}
		affected := tag.RowsAffected()
		total += affected
		if affected < purgeBatchSize {
			break
		}
	}
	return total, nil
}
