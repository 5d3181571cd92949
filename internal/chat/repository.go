package chat

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

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed chat repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Create inserts the chat row and the creator's membership in a single transaction. The creator's membership is
// accepted immediately with is_creator set; everyone else arrives through the invitation flow.
func (r *PGRepository) Create(ctx context.Context, name string, creatorID uuid.UUID) (*Chat, error) {
	var c Chat
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO chats (name) VALUES ($1) RETURNING id, name, created_at`,
			name,
		).Scan(&c.ID, &c.Name, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id, status, is_creator)
			 VALUES ($1, $2, 'accepted', TRUE)`,
			c.ID, creatorID,
		)
		if err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID returns the chat matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, chatID uuid.UUID) (*Chat, error) {
	var c Chat
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM chats WHERE id = $1`, chatID,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query chat by id: %w", err)
	}
	return &c, nil
}

// IsAcceptedMember reports whether the user holds an accepted membership in the chat. This exact check backs both the
// stream-upgrade gate and message posting, so REST and streaming enforce membership identically.
func (r *PGRepository) IsAcceptedMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
		     SELECT 1 FROM chat_members
		     WHERE chat_id = $1 AND user_id = $2 AND status = 'accepted'
		 )`,
		chatID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}
