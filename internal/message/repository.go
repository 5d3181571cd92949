package message

import (
	"context"
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

// NewPGRepository creates a new PostgreSQL-backed message repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Insert checks the sender's accepted membership and inserts the message inside one transaction.
func (r *PGRepository) Insert(ctx context.Context, chatID, senderID uuid.UUID, content string) (*Message, error) {
	var m Message
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var isMember bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(
			     SELECT 1 FROM chat_members
			     WHERE chat_id = $1 AND user_id = $2 AND status = 'accepted'
			 )`,
			chatID, senderID,
		).Scan(&isMember)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !isMember {
			return ErrNotMember
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO messages (chat_id, sender_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING id, chat_id, sender_id, content, timestamp`,
			chatID, senderID, content,
		).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Timestamp)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByChat returns every message in the chat, oldest first.
func (r *PGRepository) ListByChat(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chat_id, sender_id, content, timestamp
		 FROM messages
		 WHERE chat_id = $1
		 ORDER BY timestamp ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
