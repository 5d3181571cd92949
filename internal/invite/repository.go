package invite

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

const selectColumns = `id, chat_id, inviter_id, invitee_id, status, created_at, updated_at`

func scanInvite(row pgx.Row) (*Invite, error) {
	var inv Invite
	err := row.Scan(&inv.ID, &inv.ChatID, &inv.InviterID, &inv.InviteeID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	return &inv, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed invite repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// CreatePending inserts a pending invitation after confirming the invitee holds no membership row in the chat. Both
// steps run in one transaction so a concurrent acceptance cannot slip a membership in between check and insert.
func (r *PGRepository) CreatePending(ctx context.Context, chatID, inviterID, inviteeID uuid.UUID) (*Invite, error) {
	var inv *Invite
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var isMember bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`,
			chatID, inviteeID,
		).Scan(&isMember)
		if err != nil {
			return fmt.Errorf("check existing membership: %w", err)
		}
		if isMember {
			return ErrAlreadyMember
		}

		inv, err = scanInvite(tx.QueryRow(ctx,
			`INSERT INTO invites (chat_id, inviter_id, invitee_id)
			 VALUES ($1, $2, $3)
			 RETURNING `+selectColumns,
			chatID, inviterID, inviteeID,
		))
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert invite: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Respond flips a pending invitation to accepted or rejected. The WHERE clause pins the invitee and the pending
// status, so responding to someone else's invitation, or responding twice, both surface as ErrNotFound. Acceptance
// upserts the membership row inside the same transaction: either both rows land or neither does.
func (r *PGRepository) Respond(ctx context.Context, inviteID, userID uuid.UUID, accept bool) (*Invite, error) {
	status := StatusRejected
	if accept {
		status = StatusAccepted
	}

	var inv *Invite
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvite(tx.QueryRow(ctx,
			`UPDATE invites
			 SET status = $1, updated_at = NOW()
			 WHERE id = $2 AND invitee_id = $3 AND status = 'pending'
			 RETURNING `+selectColumns,
			status, inviteID, userID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update invite: %w", err)
		}

		if accept {
			_, err = tx.Exec(ctx,
				`INSERT INTO chat_members (chat_id, user_id, status, is_creator)
				 VALUES ($1, $2, 'accepted', FALSE)
				 ON CONFLICT (chat_id, user_id)
				 DO UPDATE SET status = 'accepted'`,
				inv.ChatID, userID,
			)
			if err != nil {
				return fmt.Errorf("upsert membership: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
