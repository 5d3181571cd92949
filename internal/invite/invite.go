// Package invite owns chat invitations: their rows, the pending-to-terminal transition, and the accompanying
// real-time notifications.
package invite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the invite package.
var (
	ErrNotFound      = errors.New("invitation not found")
	ErrAlreadyMember = errors.New("user already has a membership in this chat")
	ErrUserNotFound  = errors.New("invitee not found")
)

// Status tracks an invitation's lifecycle. A pending invitation transitions to a terminal state exactly once;
// StatusExpired is reserved for a future sweeper and is never set by the current code.
type Status string

// Invitation states.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Invite is one invitation row.
type Invite struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	InviterID uuid.UUID `json:"inviter_id"`
	InviteeID uuid.UUID `json:"invitee_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the data-access contract for invitations.
type Repository interface {
	// CreatePending inserts a pending invitation, failing with ErrAlreadyMember when the invitee already holds any
	// membership row in the chat.
	CreatePending(ctx context.Context, chatID, inviterID, inviteeID uuid.UUID) (*Invite, error)
	// Respond transitions a pending invitation addressed to userID into accepted or rejected. On acceptance the
	// membership row is created (or flipped to accepted) in the same transaction.
	Respond(ctx context.Context, inviteID, userID uuid.UUID, accept bool) (*Invite, error)
}
