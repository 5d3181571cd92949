// Package chat owns chat rooms and their membership rows.
package chat

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Sentinel errors for the chat package.
var (
	ErrNotFound   = errors.New("chat not found")
	ErrNameLength = errors.New("chat name must be between 1 and 50 characters")
	ErrNotMember  = errors.New("not an accepted member of this chat")
)

// DefaultName is used when a chat is created without an explicit name.
const DefaultName = "Default Chat"

const maxNameLength = 50

// Chat is a persistent group conversation.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberStatus tracks where a user stands with respect to a chat.
type MemberStatus string

// Membership states. Only StatusAccepted grants read/write access.
const (
	StatusPending  MemberStatus = "pending"
	StatusAccepted MemberStatus = "accepted"
	StatusRejected MemberStatus = "rejected"
)

// Member is one (chat, user) membership row.
type Member struct {
	ChatID    uuid.UUID    `json:"chat_id"`
	UserID    uuid.UUID    `json:"user_id"`
	Status    MemberStatus `json:"status"`
	IsCreator bool         `json:"is_creator"`
}

// ValidateName checks an explicit chat name against the 1-50 character bound. Rune count is used so multibyte names
// are measured the same way the column length constraint sees them.
func ValidateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
		return ErrNameLength
	}
	return nil
}

// Repository defines the data-access contract for chats and memberships.
type Repository interface {
	// Create inserts the chat row and the creator's accepted membership in one transaction.
	Create(ctx context.Context, name string, creatorID uuid.UUID) (*Chat, error)
	GetByID(ctx context.Context, chatID uuid.UUID) (*Chat, error)
	IsAcceptedMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}
