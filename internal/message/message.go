// Package message owns persisted chat messages and their fan-out on commit.
package message

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the message package.
var (
	ErrNotMember    = errors.New("sender is not an accepted member of this chat")
	ErrEmptyContent = errors.New("message content must not be empty")
	ErrTooLong      = errors.New("message content exceeds the maximum length")
)

// Message is one durable chat message. The timestamp is server-assigned at insert.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Repository defines the data-access contract for messages.
type Repository interface {
	// Insert verifies the sender's accepted membership and inserts the row in one transaction, so a concurrent
	// membership revocation cannot race a write in.
	Insert(ctx context.Context, chatID, senderID uuid.UUID, content string) (*Message, error)
	// ListByChat returns the chat's messages in ascending timestamp order.
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]Message, error)
}
