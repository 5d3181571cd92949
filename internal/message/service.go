package message

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/wire"
)

// Broadcaster fans a frame out to every live subscriber of a room. Implemented by the connection registry; declared
// here so the message package stays independent of the gateway.
type Broadcaster interface {
	BroadcastToRoom(chatID, senderID uuid.UUID, frame wire.Frame)
}

// Service implements message posting and history reads. Posting is persist-first: the row is committed before any
// frame reaches the registry, so everything observable on a broadcast channel already exists in storage.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
	sanitizer   *bluemonday.Policy
	maxLength   int
	log         zerolog.Logger
}

// NewService creates a new message service. maxLength bounds content size in runes.
func NewService(repo Repository, broadcaster Broadcaster, maxLength int, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		broadcaster: broadcaster,
		sanitizer:   bluemonday.StrictPolicy(),
		maxLength:   maxLength,
		log:         logger,
	}
}

// Post sanitizes and persists a message, then broadcasts it to the room's live subscribers. The broadcast is
// best-effort; by the time it happens the caller already owns a committed row.
func (s *Service) Post(ctx context.Context, chatID, senderID uuid.UUID, content string) (*Message, error) {
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, ErrTooLong
	}

	m, err := s.repo.Insert(ctx, chatID, senderID, content)
	if err != nil {
		return nil, err
	}

	frame, err := wire.NewChatFrame(wire.ChatPayload{
		MessageID: m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	})
	if err != nil {
		s.log.Error().Err(err).Str("message_id", m.ID.String()).Msg("Building chat frame failed")
		return m, nil
	}
	s.broadcaster.BroadcastToRoom(m.ChatID, m.SenderID, frame)

	return m, nil
}

// List returns the chat's full message history, oldest first.
func (s *Service) List(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	return s.repo.ListByChat(ctx, chatID)
}
