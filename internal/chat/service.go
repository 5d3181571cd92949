package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InviteSender issues an invitation to a user by name. Implemented by the invite service; declared here so chat does
// not depend on the invite package's internals.
type InviteSender interface {
	Send(ctx context.Context, chatID, inviterID uuid.UUID, inviteeUsername string) (uuid.UUID, error)
}

// Service implements chat room business logic.
type Service struct {
	repo    Repository
	invites InviteSender
	log     zerolog.Logger
}

// NewService creates a new chat service.
func NewService(repo Repository, invites InviteSender, logger zerolog.Logger) *Service {
	return &Service{repo: repo, invites: invites, log: logger}
}

// CreateRequest is the input for Service.Create.
type CreateRequest struct {
	CreatorID uuid.UUID
	Name      *string
	Invitees  []string
}

// Create creates a chat with the creator as its first accepted member, then sends one invitation per invitee
// username. Invitation failures are logged and skipped: the chat exists once the transaction commits, and a bad
// invitee name must not undo it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Chat, error) {
	name := DefaultName
	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			return nil, err
		}
		name = *req.Name
	}

	c, err := s.repo.Create(ctx, name, req.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	for _, invitee := range req.Invitees {
		if _, err := s.invites.Send(ctx, c.ID, req.CreatorID, invitee); err != nil {
			s.log.Warn().Err(err).
				Str("chat_id", c.ID.String()).
				Str("invitee", invitee).
				Msg("Invitation failed during chat creation")
		}
	}

	return c, nil
}

// IsAcceptedMember reports whether the user holds an accepted membership in the chat.
func (s *Service) IsAcceptedMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	return s.repo.IsAcceptedMember(ctx, chatID, userID)
}
