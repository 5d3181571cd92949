package invite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/user"
	"github.com/parley-chat/parley-server/internal/wire"
)

// Notifier is the slice of the connection registry the invite flow needs: a direct push to one user, a room-wide
// broadcast, and opportunistic seeding of a live room with a newly accepted member.
type Notifier interface {
	SendDirect(userID uuid.UUID, frame wire.Frame) error
	BroadcastToRoom(chatID, senderID uuid.UUID, frame wire.Frame)
	SeedRoom(chatID, userID uuid.UUID)
}

// Service implements the invitation flow.
type Service struct {
	repo     Repository
	users    user.Repository
	notifier Notifier
	log      zerolog.Logger
}

// NewService creates a new invite service.
func NewService(repo Repository, users user.Repository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, log: logger}
}

// Send resolves the invitee by username, inserts a pending invitation, and pushes an invitation frame to the
// invitee's direct channel when they are online. The push is best-effort: the invitation row is the durable record
// and an offline invitee simply sees nothing until a client fetches their invites.
func (s *Service) Send(ctx context.Context, chatID, inviterID uuid.UUID, inviteeUsername string) (uuid.UUID, error) {
	inviteeID, err := s.users.ResolveID(ctx, inviteeUsername)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve invitee: %w", err)
	}

	inv, err := s.repo.CreatePending(ctx, chatID, inviterID, inviteeID)
	if err != nil {
		return uuid.Nil, err
	}

	s.pushNotification(ctx, inv, inviterID, inviteeID)

	return inv.ID, nil
}

// Respond transitions the invitation and, on acceptance, announces the new member: the live room (if any) is seeded
// with the user and a Joined status is broadcast. Both happen after the transaction commits; the registry reflects
// durable state, never the other way round.
func (s *Service) Respond(ctx context.Context, inviteID, userID uuid.UUID, accept bool) (*Invite, error) {
	inv, err := s.repo.Respond(ctx, inviteID, userID, accept)
	if err != nil {
		return nil, err
	}

	if accept {
		s.notifier.SeedRoom(inv.ChatID, userID)

		frame, err := wire.NewStatusFrame(inv.ChatID, userID, wire.StatusJoined)
		if err != nil {
			s.log.Error().Err(err).Str("chat_id", inv.ChatID.String()).Msg("Building joined status frame failed")
			return inv, nil
		}
		s.notifier.BroadcastToRoom(inv.ChatID, userID, frame)
	}

	return inv, nil
}

// pushNotification delivers the invitation frame to the invitee's direct channel. Failures are logged and swallowed.
func (s *Service) pushNotification(ctx context.Context, inv *Invite, inviterID, inviteeID uuid.UUID) {
	inviter, err := s.users.GetByID(ctx, inviterID)
	if err != nil {
		s.log.Warn().Err(err).Str("invite_id", inv.ID.String()).Msg("Inviter lookup for notification failed")
		return
	}

	frame, err := wire.NewInvitationFrame(wire.InvitationPayload{
		InvitationID:    inv.ID,
		ChatID:          inv.ChatID,
		InviterUsername: inviter.Username,
		Timestamp:       inv.CreatedAt,
	})
	if err != nil {
		s.log.Error().Err(err).Str("invite_id", inv.ID.String()).Msg("Building invitation frame failed")
		return
	}

	if err := s.notifier.SendDirect(inviteeID, frame); err != nil {
		s.log.Debug().Err(err).Str("invite_id", inv.ID.String()).Msg("Invitee offline, skipping invitation push")
	}
}
