package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MembershipChecker reports whether a user holds an accepted membership in a chat. Implemented by the chat repository;
// declared here so the gate does not depend on the chat package.
type MembershipChecker interface {
	IsAcceptedMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}

// Gate resolves bearer tokens to user identities and enforces membership on streaming upgrades. The same gate instance
// backs the REST middleware and the stream upgrade handler so both paths authorize identically.
type Gate struct {
	secret   string
	issuer   string
	sessions SessionRepository
	members  MembershipChecker
	log      zerolog.Logger
}

// NewGate creates an authorization gate.
func NewGate(secret, issuer string, sessions SessionRepository, members MembershipChecker, logger zerolog.Logger) *Gate {
	return &Gate{
		secret:   secret,
		issuer:   issuer,
		sessions: sessions,
		members:  members,
		log:      logger,
	}
}

// AuthorizeRequest resolves a bearer token to a user ID. The token must be a valid signed JWT AND an unexpired session
// row must exist for it; every failure mode collapses to ErrUnauthorized so callers cannot distinguish a forged token
// from a revoked one.
func (g *Gate) AuthorizeRequest(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := ValidateAccessToken(token, g.secret, g.issuer)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}

	sessionUser, err := g.sessions.UserForToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return uuid.Nil, ErrUnauthorized
		}
		return uuid.Nil, fmt.Errorf("resolve session: %w", err)
	}
	if sessionUser != userID {
		g.log.Warn().Str("token_subject", claims.Subject).Msg("Session row user does not match token subject")
		return uuid.Nil, ErrUnauthorized
	}

	return userID, nil
}

// AuthorizeStream performs AuthorizeRequest and then verifies the user holds an accepted membership in the target
// chat. Returns ErrUnauthorized for a bad token and ErrForbidden for an authenticated non-member.
func (g *Gate) AuthorizeStream(ctx context.Context, token string, chatID uuid.UUID) (uuid.UUID, error) {
	userID, err := g.AuthorizeRequest(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}

	ok, err := g.members.IsAcceptedMember(ctx, chatID, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return uuid.Nil, ErrForbidden
	}

	return userID, nil
}
