package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/user"
)

// Service implements registration and login, keeping HTTP handlers thin and focused on request parsing / response
// formatting.
type Service struct {
	users    user.Repository
	sessions SessionRepository
	config   *config.Config
	log      zerolog.Logger
	// dummyHash is a precomputed Argon2id hash used to keep login timing constant when a user is not found,
	// preventing username enumeration via response-time analysis.
	dummyHash string
}

// NewService creates a new authentication service.
func NewService(users user.Repository, sessions SessionRepository, cfg *config.Config, logger zerolog.Logger) *Service {
	// Generate a dummy hash at startup so VerifyPassword always runs against a real Argon2id hash even when the user
	// does not exist.
	dummy, err := HashPassword("parley-dummy-password", cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism, cfg.Argon2SaltLength, cfg.Argon2KeyLength)
	if err != nil {
		// This should never fail with valid config; fall back to a static hash so the service can still start.
		dummy = "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0$placeholder"
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		config:    cfg,
		log:       logger,
		dummyHash: dummy,
	}
}

// RegisterRequest is the input for Service.Register.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// LoginRequest is the input for Service.Login.
type LoginRequest struct {
	Username string
	Password string
}

// LoginResult is the output for Login.
type LoginResult struct {
	Token string
	User  *user.User
}

// TokenIssuer is the issuer claim embedded in every access token.
const TokenIssuer = "parley"

// Register validates inputs, hashes the password, and creates the user row.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if err := ValidateUsername(req.Username); err != nil {
		return err
	}
	email, err := ValidateEmail(req.Email)
	if err != nil {
		return err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return err
	}

	hash, err := HashPassword(req.Password,
		s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism,
		s.config.Argon2SaltLength, s.config.Argon2KeyLength)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.users.Create(ctx, user.CreateParams{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			return ErrAlreadyTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user_id", userID.String()).Str("username", req.Username).Msg("User registered")
	return nil
}

// Login verifies credentials, mints an access token, and persists the matching session row.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	creds, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Burn the same work as a real comparison before rejecting.
			_, _ = VerifyPassword(req.Password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	match, err := VerifyPassword(req.Password, creds.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if NeedsRehash(creds.PasswordHash,
		s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism,
		s.config.Argon2SaltLength, s.config.Argon2KeyLength) {
		s.rehashPassword(ctx, creds.ID, req.Password)
	}

	token, err := NewAccessToken(creds.ID, s.config.JWTSecretKey, s.config.SessionTTL, TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	expiresAt := time.Now().Add(s.config.SessionTTL)
	if err := s.sessions.Create(ctx, creds.ID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return &LoginResult{Token: token, User: &creds.User}, nil
}

// rehashPassword regenerates the stored hash with the current Argon2 parameters. Failures are logged and ignored; the
// login already succeeded against the old hash.
func (s *Service) rehashPassword(ctx context.Context, userID uuid.UUID, password string) {
	hash, err := HashPassword(password,
		s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism,
		s.config.Argon2SaltLength, s.config.Argon2KeyLength)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Password rehash failed")
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Password rehash update failed")
	}
}
