package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeMembership struct {
	accepted map[uuid.UUID]map[uuid.UUID]bool // chat -> user -> accepted
	err      error
}

func (f *fakeMembership) IsAcceptedMember(_ context.Context, chatID, userID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.accepted[chatID][userID], nil
}

// issueSession mints a token and plants the matching session row, mirroring what Service.Login does.
func issueSession(t *testing.T, sessions *fakeSessionRepo, userID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := NewAccessToken(userID, testSecret, ttl, TokenIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	if err := sessions.Create(context.Background(), userID, token, time.Now().Add(ttl)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return token
}

func TestAuthorizeRequest(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionRepo()
	gate := NewGate(testSecret, TokenIssuer, sessions, &fakeMembership{}, zerolog.Nop())

	userID := uuid.New()
	token := issueSession(t, sessions, userID, time.Hour)

	got, err := gate.AuthorizeRequest(context.Background(), token)
	if err != nil {
		t.Fatalf("AuthorizeRequest() error = %v", err)
	}
	if got != userID {
		t.Errorf("user = %v, want %v", got, userID)
	}
}

func TestAuthorizeRequestNoSessionRow(t *testing.T) {
	t.Parallel()

	gate := NewGate(testSecret, TokenIssuer, newFakeSessionRepo(), &fakeMembership{}, zerolog.Nop())

	// Valid JWT, but no session row was ever written for it.
	token, err := NewAccessToken(uuid.New(), testSecret, time.Hour, TokenIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	if _, err := gate.AuthorizeRequest(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("AuthorizeRequest() error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestAuthorizeRequestExpiredSession(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionRepo()
	gate := NewGate(testSecret, TokenIssuer, sessions, &fakeMembership{}, zerolog.Nop())

	// JWT itself is still valid but the session row expired a second ago.
	userID := uuid.New()
	token, err := NewAccessToken(userID, testSecret, time.Hour, TokenIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	if err := sessions.Create(context.Background(), userID, token, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := gate.AuthorizeRequest(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("AuthorizeRequest() error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestAuthorizeRequestGarbageToken(t *testing.T) {
	t.Parallel()

	gate := NewGate(testSecret, TokenIssuer, newFakeSessionRepo(), &fakeMembership{}, zerolog.Nop())

	if _, err := gate.AuthorizeRequest(context.Background(), "not-a-jwt"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("AuthorizeRequest() error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestAuthorizeStream(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	chatID := uuid.New()
	otherChat := uuid.New()

	sessions := newFakeSessionRepo()
	members := &fakeMembership{accepted: map[uuid.UUID]map[uuid.UUID]bool{
		chatID: {userID: true},
	}}
	gate := NewGate(testSecret, TokenIssuer, sessions, members, zerolog.Nop())

	token := issueSession(t, sessions, userID, time.Hour)

	got, err := gate.AuthorizeStream(context.Background(), token, chatID)
	if err != nil {
		t.Fatalf("AuthorizeStream() error = %v", err)
	}
	if got != userID {
		t.Errorf("user = %v, want %v", got, userID)
	}

	// Authenticated but not a member: Forbidden, not Unauthorized.
	if _, err := gate.AuthorizeStream(context.Background(), token, otherChat); !errors.Is(err, ErrForbidden) {
		t.Errorf("AuthorizeStream() error = %v, want %v", err, ErrForbidden)
	}

	// Bad token: Unauthorized, membership never consulted.
	if _, err := gate.AuthorizeStream(context.Background(), "garbage", chatID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("AuthorizeStream() error = %v, want %v", err, ErrUnauthorized)
	}
}
