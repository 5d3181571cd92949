package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"valid simple", "alice", nil},
		{"valid with underscore and period", "alice_b.c", nil},
		{"minimum length", "ab", nil},
		{"maximum length", strings.Repeat("a", 32), nil},
		{"too short", "a", ErrUsernameLength},
		{"too long", strings.Repeat("a", 33), ErrUsernameLength},
		{"contains space", "alice smith", ErrUsernameInvalidChars},
		{"contains hyphen", "alice-b", ErrUsernameInvalidChars},
		{"contains emoji", "alice😀", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tt.username)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		email   string
		want    string
		wantErr bool
	}{
		{"valid", "Alice@Example.COM", "alice@example.com", false},
		{"valid short", "a@x", "a@x", false},
		{"missing at", "alice.example.com", "", true},
		{"empty", "", "", true},
		{"too long", strings.Repeat("a", 250) + "@x.com", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "Aa1!aaaa", nil},
		{"valid with punctuation class", `Passw0rd,`, nil},
		{"too short", "Aa1!a", ErrPasswordTooShort},
		{"too long", "Aa1!" + strings.Repeat("a", 125), ErrPasswordTooLong},
		{"missing uppercase", "aa1!aaaa", ErrPasswordWeak},
		{"missing lowercase", "AA1!AAAA", ErrPasswordWeak},
		{"missing digit", "Aaa!aaaa", ErrPasswordWeak},
		{"missing special", "Aa1aaaaa", ErrPasswordWeak},
		{"special outside accepted set", "Aa1-aaaa", ErrPasswordWeak},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}
