package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

const maxEmailLength = 254

// passwordSpecials is the set of characters accepted as the "special character" class in password validation.
const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// ValidateEmail parses and normalises an email address, returning the normalised form. Returns ErrInvalidEmail if the
// format is invalid or the address exceeds the RFC 5321 maximum of 254 characters.
func ValidateEmail(email string) (string, error) {
	addr, parseErr := mail.ParseAddress(email)
	if parseErr != nil {
		return "", ErrInvalidEmail
	}

	normalised := strings.ToLower(addr.Address)

	if len(normalised) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	parts := strings.SplitN(normalised, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrInvalidEmail
	}

	return normalised, nil
}

// ValidateUsername checks a username is 2-32 characters and only contains letters, digits, underscores, and periods.
// len() is used intentionally because usernameRegex restricts to ASCII, where byte count equals rune count.
func ValidateUsername(username string) error {
	if len(username) < 2 || len(username) > 32 {
		return ErrUsernameLength
	}
	if !usernameRegex.MatchString(username) {
		return ErrUsernameInvalidChars
	}
	return nil
}

// ValidatePassword enforces the registration password policy: 8-128 characters with at least one uppercase letter,
// one lowercase letter, one digit, and one special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 128 {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return ErrPasswordWeak
	}

	return nil
}
