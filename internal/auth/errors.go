package auth

import "errors"

// Sentinel errors for the auth package.
var (
	ErrInvalidEmail         = errors.New("invalid email format")
	ErrUsernameLength       = errors.New("username must be between 2 and 32 characters")
	ErrUsernameInvalidChars = errors.New("username may only contain letters, digits, underscores, and periods")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong      = errors.New("password must be at most 128 characters")
	ErrPasswordWeak         = errors.New("password must contain at least one uppercase letter, one lowercase letter, one digit, and one special character")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAlreadyTaken         = errors.New("username or email already taken")
	ErrUnauthorized         = errors.New("invalid or expired token")
	ErrForbidden            = errors.New("not an accepted member of this chat")
)
