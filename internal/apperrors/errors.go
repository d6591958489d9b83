package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned for both unknown email and wrong password,
	// so callers can't tell the two cases apart
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Returned for any access token problem: bad signature, malformed
	// structure, wrong type claim or expiry. Uniform on purpose.
	ErrTokenInvalid = errors.New("token is invalid")

	// Refresh token missing from storage, revoked or expired there.
	// The stored revoked_at column is the only place the cases differ.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
