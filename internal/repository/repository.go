package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bloginapp/auth/internal/models"
)

type CreateUserParams struct {
	Email        string
	PasswordHash string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace the stored password hash
	// If user not found must return apperrors.ErrUserNotFound
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token in repository
	Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error)

	// Return the token row even if it's revoked or expired already
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Return the token only if it's not revoked and not expired at 'now'
	// Must return apperrors.ErrRefreshTokenNotFound otherwise
	GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error)

	// Set revoked_at on a not yet revoked token
	// Reports whether a row was actually revoked: revoking an already
	// revoked or unknown token returns false with nil error
	MarkRevoked(ctx context.Context, tokenString string, now time.Time) (bool, error)

	// It would be good idea to add methods
	// Delete expired tokens (rows accumulate without it)
	// Revoke every token of a user
}
