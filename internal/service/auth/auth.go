package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bloginapp/auth/internal/apperrors"
	"github.com/bloginapp/auth/internal/models"
	"github.com/bloginapp/auth/internal/repository"
	"github.com/bloginapp/auth/internal/token"
)

type Config struct {
	// Hasher to use during registration or login
	// Defaults to bcrypt if not set
	Hasher PasswordHasher

	// Source of current time, defaults to time.Now
	Now func() time.Time
}

// Token authority service: authenticates credentials, issues token pairs,
// refreshes access tokens and revokes refresh tokens
type AuthService struct {
	authority *token.Authority
	hasher    PasswordHasher
	now       func() time.Time

	userRepo    repository.UserRepo
	refreshRepo repository.RefreshTokenRepo
}

func NewService(cfg Config, authority *token.Authority, userRepo repository.UserRepo, refreshRepo repository.RefreshTokenRepo) (*AuthService, error) {
	if authority == nil {
		return nil, errors.New("token authority must not be nil")
	}
	if userRepo == nil || refreshRepo == nil {
		return nil, errors.New("repos must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		authority:   authority,
		hasher:      hasher,
		now:         now,
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
	}, nil
}

func (s *AuthService) AccessTTL() time.Duration { return s.authority.AccessTTL() }

// Register creates user with hashed password
// Tokens are not issued here: the client logs in afterwards
func (s *AuthService) Register(ctx context.Context, email string, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials against the stored hash
// Unknown email, wrong password and deactivated user all collapse into
// apperrors.ErrInvalidCredentials so callers can't enumerate users
func (s *AuthService) Authenticate(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates the user and issues a fresh token pair.
// The refresh token is minted first and persisted second, so the stored
// record is exactly the string handed to the client.
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return user, pair, err
	}

	pair, err = s.issuePair(ctx, user)
	if err != nil {
		return user, pair, err
	}

	return user, pair, nil
}

// Refresh mints a new access token for a presented refresh token.
//
// Two independent checks have to pass: the stored record must still be valid
// (present, not revoked, not expired) and the string itself must carry a good
// signature with type "refresh". A stolen token that expired in storage is
// rejected even though it's cryptographically well formed, and a forged
// string can't match storage because storage only ever holds minted strings.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	var access models.IssuedToken

	_, err := s.refreshRepo.GetValid(ctx, refresh, s.now())
	if err != nil {
		return access, err
	}

	claims, err := s.authority.Verify(refresh)
	if err != nil {
		return access, err
	}
	if claims.TokenType != token.TypeRefresh {
		return access, apperrors.ErrTokenInvalid
	}

	userID, err := claims.UserID()
	if err != nil {
		return access, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return access, apperrors.ErrTokenInvalid
	case err != nil:
		return access, err
	case !user.IsActive:
		return access, apperrors.ErrTokenInvalid
	}

	access, err = s.authority.IssueAccess(user.ID)
	if err != nil {
		return access, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return access, nil
}

// Logout revokes the refresh token and reports whether a row was revoked.
// Revoking an already revoked or unknown token returns false, not an error.
// Already issued access tokens stay valid until their own expiry.
func (s *AuthService) Logout(ctx context.Context, refresh string) (bool, error) {
	return s.refreshRepo.MarkRevoked(ctx, refresh, s.now())
}

// GetUser returns the user the given id belongs to
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password and stores a new hash
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	return s.userRepo.UpdatePasswordHash(ctx, userID, hash)
}

func (s *AuthService) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := s.authority.IssueAccess(user.ID)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	refresh, jti, err := s.authority.IssueRefresh(user.ID)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	_, err = s.refreshRepo.Save(ctx, models.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		Token:     refresh.Value,
		CreatedAt: s.now().Truncate(time.Second),
		ExpiresAt: refresh.ExpiresAt,
		RevokedAt: nil,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}
