package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bloginapp/auth/internal/handlers/middleware"
	"github.com/bloginapp/auth/internal/models"
	"github.com/bloginapp/auth/internal/token"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth authService,
	verifier token.Verifier,
	l logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(verifier)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiauth := http.NewServeMux()

	apiauth.Handle("POST /register", handleRegister(auth, l))
	apiauth.Handle("POST /login", handleLogin(auth, l))
	apiauth.Handle("POST /refresh", handleRefresh(auth, l))
	apiauth.Handle("POST /logout", handleLogout(auth, l))
	apiauth.Handle("GET /verify", handleVerify(verifier))

	apiauth.Handle("GET /me", withAuth(handleUserMe(auth, l)))
	apiauth.Handle("POST /change-password", withAuth(handleChangePassword(auth, l)))

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", apiauth))

	handler := chain(root,
		middleware.LoggerMiddleware(l),
	)

	return handler
}

type authService interface {
	// Register user with email and password
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, email string, password string) (models.User, error)

	// Login user and issue a token pair
	// Has to return apperrors.ErrInvalidCredentials on bad email or password
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Mint a new access token for a valid refresh token
	// Has to return apperrors.ErrRefreshTokenNotFound or apperrors.ErrTokenInvalid
	// when any of the dual checks fail
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Revoke the refresh token; reports whether a row was actually revoked
	Logout(ctx context.Context, refresh string) (bool, error)

	// Get user by id
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Verify the current password and store a new hash
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) error

	// Configured access token lifetime, reported as expires_in to clients
	AccessTTL() time.Duration
}

type logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}
