package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bloginapp/auth/internal/apperrors"
	"github.com/bloginapp/auth/internal/handlers/middleware"
	"github.com/bloginapp/auth/internal/handlers/render"
	"github.com/bloginapp/auth/internal/token"
)

func handleRegister(auth authService, l logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type response struct {
		Message string    `json:"message"`
		UserID  uuid.UUID `json:"user_id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := auth.Register(r.Context(), data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "Email already registered", http.StatusConflict)
			default:
				l.Error("register failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Message: "User registered successfully", UserID: user.ID})
	})
}

func handleLogin(auth authService, l logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type userInfo struct {
		ID       uuid.UUID `json:"id"`
		Email    string    `json:"email"`
		IsActive bool      `json:"is_active"`
	}
	type response struct {
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
		TokenType    string   `json:"token_type"`
		ExpiresIn    int      `json:"expires_in"`
		User         userInfo `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := auth.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				render.ServiceError(w, "Incorrect email or password", http.StatusUnauthorized)
			default:
				l.Error("login failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
			TokenType:    "bearer",
			ExpiresIn:    int(auth.AccessTTL() / time.Second),
			User:         userInfo{ID: user.ID, Email: user.Email, IsActive: user.IsActive},
		})
	})
}

func handleRefresh(auth authService, l logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	type response struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		access, err := auth.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrRefreshTokenNotFound),
				errors.Is(err, apperrors.ErrTokenInvalid):
				render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
			default:
				l.Error("refresh failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{
			AccessToken: access.Value,
			TokenType:   "bearer",
			ExpiresIn:   int(auth.AccessTTL() / time.Second),
		})
	})
}

func handleLogout(auth authService, l logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
		Revoked bool   `json:"revoked"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		revoked, err := auth.Logout(r.Context(), data.RefreshToken)
		if err != nil {
			l.Error("logout failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Logout successful", Revoked: revoked})
	})
}

// handleVerify echoes the claim set of a bearer access token.
// Decode only, the refresh-token store is never consulted here.
func handleVerify(verifier token.Verifier) http.Handler {
	type response struct {
		UserID string `json:"user_id"`
		Exp    int64  `json:"exp"`
		Type   string `json:"type"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := verifier.Verify(middleware.BearerToken(r))
		if err != nil {
			render.ServiceError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		render.JSON(w, response{
			UserID: claims.Subject,
			Exp:    claims.ExpiresAt.Unix(),
			Type:   claims.TokenType,
		})
	})
}
