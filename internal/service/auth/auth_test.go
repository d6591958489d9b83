package auth

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/bloginapp/auth/internal/apperrors"
	"github.com/bloginapp/auth/internal/models"
	"github.com/bloginapp/auth/internal/repository/postgres"
	"github.com/bloginapp/auth/internal/testutil"
	"github.com/bloginapp/auth/internal/token"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

// Movable time source, so token expiry may be tested without sleeps
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	const secretKey = "test-secret-key"

	// Begin new db transaction and create new AuthService with a fake clock
	// Rollback transaction when test stops
	withTx := func(t *testing.T, fn func(s *AuthService, a *token.Authority, clock *fakeClock, tx pgx.Tx)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			clock := &fakeClock{current: mustParseTime("2024-01-01 19:00:01Z")}

			authority, err := token.New(token.Config{
				SecretKey:  secretKey,
				AccessTTL:  30 * time.Minute,
				RefreshTTL: 7 * 24 * time.Hour,
				Now:        clock.Now,
			})
			require.NoError(t, err, "token authority should be created without errors")

			userRepo := &postgres.UserRepo{DB: tx}
			refreshRepo := &postgres.RefreshTokenRepo{DB: tx}

			s, err := NewService(Config{Now: clock.Now}, authority, userRepo, refreshRepo)
			require.NoError(t, err, "auth service couldn't be started")

			fn(s, authority, clock, tx)
		})
	}

	deactivateUser := func(t *testing.T, tx pgx.Tx, user models.User) {
		t.Helper()
		_, err := tx.Exec(t.Context(), "UPDATE users SET is_active = false WHERE id = $1", user.ID)
		require.NoError(t, err)
	}

	t.Run("new service defaults", func(t *testing.T) {
		authority, err := token.New(token.Config{SecretKey: secretKey})
		require.NoError(t, err)

		s, err := NewService(Config{}, authority, &postgres.UserRepo{}, &postgres.RefreshTokenRepo{})
		require.NoError(t, err, "auth service should be created without errors")
		require.Equal(t, BcryptHasher{}, s.hasher, "default hasher should be set to BcryptHasher")

		_, err = NewService(Config{}, authority, nil, nil)
		require.Error(t, err, "service must not start without repos")

		_, err = NewService(Config{}, nil, &postgres.UserRepo{}, &postgres.RefreshTokenRepo{})
		require.Error(t, err, "service must not start without token authority")
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				user, err := s.Register(t.Context(), "a@b.com", "password123")

				require.NoError(t, err, "registering new user should be ok")
				require.Equal(t, "a@b.com", user.Email)
				require.NotEqual(t, "password123", user.PasswordHash, "password must be stored hashed")
				require.True(t, user.IsActive)
			})
		})

		t.Run("fail if email taken", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				_, err = s.Register(t.Context(), "a@b.com", "other-password")

				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("valid credentials ok", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				registered, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				user, err := s.Authenticate(t.Context(), "a@b.com", "password123")

				require.NoError(t, err)
				require.Equal(t, registered.ID, user.ID)
			})
		})

		t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "real@x.com", "password123")
				require.NoError(t, err)

				_, unknownErr := s.Authenticate(t.Context(), "nonexistent@x.com", "anything")
				_, wrongPassErr := s.Authenticate(t.Context(), "real@x.com", "wrongpass")

				require.ErrorIs(t, unknownErr, apperrors.ErrInvalidCredentials)
				require.ErrorIs(t, wrongPassErr, apperrors.ErrInvalidCredentials)
				require.Equal(t, unknownErr, wrongPassErr, "both failures should look identical to the caller")
			})
		})

		t.Run("fail if user deactivated", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, tx pgx.Tx) {
				user, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)
				deactivateUser(t, tx, user)

				_, err = s.Authenticate(t.Context(), "a@b.com", "password123")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("issues pair and persists refresh", func(t *testing.T) {
			withTx(t, func(s *AuthService, a *token.Authority, clock *fakeClock, _ pgx.Tx) {
				registered, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				user, pair, err := s.Login(t.Context(), "a@b.com", "password123")

				require.NoError(t, err)
				require.Equal(t, registered.ID, user.ID)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
				require.Equal(t, clock.Now().Add(30*time.Minute), pair.Access.ExpiresAt)
				require.Equal(t, clock.Now().Add(7*24*time.Hour), pair.Refresh.ExpiresAt)

				claims, err := a.Verify(pair.Access.Value)
				require.NoError(t, err)
				require.Equal(t, user.ID.String(), claims.Subject)
				require.Equal(t, token.TypeAccess, claims.TokenType)

				// Refresh token has a matching persisted record
				access, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.NotEmpty(t, access.Value)
			})
		})

		t.Run("concurrent sessions are independent", func(t *testing.T) {
			withTx(t, func(s *AuthService, a *token.Authority, _ *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				_, pair1, err := s.Login(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)
				_, pair2, err := s.Login(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				require.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "each login mints its own refresh token")

				claims1, err := a.Verify(pair1.Refresh.Value)
				require.NoError(t, err)
				claims2, err := a.Verify(pair2.Refresh.Value)
				require.NoError(t, err)
				require.NotEqual(t, claims1.ID, claims2.ID, "jti claims should be different")

				// Revoking one session leaves the other usable
				revoked, err := s.Logout(t.Context(), pair1.Refresh.Value)
				require.NoError(t, err)
				require.True(t, revoked)

				_, err = s.Refresh(t.Context(), pair2.Refresh.Value)
				require.NoError(t, err, "second session should survive first session logout")
			})
		})

		t.Run("fail with invalid credentials", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				_, _, err = s.Login(t.Context(), "a@b.com", "wrongpass")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

				_, _, err = s.Login(t.Context(), "nobody@x.com", "password123")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		login := func(t *testing.T, s *AuthService) models.TokenPair {
			t.Helper()
			_, err := s.Register(t.Context(), "a@b.com", "password123")
			require.NoError(t, err)
			_, pair, err := s.Login(t.Context(), "a@b.com", "password123")
			require.NoError(t, err)
			return pair
		}

		t.Run("mints new access token", func(t *testing.T) {
			withTx(t, func(s *AuthService, a *token.Authority, clock *fakeClock, _ pgx.Tx) {
				pair := login(t, s)

				clock.Advance(10 * time.Minute)
				access, err := s.Refresh(t.Context(), pair.Refresh.Value)

				require.NoError(t, err)
				require.Equal(t, clock.Now().Add(30*time.Minute), access.ExpiresAt, "new token should expire relative to now")

				claims, err := a.Verify(access.Value)
				require.NoError(t, err)
				require.Equal(t, token.TypeAccess, claims.TokenType)
			})
		})

		t.Run("check is read only", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				pair := login(t, s)

				_, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "refreshing does not consume the refresh token")
			})
		})

		t.Run("fail if revoked", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				pair := login(t, s)

				revoked, err := s.Logout(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.True(t, revoked)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("fail if expired in storage", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, clock *fakeClock, _ pgx.Tx) {
				pair := login(t, s)

				clock.Advance(7*24*time.Hour + time.Second)

				_, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "expired token is rejected without explicit revocation")
			})
		})

		t.Run("fail if token type is not refresh", func(t *testing.T) {
			withTx(t, func(s *AuthService, a *token.Authority, clock *fakeClock, tx pgx.Tx) {
				pair := login(t, s)

				// Plant a well signed access token into the refresh store:
				// the storage check passes but the type claim must not
				claims, err := a.Verify(pair.Access.Value)
				require.NoError(t, err)
				userID, err := claims.UserID()
				require.NoError(t, err)

				refreshRepo := &postgres.RefreshTokenRepo{DB: tx}
				_, err = refreshRepo.Save(t.Context(), models.RefreshToken{
					ID:        userID, // any unique id works here
					UserID:    userID,
					Token:     pair.Access.Value,
					CreatedAt: clock.Now(),
					ExpiresAt: clock.Now().Add(time.Hour),
				})
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
			})
		})

		t.Run("fail if signature does not verify", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, clock *fakeClock, tx pgx.Tx) {
				login(t, s)

				// Mint a refresh token with a different secret and plant it
				// into storage: the storage check passes, the signature must not
				forger, err := token.New(token.Config{SecretKey: "other-secret", Now: clock.Now})
				require.NoError(t, err)

				user, err := s.Authenticate(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				forged, jti, err := forger.IssueRefresh(user.ID)
				require.NoError(t, err)

				refreshRepo := &postgres.RefreshTokenRepo{DB: tx}
				_, err = refreshRepo.Save(t.Context(), models.RefreshToken{
					ID:        jti,
					UserID:    user.ID,
					Token:     forged.Value,
					CreatedAt: clock.Now(),
					ExpiresAt: forged.ExpiresAt,
				})
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), forged.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
			})
		})

		t.Run("fail if user deactivated", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, tx pgx.Tx) {
				pair := login(t, s)

				user, err := s.Authenticate(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)
				deactivateUser(t, tx, user)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("revoke once then report false", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)
				_, pair, err := s.Login(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				revoked, err := s.Logout(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.True(t, revoked)

				revoked, err = s.Logout(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "second revocation must not error")
				require.False(t, revoked)
			})
		})

		t.Run("unknown token reports false", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				revoked, err := s.Logout(t.Context(), "never-issued")

				require.NoError(t, err)
				require.False(t, revoked)
			})
		})

		t.Run("access token survives logout until its own expiry", func(t *testing.T) {
			withTx(t, func(s *AuthService, a *token.Authority, clock *fakeClock, _ pgx.Tx) {
				_, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)
				_, pair, err := s.Login(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				revoked, err := s.Logout(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.True(t, revoked)

				// Stateless verification knows nothing about the revocation.
				// This is the documented trade-off of storage free access tokens.
				_, err = a.Verify(pair.Access.Value)
				require.NoError(t, err, "access token is not revocable before natural expiry")

				clock.Advance(30 * time.Minute)
				_, err = a.Verify(pair.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "natural expiry still applies")
			})
		})
	})

	t.Run("ChangePassword", func(t *testing.T) {
		t.Run("replace hash ok", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				user, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "password123", "newpassword456")
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), "a@b.com", "password123")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "old password should stop working")

				_, err = s.Authenticate(t.Context(), "a@b.com", "newpassword456")
				require.NoError(t, err, "new password should work")
			})
		})

		t.Run("fail if current password wrong", func(t *testing.T) {
			withTx(t, func(s *AuthService, _ *token.Authority, _ *fakeClock, _ pgx.Tx) {
				user, err := s.Register(t.Context(), "a@b.com", "password123")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "wrongpass", "newpassword456")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		})
	})
}
