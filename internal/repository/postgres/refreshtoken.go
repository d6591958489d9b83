package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bloginapp/auth/internal/apperrors"
	"github.com/bloginapp/auth/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, token, created_at, expires_at, revoked_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, t.ID, t.UserID, t.Token, t.CreatedAt, t.ExpiresAt, t.RevokedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetToken by exact token string
SELECT id, user_id, token, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE token = $1
`

// Get token row even if it's revoked or expired already
// Useful for audit: revoked_at distinguishes revoked rows from expired ones
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	t, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const getValidToken = `-- name: GetValidToken
SELECT id, user_id, token, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE token = $1
  AND revoked_at IS NULL
  AND expires_at > $2
`

// Get token only if it's still valid at 'now'
// Read only check: calling it twice in a row succeeds both times
func (r *RefreshTokenRepo) GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getValidToken, tokenString, now)
	t, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const markTokenRevoked = `-- name: MarkTokenRevoked only if not revoked yet
UPDATE refresh_tokens
SET revoked_at = $2
WHERE token = $1 AND revoked_at IS NULL
`

// Mark token revoked
// Safe to call twice: whichever update lands first wins, the second finds
// no unrevoked row and reports false without error
func (r *RefreshTokenRepo) MarkRevoked(ctx context.Context, tokenString string, now time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, markTokenRevoked, tokenString, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	return t, err
}
