package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted grant record, one row per issued token.
// The row is valid while RevokedAt is nil and ExpiresAt is in the future.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil until the token is revoked
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair returned to the user on successful login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
