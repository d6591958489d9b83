package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bloginapp/auth/internal/apperrors"
	"github.com/bloginapp/auth/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	defaultSigningMethod  = "HS256"
	defaultAccessTokenTTL = 30 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
)

// Claims carried by both token kinds.
// Refresh tokens additionally set the registered ID claim (jti).
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// Verifier is the read-only half of the authority. Services other than the
// token authority should depend on it only: with the shared secret they can
// check access tokens statelessly, without access to the refresh-token store.
//
// That also means an access token can't be revoked before its natural expiry.
// Logout only revokes the refresh token.
type Verifier interface {
	// Verify checks signature, structure and expiry and returns the claims.
	// Every failure collapses into apperrors.ErrTokenInvalid.
	Verify(tokenString string) (Claims, error)
}

// Authority with sensible defaults
type Config struct {
	// Secret key to sign token payloads
	// Required to be set. Has to match byte for byte across services
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Source of current time, defaults to time.Now
	// Override in tests for deterministic expiry checks
	Now func() time.Time
}

type Authority struct {
	// Secret key to sign token payloads
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Clock used for issuing and expiry validation
	now func() time.Time
}

func New(cfg Config) (*Authority, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Authority{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

func (a *Authority) AccessTTL() time.Duration { return a.accessTTL }

func (a *Authority) RefreshTTL() time.Duration { return a.refreshTTL }

// IssueAccess signs short lived stateless access token
// Validity is purely cryptographic and time based, it never touches storage
func (a *Authority) IssueAccess(userID uuid.UUID) (models.IssuedToken, error) {
	now := a.now().Truncate(time.Second)
	expiresAt := now.Add(a.accessTTL)

	t := jwt.NewWithClaims(
		a.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			TokenType: TypeAccess,
		},
	)

	signed, err := t.SignedString([]byte(a.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// IssueRefresh signs long lived refresh token with a fresh unique jti claim.
// Persisting the token is the caller's separate step: mint here, commit there,
// so logins may store the record inside their own transaction.
func (a *Authority) IssueRefresh(userID uuid.UUID) (t models.IssuedToken, jti uuid.UUID, err error) {
	now := a.now().Truncate(time.Second)
	expiresAt := now.Add(a.refreshTTL)
	jti = uuid.New()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TypeRefresh,
	}

	signed, err := jwt.NewWithClaims(a.alg, claims).SignedString([]byte(a.key))
	if err != nil {
		return t, uuid.Nil, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, jti, nil
}

// Verify parses and validates any token signed by the authority.
// Expiry is checked against the injected clock: a token is valid strictly
// before its exp second and rejected from the exp second on.
func (a *Authority) Verify(tokenString string) (Claims, error) {
	claims := Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(a.key), nil },
		jwt.WithValidMethods([]string{a.alg.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		// Don't leak whether the signature, the structure or the expiry failed
		return Claims{}, apperrors.ErrTokenInvalid
	}

	return claims, nil
}

// Subject returns the user id the claims were issued for
func (c Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, apperrors.ErrTokenInvalid
	}
	return id, nil
}
