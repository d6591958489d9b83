package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt work factor
const hashCost = 12

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	// Salted: hashing the same password twice yields different strings
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	// Any mismatch or malformed hash is an error, never a panic
	Compare(hashedPassword string, password string) error
}

// Bcrypt password hasher
// Will be used as default one if user not provide it's own
type BcryptHasher struct{}

var DefaultHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
