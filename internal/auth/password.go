package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier checks a submitted password against the configured one.
type PasswordVerifier struct {
	plain []byte
	hash  []byte
}

// NewPasswordVerifier prefers the bcrypt hash when both are set.
func NewPasswordVerifier(plain, hash string) (*PasswordVerifier, error) {
	if plain == "" && hash == "" {
		return nil, errors.New("no application password configured")
	}
	v := &PasswordVerifier{}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		v.hash = []byte(hash)
		return v, nil
	}
	sum := sha256.Sum256([]byte(plain))
	v.plain = sum[:]
	return v, nil
}

func (v *PasswordVerifier) Verify(password string) bool {
	if password == "" {
		return false
	}
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
	}
	// Comparing digests keeps the comparison constant-time regardless of length.
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(sum[:], v.plain) == 1
}
