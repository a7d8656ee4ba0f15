// Package auth guards the HTTP API with a single shared password.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for the in-memory password hash.
const DefaultCost = bcrypt.DefaultCost

var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordMismatch = errors.New("password does not match")
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password with a hash from HashPassword. Every
// mismatch, including a malformed hash, is ErrPasswordMismatch.
func VerifyPassword(password, hash string) error {
	if password == "" || hash == "" {
		return ErrPasswordMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
