package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials hides whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminCredentials is the single configured admin account.
type AdminCredentials struct {
	username string
	hash     []byte
}

// NewAdminCredentials takes a bcrypt hash, or hashes password when hash is empty.
func NewAdminCredentials(username, password, hash string) (*AdminCredentials, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		return &AdminCredentials{username: username, hash: []byte(hash)}, nil
	}
	if password == "" {
		return nil, errors.New("admin password or password hash is required")
	}
	h, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &AdminCredentials{username: username, hash: []byte(h)}, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Username returns the configured admin name.
func (c *AdminCredentials) Username() string {
	return c.username
}

// Verify compares both fields; the bcrypt comparison always runs so timing
// does not reveal which one was wrong.
func (c *AdminCredentials) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
