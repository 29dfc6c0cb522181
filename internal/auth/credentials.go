package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrMissingCredentials = errors.New("admin username and password are required")

// Credentials is the single static operator login. The password is kept only
// as a bcrypt hash.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials accepts either a plaintext password or an existing bcrypt
// hash ("$2a$", "$2b$" or "$2y$" prefix).
func NewCredentials(username, password string) (*Credentials, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if isBcryptHash(password) {
		return &Credentials{username: username, hash: []byte(password)}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Credentials{username: username, hash: hash}, nil
}

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Verify reports whether username and password match.
func (c *Credentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	return userOK && passErr == nil
}

// Known reports whether username is the configured operator.
func (c *Credentials) Known(username string) bool {
	return subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
}
