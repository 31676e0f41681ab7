package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidSession is returned when a session token is unknown or expired.
var ErrInvalidSession = errors.New("invalid or expired session")

// User is the identity of a signed-in account as reported by the identity
// provider. It carries no application role; roles live on the stored
// profile.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// EmailPtr returns the email, or nil when the provider has none.
func (u *User) EmailPtr() *string {
	if u.Email == "" {
		return nil
	}
	e := u.Email
	return &e
}

// NameOrEmail returns the display name, falling back to the email.
func (u *User) NameOrEmail() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// SessionLookup resolves session tokens to users.
type SessionLookup interface {
	LookupSession(ctx context.Context, token string) (*User, error)
}

// Provider is the identity provider: account sign-up, sign-in and session
// management keyed by opaque tokens.
type Provider interface {
	SessionLookup
	SignUp(ctx context.Context, email, password, displayName string) (string, *User, error)
	SignIn(ctx context.Context, email, password string) (string, *User, error)
	SignOut(ctx context.Context, token string) error
}

// GenerateToken creates a secret made of prefix followed by 32 URL-safe
// random characters. It returns the plaintext, which is shown once, and its
// hash, which is what gets stored.
func GenerateToken(prefix string) (plaintext, hash string, err error) {
	b := make([]byte, 24) // 24 bytes -> 32 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	plaintext = prefix + base64.RawURLEncoding.EncodeToString(b)
	return plaintext, HashKey(plaintext), nil
}

// GenerateSessionToken returns 32 random bytes hex-encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey returns the hex-encoded SHA-256 hash of the given plaintext secret.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
