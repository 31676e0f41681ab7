package user

import (
	"context"
	"errors"
	"strings"

	"github.com/alecgard/venuedesk/internal/auth"
)

// AuthAdapter adapts a Repository to the auth.Provider interface.
type AuthAdapter struct {
	repo Repository
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given repository.
func NewAuthAdapter(repo Repository) *AuthAdapter {
	return &AuthAdapter{repo: repo}
}

// SignUp creates an account and opens a session for it. The email is
// trimmed; email and password are required.
func (a *AuthAdapter) SignUp(ctx context.Context, email, password, displayName string) (string, *auth.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrCredentialsRequired
	}
	acct, err := a.repo.CreateAccount(ctx, email, password, strings.TrimSpace(displayName))
	if err != nil {
		return "", nil, err
	}
	return a.open(ctx, acct)
}

// SignIn verifies the credentials and opens a session.
func (a *AuthAdapter) SignIn(ctx context.Context, email, password string) (string, *auth.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrCredentialsRequired
	}
	acct, err := a.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !CheckPassword(acct, password) {
		return "", nil, ErrInvalidCredentials
	}
	return a.open(ctx, acct)
}

// SignOut deletes the session.
func (a *AuthAdapter) SignOut(ctx context.Context, token string) error {
	return a.repo.DeleteSession(ctx, token)
}

// LookupSession resolves a session token to its user.
func (a *AuthAdapter) LookupSession(ctx context.Context, token string) (*auth.User, error) {
	acct, err := a.repo.GetSessionAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	return toAuthUser(acct), nil
}

func (a *AuthAdapter) open(ctx context.Context, acct *Account) (string, *auth.User, error) {
	token, _, err := a.repo.CreateSession(ctx, acct.ID)
	if err != nil {
		return "", nil, err
	}
	return token, toAuthUser(acct), nil
}

func toAuthUser(a *Account) *auth.User {
	return &auth.User{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
	}
}
