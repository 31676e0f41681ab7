package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecgard/venuedesk/internal/auth"
)

func TestSignUpAndSignIn(t *testing.T) {
	a := NewAuthAdapter(NewMemoryStore(0))
	ctx := context.Background()

	token, u, err := a.SignUp(ctx, "  ada@example.com ", "pw", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("email should be trimmed, got %q", u.Email)
	}
	if u.DisplayName != "Ada" || u.ID == "" {
		t.Errorf("unexpected user %+v", u)
	}

	looked, err := a.LookupSession(ctx, token)
	if err != nil {
		t.Fatalf("LookupSession: %v", err)
	}
	if looked.ID != u.ID {
		t.Errorf("session resolved to %q, want %q", looked.ID, u.ID)
	}

	token2, u2, err := a.SignIn(ctx, "ada@example.com ", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if u2.ID != u.ID || token2 == token {
		t.Error("sign-in should open a new session for the same account")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	a := NewAuthAdapter(NewMemoryStore(0))
	ctx := context.Background()
	if _, _, err := a.SignUp(ctx, "ada@example.com", "pw", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.SignUp(ctx, "ada@example.com", "pw2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInFailures(t *testing.T) {
	a := NewAuthAdapter(NewMemoryStore(0))
	ctx := context.Background()
	_, _, _ = a.SignUp(ctx, "ada@example.com", "pw", "")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"missing email", "  ", "pw", ErrCredentialsRequired},
		{"missing password", "ada@example.com", "", ErrCredentialsRequired},
		{"unknown email", "bob@example.com", "pw", ErrInvalidCredentials},
		{"wrong password", "ada@example.com", "nope", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.SignIn(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignOutInvalidatesSession(t *testing.T) {
	a := NewAuthAdapter(NewMemoryStore(0))
	ctx := context.Background()
	token, _, _ := a.SignUp(ctx, "ada@example.com", "pw", "")

	if err := a.SignOut(ctx, token); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LookupSession(ctx, token); !errors.Is(err, auth.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestExpiredSessions(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	a := NewAuthAdapter(store)
	ctx := context.Background()

	token, _, err := a.SignUp(ctx, "ada@example.com", "pw", "")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)

	if _, err := a.LookupSession(ctx, token); !errors.Is(err, auth.ErrInvalidSession) {
		t.Fatalf("expected expired session to be rejected, got %v", err)
	}
	n, err := store.CleanExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CleanExpiredSessions = %d, %v", n, err)
	}
}

func TestClientOverAdapter(t *testing.T) {
	c := auth.NewClient(NewAuthAdapter(NewMemoryStore(0)))
	ctx := context.Background()

	if _, err := c.SignUp(ctx, "ada@example.com", "pw", "Ada"); err != nil {
		t.Fatal(err)
	}
	token := c.Token()

	restored := auth.NewClient(NewAuthAdapter(NewMemoryStore(0)))
	if _, err := restored.Restore(ctx, token); err == nil {
		t.Fatal("a token from another store should not restore")
	}
}
