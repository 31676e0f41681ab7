package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

func TestGetMissingIsEmpty(t *testing.T) {
	s := NewService(docstore.NewMemoryStore())
	p, err := s.Get(context.Background(), "nobody")
	if err != nil || p != nil {
		t.Fatalf("Get = %+v, %v; want nil, nil", p, err)
	}
}

func TestEnsureCreatesDefaults(t *testing.T) {
	store := docstore.NewMemoryStore()
	s := NewService(store)
	ctx := context.Background()

	p, err := s.Ensure(ctx, &auth.User{ID: "u1", Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if p.UID != "u1" || p.Role != schema.RoleManager || p.IsDisabled {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.DisplayName == nil || *p.DisplayName != "ada@example.com" {
		t.Fatalf("display name should fall back to email, got %v", p.DisplayName)
	}
	if p.CreatedAt == nil {
		t.Fatal("createdAt should be set")
	}
}

func TestEnsureKeepsExisting(t *testing.T) {
	store := docstore.NewMemoryStore()
	s := NewService(store)
	ctx := context.Background()

	_ = store.Set(ctx, paths.UserDoc("u1"), docstore.Fields{"uid": "u1", "role": "contractor"})
	p, err := s.Ensure(ctx, &auth.User{ID: "u1", Email: "ada@example.com", DisplayName: "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != schema.RoleContractor {
		t.Fatalf("existing role overwritten: %q", p.Role)
	}
	if p.DisplayName != nil {
		t.Fatalf("existing profile should not be modified, got %v", *p.DisplayName)
	}
}

func TestSetRoleRoundTrip(t *testing.T) {
	s := NewService(docstore.NewMemoryStore())
	ctx := context.Background()
	_, _ = s.Ensure(ctx, &auth.User{ID: "u1", Email: "a@example.com"})

	if err := s.SetRole(ctx, "u1", schema.RoleContractor); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Get(ctx, "u1")
	if p.Role != schema.RoleContractor {
		t.Fatalf("role = %q, want contractor", p.Role)
	}
	if p.UpdatedAt == nil {
		t.Fatal("updatedAt should be set")
	}
}

func TestSetRoleRejectsUnknown(t *testing.T) {
	s := NewService(docstore.NewMemoryStore())
	if err := s.SetRole(context.Background(), "u1", "owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestSetRoleMissingProfile(t *testing.T) {
	s := NewService(docstore.NewMemoryStore())
	err := s.SetRole(context.Background(), "u1", schema.RoleManager)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnknownRolePreserved(t *testing.T) {
	store := docstore.NewMemoryStore()
	s := NewService(store)
	ctx := context.Background()
	_ = store.Set(ctx, paths.UserDoc("u1"), docstore.Fields{"uid": "u1", "role": "auditor"})

	p, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != "auditor" || p.Role.Valid() {
		t.Fatalf("unexpected role %q", p.Role)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	s := NewService(docstore.NewMemoryStore())
	ctx := context.Background()
	_, _ = s.Ensure(ctx, &auth.User{ID: "u1", Email: "a@example.com"})

	if err := s.UpdateDisplayName(ctx, "u1", "   "); !errors.Is(err, ErrDisplayNameRequired) {
		t.Fatalf("expected ErrDisplayNameRequired, got %v", err)
	}
	if err := s.UpdateDisplayName(ctx, "u1", " Ada "); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Get(ctx, "u1")
	if *p.DisplayName != "Ada" {
		t.Fatalf("display name = %q", *p.DisplayName)
	}
}
