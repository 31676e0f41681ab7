// Package profile reads and writes application profiles (users/{uid}).
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

var (
	ErrInvalidRole         = errors.New("invalid role")
	ErrDisplayNameRequired = errors.New("display name is required")
)

// Service manages profile documents.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Get returns the profile for uid, or nil when none exists yet.
func (s *Service) Get(ctx context.Context, uid string) (*schema.User, error) {
	doc, err := s.store.Get(ctx, paths.UserDoc(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Ensure returns the profile for u, creating it with defaults first when it
// does not exist. The create is a merge write so a concurrent create by
// another client does not clobber fields.
func (s *Service) Ensure(ctx context.Context, u *auth.User) (*schema.User, error) {
	p, err := s.Get(ctx, u.ID)
	if err != nil || p != nil {
		return p, err
	}
	if err := s.store.Set(ctx, paths.UserDoc(u.ID), Defaults(u), docstore.Merge()); err != nil {
		return nil, err
	}
	p, err = s.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", u.ID, docstore.ErrNotFound)
	}
	return p, nil
}

// Defaults is the payload written for a first-time profile.
func Defaults(u *auth.User) docstore.Fields {
	var displayName any
	if name := u.NameOrEmail(); name != "" {
		displayName = name
	}
	var email any
	if u.Email != "" {
		email = u.Email
	}
	return docstore.Fields{
		"uid":         u.ID,
		"email":       email,
		"displayName": displayName,
		"role":        schema.DefaultRole,
		"isDisabled":  false,
		"createdAt":   docstore.ServerTimestamp,
	}
}

// SetRole changes the stored role of uid.
func (s *Service) SetRole(ctx context.Context, uid string, role schema.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.store.Update(ctx, paths.UserDoc(uid), docstore.Fields{
		"role":      role,
		"updatedAt": docstore.ServerTimestamp,
	})
}

// UpdateDisplayName changes the display name of uid.
func (s *Service) UpdateDisplayName(ctx context.Context, uid, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDisplayNameRequired
	}
	return s.store.Update(ctx, paths.UserDoc(uid), docstore.Fields{
		"displayName": name,
		"updatedAt":   docstore.ServerTimestamp,
	})
}

// Decode converts a stored profile document. Unknown role values are kept
// as stored.
func Decode(doc *docstore.Document) (*schema.User, error) {
	var u schema.User
	if err := doc.DataTo(&u); err != nil {
		return nil, err
	}
	if u.UID == "" {
		u.UID = doc.Ref.ID()
	}
	return &u, nil
}
