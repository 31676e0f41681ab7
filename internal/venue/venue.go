// Package venue manages venues, their memberships and their invites.
package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

// DefaultInviteTTL is how long an invite stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

var ErrNameRequired = errors.New("venue name is required")

// PartialCreateError reports a venue that was written without its creator's
// membership. The venue is left in place.
type PartialCreateError struct {
	VenueID string
	Err     error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("venue %s created without manager membership: %v", e.VenueID, e.Err)
}

func (e *PartialCreateError) Unwrap() error { return e.Err }

// Service manages venues.
type Service struct {
	store     docstore.Store
	inviteTTL time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithInviteTTL sets the lifetime of new invites.
func WithInviteTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.inviteTTL = d
		}
	}
}

// NewService creates a venue service.
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{store: store, inviteTTL: DefaultInviteTTL, now: time.Now}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// CreateInput holds the fields of a new venue.
type CreateInput struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
}

// Create writes the venue and then the creator's active manager membership.
// The writes are independent: if the second fails the venue remains and a
// *PartialCreateError naming it is returned.
func (s *Service) Create(ctx context.Context, actor *auth.User, in CreateInput) (*schema.Venue, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	location := strings.TrimSpace(in.Location)

	ref, err := s.store.Create(ctx, paths.Venues(), docstore.Fields{
		"name":      name,
		"location":  location,
		"createdBy": actor.ID,
		"createdAt": docstore.ServerTimestamp,
		"updatedAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}

	err = s.store.Set(ctx, paths.VenueMemberDoc(ref.ID(), actor.ID), docstore.Fields{
		"userId":    actor.ID,
		"role":      schema.RoleManager,
		"status":    schema.MemberActive,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		slog.Error("venue created without manager membership",
			"venue_id", ref.ID(), "user_id", actor.ID, "error", err)
		return nil, &PartialCreateError{VenueID: ref.ID(), Err: err}
	}

	return s.Get(ctx, ref.ID())
}

// Get returns a venue, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, venueID string) (*schema.Venue, error) {
	doc, err := s.store.Get(ctx, paths.VenueDoc(venueID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeVenue(doc)
}

// UpdateInput holds optional venue changes.
type UpdateInput struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
}

// Update applies the given changes.
func (s *Service) Update(ctx context.Context, venueID string, in UpdateInput) (*schema.Venue, error) {
	fields := docstore.Fields{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		fields["name"] = name
	}
	if in.Location != nil {
		fields["location"] = strings.TrimSpace(*in.Location)
	}
	if len(fields) == 0 {
		return s.Get(ctx, venueID)
	}
	fields["updatedAt"] = docstore.ServerTimestamp
	if err := s.store.Update(ctx, paths.VenueDoc(venueID), fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, venueID)
}

// ActiveVenueIDs returns the venues uid is an active member of, in the order
// the memberships were written.
func ActiveVenueIDs(ctx context.Context, store docstore.Store, uid string) ([]string, error) {
	docs, err := store.Query(ctx, paths.MembersGroup().
		Where("userId", uid).
		Where("status", schema.MemberActive))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if id, ok := paths.VenueIDOf(d.Ref); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListForUser returns the venues uid is an active member of. Memberships
// whose venue no longer exists are skipped.
func (s *Service) ListForUser(ctx context.Context, uid string) ([]*schema.Venue, error) {
	ids, err := ActiveVenueIDs(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}
	venues := make([]*schema.Venue, 0, len(ids))
	for _, id := range ids {
		v, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if v != nil {
			venues = append(venues, v)
		}
	}
	return venues, nil
}

// ListMembers returns the memberships of a venue.
func (s *Service) ListMembers(ctx context.Context, venueID string) ([]*schema.VenueMember, error) {
	docs, err := s.store.Query(ctx, docstore.From(paths.VenueMembers(venueID)))
	if err != nil {
		return nil, err
	}
	members := make([]*schema.VenueMember, 0, len(docs))
	for _, d := range docs {
		var m schema.VenueMember
		if err := d.DataTo(&m); err != nil {
			return nil, err
		}
		if m.UserID == "" {
			m.UserID = d.Ref.ID()
		}
		members = append(members, &m)
	}
	return members, nil
}

// AddMember writes a membership record for userID.
func (s *Service) AddMember(ctx context.Context, venueID, userID string, role schema.Role, status schema.MemberStatus) error {
	return s.store.Set(ctx, paths.VenueMemberDoc(venueID, userID), docstore.Fields{
		"userId":    userID,
		"role":      role,
		"status":    status,
		"createdAt": docstore.ServerTimestamp,
	})
}

func decodeVenue(doc *docstore.Document) (*schema.Venue, error) {
	var v schema.Venue
	if err := doc.DataTo(&v); err != nil {
		return nil, err
	}
	v.ID = doc.Ref.ID()
	return &v, nil
}
