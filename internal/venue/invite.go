package venue

import (
	"context"
	"strings"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

// InviteTokenPrefix starts every invite token.
const InviteTokenPrefix = "vd_inv_"

// CreatedInvite is a new invite plus its plaintext token, which is not
// stored and cannot be recovered later.
type CreatedInvite struct {
	Invite *schema.VenueInvite `json:"invite"`
	Token  string              `json:"token"`
}

// CreateInvite records a contractor invite for the venue. Only the token's
// hash is stored.
func (s *Service) CreateInvite(ctx context.Context, actor *auth.User, venueID, email string) (*CreatedInvite, error) {
	token, hash, err := auth.GenerateToken(InviteTokenPrefix)
	if err != nil {
		return nil, err
	}
	fields := docstore.Fields{
		"role":      schema.RoleContractor,
		"status":    schema.InviteSent,
		"createdBy": actor.ID,
		"createdAt": docstore.ServerTimestamp,
		"expiresAt": s.now().Add(s.inviteTTL),
		"tokenHash": hash,
	}
	if email = strings.TrimSpace(email); email != "" {
		fields["email"] = email
	}

	ref, err := s.store.Create(ctx, paths.VenueInvites(venueID), fields)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	inv, err := decodeInvite(doc)
	if err != nil {
		return nil, err
	}
	return &CreatedInvite{Invite: inv, Token: token}, nil
}

// ListInvites returns a venue's invites, newest first.
func (s *Service) ListInvites(ctx context.Context, venueID string) ([]*schema.VenueInvite, error) {
	docs, err := s.store.Query(ctx, docstore.From(paths.VenueInvites(venueID)).OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	invites := make([]*schema.VenueInvite, 0, len(docs))
	for _, d := range docs {
		inv, err := decodeInvite(d)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, nil
}

func decodeInvite(doc *docstore.Document) (*schema.VenueInvite, error) {
	var inv schema.VenueInvite
	if err := doc.DataTo(&inv); err != nil {
		return nil, err
	}
	inv.ID = doc.Ref.ID()
	return &inv, nil
}
