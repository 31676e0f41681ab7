package venue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/policy"
	"github.com/alecgard/venuedesk/internal/schema"
)

// failingSetStore fails every Set, leaving Create untouched.
type failingSetStore struct {
	docstore.Store
	err error
}

func (s *failingSetStore) Set(context.Context, docstore.DocRef, docstore.Fields, ...docstore.SetOption) error {
	return s.err
}

var manager = &auth.User{ID: "m1", Email: "m1@example.com"}

func TestCreateWritesVenueAndMembership(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	v, err := svc.Create(ctx, manager, CreateInput{Name: "  The Anchor ", Location: " Harbour St "})
	if err != nil {
		t.Fatal(err)
	}
	if v.ID == "" || v.Name != "The Anchor" || v.Location != "Harbour St" || v.CreatedBy != "m1" {
		t.Fatalf("unexpected venue %+v", v)
	}
	if v.CreatedAt == nil || v.UpdatedAt == nil {
		t.Fatal("timestamps should be set")
	}

	doc, err := store.Get(ctx, paths.VenueMemberDoc(v.ID, "m1"))
	if err != nil {
		t.Fatalf("membership missing: %v", err)
	}
	var m schema.VenueMember
	if err := doc.DataTo(&m); err != nil {
		t.Fatal(err)
	}
	if m.Role != schema.RoleManager || m.Status != schema.MemberActive || m.UserID != "m1" {
		t.Fatalf("unexpected membership %+v", m)
	}
}

func TestCreateRequiresName(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store)

	_, err := svc.Create(context.Background(), manager, CreateInput{Name: "   "})
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	docs, _ := store.Query(context.Background(), docstore.From(paths.Venues()))
	if len(docs) != 0 {
		t.Fatalf("no venue should be written, got %d", len(docs))
	}
}

func TestCreatePartialFailureKeepsVenue(t *testing.T) {
	mem := docstore.NewMemoryStore()
	boom := errors.New("boom")
	svc := NewService(&failingSetStore{Store: mem, err: boom})
	ctx := context.Background()

	_, err := svc.Create(ctx, manager, CreateInput{Name: "Half Built"})
	var partial *PartialCreateError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *PartialCreateError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("partial error should wrap the cause, got %v", err)
	}
	if _, err := mem.Get(ctx, paths.VenueDoc(partial.VenueID)); err != nil {
		t.Fatalf("venue should remain after membership failure: %v", err)
	}
	if _, err := mem.Get(ctx, paths.VenueMemberDoc(partial.VenueID, "m1")); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("membership should not exist, got %v", err)
	}
}

func TestCreateThroughGuard(t *testing.T) {
	mem := docstore.NewMemoryStore()
	ctx := auth.ContextWithUser(context.Background(), manager)
	_ = mem.Set(ctx, paths.UserDoc("m1"), docstore.Fields{"uid": "m1", "role": "manager"})
	guard := policy.NewGuard(mem, policy.NewEngine(mem), policy.ModeEnforce, nil)
	svc := NewService(guard)

	v, err := svc.Create(ctx, manager, CreateInput{Name: "Guarded"})
	if err != nil {
		t.Fatalf("creator should be able to bootstrap the venue: %v", err)
	}
	venues, err := svc.ListForUser(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(venues) != 1 || venues[0].ID != v.ID {
		t.Fatalf("ListForUser = %+v", venues)
	}
}

func TestListForUser(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	a, _ := svc.Create(ctx, manager, CreateInput{Name: "A"})
	b, _ := svc.Create(ctx, manager, CreateInput{Name: "B"})
	other, _ := svc.Create(ctx, &auth.User{ID: "m2"}, CreateInput{Name: "Other"})

	// inactive membership is ignored
	_ = svc.AddMember(ctx, other.ID, "m1", schema.RoleContractor, schema.MemberInactive)
	// membership pointing at a venue that no longer exists is skipped
	_ = svc.AddMember(ctx, "ghost", "m1", schema.RoleManager, schema.MemberActive)

	venues, err := svc.ListForUser(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(venues) != 2 || venues[0].ID != a.ID || venues[1].ID != b.ID {
		t.Fatalf("unexpected venues %+v", venues)
	}
}

func TestGetMissing(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	v, err := svc.Get(context.Background(), "nope")
	if err != nil || v != nil {
		t.Fatalf("Get = %+v, %v; want nil, nil", v, err)
	}
}

func TestUpdate(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()
	v, _ := svc.Create(ctx, manager, CreateInput{Name: "Old"})

	name := "New"
	got, err := svc.Update(ctx, v.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "New" {
		t.Fatalf("name = %q", got.Name)
	}

	blank := " "
	if _, err := svc.Update(ctx, v.ID, UpdateInput{Name: &blank}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", UpdateInput{Name: &name}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMembers(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()
	v, _ := svc.Create(ctx, manager, CreateInput{Name: "V"})
	_ = svc.AddMember(ctx, v.ID, "c1", schema.RoleContractor, schema.MemberPending)

	members, err := svc.ListMembers(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[1].UserID != "c1" || members[1].Status != schema.MemberPending {
		t.Fatalf("unexpected member %+v", members[1])
	}
}

func TestCreateInvite(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, WithInviteTTL(48*time.Hour))
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()
	v, _ := svc.Create(ctx, manager, CreateInput{Name: "V"})

	created, err := svc.CreateInvite(ctx, manager, v.ID, " sparky@example.com ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(created.Token, InviteTokenPrefix) {
		t.Fatalf("token %q lacks prefix", created.Token)
	}
	inv := created.Invite
	if inv.Role != schema.RoleContractor || inv.Status != schema.InviteSent || inv.CreatedBy != "m1" {
		t.Fatalf("unexpected invite %+v", inv)
	}
	if inv.Email != "sparky@example.com" {
		t.Fatalf("email = %q", inv.Email)
	}
	if inv.TokenHash != auth.HashKey(created.Token) {
		t.Fatal("stored hash should match the returned token")
	}
	if inv.ExpiresAt == nil || !inv.ExpiresAt.Equal(fixed.Add(48*time.Hour)) {
		t.Fatalf("expiresAt = %v", inv.ExpiresAt)
	}

	doc, _ := store.Get(ctx, paths.VenueInviteDoc(v.ID, inv.ID))
	for _, val := range doc.Data {
		if val == created.Token {
			t.Fatal("plaintext token must not be stored")
		}
	}

	invites, err := svc.ListInvites(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(invites) != 1 || invites[0].ID != inv.ID {
		t.Fatalf("ListInvites = %+v", invites)
	}
}
