package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/venue"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances by a second on every call so that writes are strictly ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var (
	manager    = &auth.User{ID: "m1"}
	contractor = &auth.User{ID: "c1"}
)

func newFixture(t *testing.T) (*Service, *venue.Service, string) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := docstore.NewMemoryStore(docstore.WithClock(clock.Now))
	venues := venue.NewService(store)
	v, err := venues.Create(context.Background(), manager, venue.CreateInput{Name: "V"})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store), venues, v.ID
}

func boolPtr(b bool) *bool { return &b }

func TestCreateDefaults(t *testing.T) {
	svc, _, venueID := newFixture(t)

	j, err := svc.Create(context.Background(), manager, venueID, CreateInput{Title: " Fix tap "})
	if err != nil {
		t.Fatal(err)
	}
	if j.Title != "Fix tap" || j.Priority != schema.PriorityMedium || j.Status != schema.JobOpen {
		t.Fatalf("unexpected job %+v", j)
	}
	if !j.BroadcastToPool {
		t.Fatal("broadcast should default to true")
	}
	if j.AssignedTo != nil {
		t.Fatalf("empty assignee should be null, got %q", *j.AssignedTo)
	}
	if j.CreatedBy != "m1" || j.CreatedAt == nil {
		t.Fatalf("unexpected author or timestamp %+v", j)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"blank title", CreateInput{Title: "  "}, ErrTitleRequired},
		{"bad priority", CreateInput{Title: "x", Priority: "urgent"}, ErrInvalidPriority},
		{"bad status", CreateInput{Title: "x", Status: "done"}, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, manager, venueID, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestListForVenueNewestFirst(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()
	first, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "first"})
	second, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "second"})

	jobs, err := svc.ListForVenue(ctx, venueID)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatalf("unexpected order %+v", jobs)
	}
}

func TestGetMissing(t *testing.T) {
	svc, _, venueID := newFixture(t)
	j, err := svc.Get(context.Background(), venueID, "nope")
	if err != nil || j != nil {
		t.Fatalf("Get = %+v, %v; want nil, nil", j, err)
	}
}

func TestUpdateClearsAssignee(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()
	j, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "x", AssignedTo: "c1"})
	if j.AssignedTo == nil || *j.AssignedTo != "c1" {
		t.Fatalf("assignee not stored: %+v", j)
	}

	empty := ""
	status := schema.JobAssigned
	got, err := svc.Update(ctx, venueID, j.ID, UpdateInput{AssignedTo: &empty, Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTo != nil || got.Status != schema.JobAssigned {
		t.Fatalf("unexpected job %+v", got)
	}

	bad := schema.JobPriority("urgent")
	if _, err := svc.Update(ctx, venueID, j.ID, UpdateInput{Priority: &bad}); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestListForContractor(t *testing.T) {
	svc, venues, venueID := newFixture(t)
	ctx := context.Background()
	if err := venues.AddMember(ctx, venueID, "c1", schema.RoleContractor, schema.MemberActive); err != nil {
		t.Fatal(err)
	}

	assignedOnly, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "assigned", AssignedTo: "c1", BroadcastToPool: boolPtr(false)})
	both, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "both", AssignedTo: "c1"})
	broadcastOnly, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "broadcast"})
	_, _ = svc.Create(ctx, manager, venueID, CreateInput{Title: "someone else", AssignedTo: "c2", BroadcastToPool: boolPtr(false)})

	// a venue where c1 is inactive contributes nothing
	other, _ := venues.Create(ctx, manager, venue.CreateInput{Name: "Other"})
	_ = venues.AddMember(ctx, other.ID, "c1", schema.RoleContractor, schema.MemberInactive)
	_, _ = svc.Create(ctx, manager, other.ID, CreateInput{Title: "hidden", AssignedTo: "c1"})

	jobs, err := svc.ListForContractor(ctx, contractor.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{assignedOnly.ID, both.ID, broadcastOnly.ID}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %+v", len(want), jobs)
	}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Fatalf("jobs[%d] = %s, want %s", i, jobs[i].ID, id)
		}
		if jobs[i].VenueID != venueID {
			t.Fatalf("jobs[%d] venue = %s", i, jobs[i].VenueID)
		}
	}
}

func TestListForContractorAcrossVenues(t *testing.T) {
	svc, venues, venueA := newFixture(t)
	ctx := context.Background()
	venueB, err := venues.Create(ctx, manager, venue.CreateInput{Name: "B"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{venueA, venueB.ID} {
		if err := venues.AddMember(ctx, id, "c1", schema.RoleContractor, schema.MemberActive); err != nil {
			t.Fatal(err)
		}
	}

	assigned, _ := svc.Create(ctx, manager, venueA, CreateInput{Title: "assigned in A", AssignedTo: "c1", BroadcastToPool: boolPtr(false)})
	broadcast, _ := svc.Create(ctx, manager, venueB.ID, CreateInput{Title: "broadcast in B"})

	jobs, err := svc.ListForContractor(ctx, contractor.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	for _, j := range jobs {
		seen[j.ID]++
		switch j.ID {
		case assigned.ID:
			if j.VenueID != venueA {
				t.Errorf("assigned job carries venue %s, want %s", j.VenueID, venueA)
			}
		case broadcast.ID:
			if j.VenueID != venueB.ID {
				t.Errorf("broadcast job carries venue %s, want %s", j.VenueID, venueB.ID)
			}
		default:
			t.Errorf("unexpected job %s", j.ID)
		}
	}
	if len(jobs) != 2 || seen[assigned.ID] != 1 || seen[broadcast.ID] != 1 {
		t.Fatalf("expected each job exactly once, got %+v", jobs)
	}
}

func TestListForContractorNoMemberships(t *testing.T) {
	svc, _, venueID := newFixture(t)
	_, _ = svc.Create(context.Background(), manager, venueID, CreateInput{Title: "broadcast"})

	jobs, err := svc.ListForContractor(context.Background(), "stranger")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %+v", jobs)
	}
}

func TestPostCommentPrependsToLog(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()
	j, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "x"})

	if _, err := svc.PostComment(ctx, contractor, venueID, j.ID, "on my way"); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.ListUpdates(ctx, venueID, j.ID)

	u, err := svc.PostComment(ctx, contractor, venueID, j.ID, " done ")
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != schema.UpdateComment || u.Message != "done" || u.CreatedBy != "c1" {
		t.Fatalf("unexpected update %+v", u)
	}

	after, err := svc.ListUpdates(ctx, venueID, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before)+1 || after[0].ID != u.ID {
		t.Fatalf("new comment should lead the log, got %+v", after)
	}
	for i := range before {
		if after[i+1].ID != before[i].ID {
			t.Fatalf("earlier entries changed at %d", i)
		}
	}
}

func TestPostCommentValidation(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()
	j, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "x"})

	if _, err := svc.PostComment(ctx, contractor, venueID, j.ID, "  "); !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
	if _, err := svc.PostComment(ctx, contractor, venueID, "missing", "hi"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing job, got %v", err)
	}
	updates, _ := svc.ListUpdates(ctx, venueID, j.ID)
	if len(updates) != 0 {
		t.Fatalf("rejected comments must not be written, got %d", len(updates))
	}
}

func TestPostPhoto(t *testing.T) {
	svc, _, venueID := newFixture(t)
	ctx := context.Background()
	j, _ := svc.Create(ctx, manager, venueID, CreateInput{Title: "x"})

	if _, err := svc.PostPhoto(ctx, contractor, venueID, j.ID, "", "caption"); !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}
	u, err := svc.PostPhoto(ctx, contractor, venueID, j.ID, "https://cdn.example.com/a.jpg", "before")
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != schema.UpdatePhoto || u.PhotoURL != "https://cdn.example.com/a.jpg" || u.Message != "before" {
		t.Fatalf("unexpected update %+v", u)
	}
}
