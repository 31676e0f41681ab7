// Package seed writes a small demo data set: one venue managed by the caller,
// a placeholder contractor, and a broadcast job they can both see.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/job"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/venue"
)

const (
	VenueName    = "Sample Venue"
	ContractorID = "sample-contractor"
	JobTitle     = "Sample job"
	JobDesc      = "Seeded job for testing contractor flow."
)

// Result identifies what Run wrote.
type Result struct {
	VenueID string `json:"venueId"`
	JobID   string `json:"jobId"`
}

// Run seeds demo data owned by actor. Each call creates a new venue.
func Run(ctx context.Context, store docstore.Store, actor *auth.User) (*Result, error) {
	venues := venue.NewService(store)
	jobs := job.NewService(store)

	v, err := venues.Create(ctx, actor, venue.CreateInput{Name: VenueName})
	if err != nil {
		return nil, fmt.Errorf("creating sample venue: %w", err)
	}
	if err := venues.AddMember(ctx, v.ID, ContractorID, schema.RoleContractor, schema.MemberActive); err != nil {
		return nil, fmt.Errorf("adding sample contractor: %w", err)
	}

	broadcast := true
	j, err := jobs.Create(ctx, actor, v.ID, job.CreateInput{
		Title:           JobTitle,
		Description:     JobDesc,
		Priority:        schema.PriorityMedium,
		Status:          schema.JobOpen,
		BroadcastToPool: &broadcast,
	})
	if err != nil {
		return nil, fmt.Errorf("creating sample job: %w", err)
	}

	slog.Info("seeded sample data", "venue_id", v.ID, "job_id", j.ID, "user_id", actor.ID)
	return &Result{VenueID: v.ID, JobID: j.ID}, nil
}
