// Package job manages jobs inside venues and their append-only update logs.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/venue"
)

var (
	ErrTitleRequired   = errors.New("job title is required")
	ErrMessageRequired = errors.New("comment message is required")
	ErrPhotoRequired   = errors.New("photo url is required")
	ErrInvalidPriority = errors.New("invalid job priority")
	ErrInvalidStatus   = errors.New("invalid job status")
)

// Service manages jobs.
type Service struct {
	store docstore.Store
}

// NewService creates a job service.
func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// CreateInput holds the fields of a new job. Zero values select the
// defaults: medium priority, open status.
type CreateInput struct {
	Title           string             `json:"title" validate:"required"`
	Description     string             `json:"description"`
	Priority        schema.JobPriority `json:"priority"`
	Status          schema.JobStatus   `json:"status"`
	BroadcastToPool *bool              `json:"broadcastToPool"`
	AssignedTo      string             `json:"assignedTo"`
}

// Create writes a new job into the venue. An empty assignee is stored as
// null; broadcast defaults to true.
func (s *Service) Create(ctx context.Context, actor *auth.User, venueID string, in CreateInput) (*schema.Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	priority := in.Priority
	if priority == "" {
		priority = schema.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	status := in.Status
	if status == "" {
		status = schema.JobOpen
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	broadcast := true
	if in.BroadcastToPool != nil {
		broadcast = *in.BroadcastToPool
	}
	var assignee any
	if a := strings.TrimSpace(in.AssignedTo); a != "" {
		assignee = a
	}

	ref, err := s.store.Create(ctx, paths.VenueJobs(venueID), docstore.Fields{
		"title":           title,
		"description":     strings.TrimSpace(in.Description),
		"priority":        priority,
		"status":          status,
		"createdBy":       actor.ID,
		"broadcastToPool": broadcast,
		"assignedTo":      assignee,
		"createdAt":       docstore.ServerTimestamp,
		"updatedAt":       docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, venueID, ref.ID())
}

// Get returns a job, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, venueID, jobID string) (*schema.Job, error) {
	doc, err := s.store.Get(ctx, paths.VenueJobDoc(venueID, jobID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeJob(doc)
}

// UpdateInput holds optional job changes. An AssignedTo of "" clears the
// assignee.
type UpdateInput struct {
	Title           *string             `json:"title,omitempty"`
	Description     *string             `json:"description,omitempty"`
	Priority        *schema.JobPriority `json:"priority,omitempty"`
	Status          *schema.JobStatus   `json:"status,omitempty"`
	BroadcastToPool *bool               `json:"broadcastToPool,omitempty"`
	AssignedTo      *string             `json:"assignedTo,omitempty"`
}

// Update applies the given changes to a job.
func (s *Service) Update(ctx context.Context, venueID, jobID string, in UpdateInput) (*schema.Job, error) {
	fields := docstore.Fields{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = title
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, *in.Priority)
		}
		fields["priority"] = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		fields["status"] = *in.Status
	}
	if in.BroadcastToPool != nil {
		fields["broadcastToPool"] = *in.BroadcastToPool
	}
	if in.AssignedTo != nil {
		if a := strings.TrimSpace(*in.AssignedTo); a != "" {
			fields["assignedTo"] = a
		} else {
			fields["assignedTo"] = nil
		}
	}
	if len(fields) == 0 {
		return s.Get(ctx, venueID, jobID)
	}
	fields["updatedAt"] = docstore.ServerTimestamp
	if err := s.store.Update(ctx, paths.VenueJobDoc(venueID, jobID), fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, venueID, jobID)
}

// ListForVenue returns a venue's jobs, newest first.
func (s *Service) ListForVenue(ctx context.Context, venueID string) ([]*schema.Job, error) {
	docs, err := s.store.Query(ctx, docstore.From(paths.VenueJobs(venueID)).OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	jobs := make([]*schema.Job, 0, len(docs))
	for _, d := range docs {
		j, err := decodeJob(d)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// VenueJob is a job annotated with the venue it belongs to.
type VenueJob struct {
	*schema.Job
	VenueID string `json:"venueId"`
}

// ListForContractor returns the jobs visible to uid across every venue they
// are an active member of: jobs assigned to them followed by jobs broadcast
// to the pool. A job matching both appears once, at its first position.
func (s *Service) ListForContractor(ctx context.Context, uid string) ([]VenueJob, error) {
	venueIDs, err := venue.ActiveVenueIDs(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}

	var out []VenueJob
	seen := make(map[string]int)
	add := func(venueID string, docs []*docstore.Document) error {
		for _, d := range docs {
			j, err := decodeJob(d)
			if err != nil {
				return err
			}
			vj := VenueJob{Job: j, VenueID: venueID}
			// keyed by job id alone; a later duplicate replaces the value in place
			if i, ok := seen[j.ID]; ok {
				out[i] = vj
				continue
			}
			seen[j.ID] = len(out)
			out = append(out, vj)
		}
		return nil
	}

	for _, venueID := range venueIDs {
		jobs := docstore.From(paths.VenueJobs(venueID))
		assigned, err := s.store.Query(ctx, jobs.Where("assignedTo", uid))
		if err != nil {
			return nil, err
		}
		if err := add(venueID, assigned); err != nil {
			return nil, err
		}
		broadcast, err := s.store.Query(ctx, jobs.Where("broadcastToPool", true))
		if err != nil {
			return nil, err
		}
		if err := add(venueID, broadcast); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeJob(doc *docstore.Document) (*schema.Job, error) {
	var j schema.Job
	if err := doc.DataTo(&j); err != nil {
		return nil, err
	}
	j.ID = doc.Ref.ID()
	return &j, nil
}
