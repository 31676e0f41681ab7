package job

import (
	"context"
	"strings"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

// PostComment appends a comment to the job's update log.
func (s *Service) PostComment(ctx context.Context, actor *auth.User, venueID, jobID, message string) (*schema.JobUpdate, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	return s.appendUpdate(ctx, venueID, jobID, docstore.Fields{
		"type":      schema.UpdateComment,
		"message":   message,
		"createdBy": actor.ID,
		"createdAt": docstore.ServerTimestamp,
	})
}

// PostPhoto appends a photo reference, with an optional caption.
func (s *Service) PostPhoto(ctx context.Context, actor *auth.User, venueID, jobID, photoURL, caption string) (*schema.JobUpdate, error) {
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return nil, ErrPhotoRequired
	}
	fields := docstore.Fields{
		"type":      schema.UpdatePhoto,
		"photoUrl":  photoURL,
		"createdBy": actor.ID,
		"createdAt": docstore.ServerTimestamp,
	}
	if caption = strings.TrimSpace(caption); caption != "" {
		fields["message"] = caption
	}
	return s.appendUpdate(ctx, venueID, jobID, fields)
}

func (s *Service) appendUpdate(ctx context.Context, venueID, jobID string, fields docstore.Fields) (*schema.JobUpdate, error) {
	// The parent job must exist; the log is never written under a dangling id.
	if _, err := s.store.Get(ctx, paths.VenueJobDoc(venueID, jobID)); err != nil {
		return nil, err
	}
	ref, err := s.store.Create(ctx, paths.JobUpdates(venueID, jobID), fields)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return decodeUpdate(doc)
}

// ListUpdates returns a job's update log, newest first.
func (s *Service) ListUpdates(ctx context.Context, venueID, jobID string) ([]*schema.JobUpdate, error) {
	docs, err := s.store.Query(ctx, docstore.From(paths.JobUpdates(venueID, jobID)).OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	updates := make([]*schema.JobUpdate, 0, len(docs))
	for _, d := range docs {
		u, err := decodeUpdate(d)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func decodeUpdate(doc *docstore.Document) (*schema.JobUpdate, error) {
	var u schema.JobUpdate
	if err := doc.DataTo(&u); err != nil {
		return nil, err
	}
	u.ID = doc.Ref.ID()
	return &u, nil
}
