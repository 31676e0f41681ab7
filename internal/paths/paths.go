// Package paths maps venuedesk entities to their document store locations.
//
//	users/{uid}
//	venues/{venueId}
//	venues/{venueId}/members/{userId}
//	venues/{venueId}/invites/{inviteId}
//	venues/{venueId}/jobs/{jobId}
//	venues/{venueId}/jobs/{jobId}/updates/{updateId}
package paths

import (
	"strings"

	"github.com/alecgard/venuedesk/internal/docstore"
)

// Collection names.
const (
	UsersCollection   = "users"
	VenuesCollection  = "venues"
	MembersCollection = "members"
	InvitesCollection = "invites"
	JobsCollection    = "jobs"
	UpdatesCollection = "updates"
)

func Users() docstore.CollectionRef { return docstore.Collection(UsersCollection) }

func UserDoc(uid string) docstore.DocRef { return Users().Doc(uid) }

func Venues() docstore.CollectionRef { return docstore.Collection(VenuesCollection) }

func VenueDoc(venueID string) docstore.DocRef { return Venues().Doc(venueID) }

func VenueMembers(venueID string) docstore.CollectionRef {
	return VenueDoc(venueID).Collection(MembersCollection)
}

func VenueMemberDoc(venueID, userID string) docstore.DocRef {
	return VenueMembers(venueID).Doc(userID)
}

func VenueInvites(venueID string) docstore.CollectionRef {
	return VenueDoc(venueID).Collection(InvitesCollection)
}

func VenueInviteDoc(venueID, inviteID string) docstore.DocRef {
	return VenueInvites(venueID).Doc(inviteID)
}

func VenueJobs(venueID string) docstore.CollectionRef {
	return VenueDoc(venueID).Collection(JobsCollection)
}

func VenueJobDoc(venueID, jobID string) docstore.DocRef {
	return VenueJobs(venueID).Doc(jobID)
}

func JobUpdates(venueID, jobID string) docstore.CollectionRef {
	return VenueJobDoc(venueID, jobID).Collection(UpdatesCollection)
}

func JobUpdateDoc(venueID, jobID, updateID string) docstore.DocRef {
	return JobUpdates(venueID, jobID).Doc(updateID)
}

// MembersGroup queries every members collection regardless of venue.
func MembersGroup() docstore.Query { return docstore.Group(MembersCollection) }

// JobsGroup queries every jobs collection regardless of venue.
func JobsGroup() docstore.Query { return docstore.Group(JobsCollection) }

// VenueIDOf returns the venue owning a membership document
// (venues/{venueId}/members/{userId}).
func VenueIDOf(member docstore.DocRef) (string, bool) {
	loc := Classify(member.Path())
	if loc.Kind != KindVenueMember {
		return "", false
	}
	return loc.VenueID, true
}

// Kind identifies the entity a path addresses.
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindVenue
	KindVenueMember
	KindVenueInvite
	KindJob
	KindJobUpdate
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindUser:        "user",
	KindVenue:       "venue",
	KindVenueMember: "venue_member",
	KindVenueInvite: "venue_invite",
	KindJob:         "job",
	KindJobUpdate:   "job_update",
}

func (k Kind) String() string { return kindNames[k] }

// Location is a classified path. For collection paths IsCollection is set and
// the trailing id field for Kind is empty.
type Location struct {
	Kind         Kind
	IsCollection bool
	UserID       string
	VenueID      string
	InviteID     string
	JobID        string
	UpdateID     string
}

// Classify parses a document or collection path.
func Classify(path string) Location {
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return Location{}
		}
	}
	n := len(segs)
	isColl := n%2 == 1
	at := func(i int) string {
		if i < n {
			return segs[i]
		}
		return ""
	}

	switch segs[0] {
	case UsersCollection:
		if n > 2 {
			return Location{}
		}
		return Location{Kind: KindUser, IsCollection: isColl, UserID: at(1)}
	case VenuesCollection:
	default:
		return Location{}
	}

	if n <= 2 {
		return Location{Kind: KindVenue, IsCollection: isColl, VenueID: at(1)}
	}
	venueID := segs[1]
	switch segs[2] {
	case MembersCollection:
		if n > 4 {
			return Location{}
		}
		return Location{Kind: KindVenueMember, IsCollection: isColl, VenueID: venueID, UserID: at(3)}
	case InvitesCollection:
		if n > 4 {
			return Location{}
		}
		return Location{Kind: KindVenueInvite, IsCollection: isColl, VenueID: venueID, InviteID: at(3)}
	case JobsCollection:
		if n <= 4 {
			return Location{Kind: KindJob, IsCollection: isColl, VenueID: venueID, JobID: at(3)}
		}
		if segs[4] != UpdatesCollection || n > 6 {
			return Location{}
		}
		return Location{Kind: KindJobUpdate, IsCollection: isColl, VenueID: venueID, JobID: segs[3], UpdateID: at(5)}
	}
	return Location{}
}
