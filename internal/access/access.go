// Package access decides which surface a client belongs on given its
// identity session state.
package access

import (
	"fmt"
	"net/url"

	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/session"
)

// Destination is a top-level surface.
type Destination int

const (
	Waiting Destination = iota
	SignIn
	Admin
	Manager
	Contractor
)

var destinationNames = map[Destination]string{
	Waiting:    "waiting",
	SignIn:     "sign_in",
	Admin:      "admin",
	Manager:    "manager",
	Contractor: "contractor",
}

func (d Destination) String() string { return destinationNames[d] }

// Path returns the navigation root of the surface. Waiting has none.
func (d Destination) Path() string {
	switch d {
	case SignIn:
		return "/auth/login"
	case Admin:
		return "/admin"
	case Manager:
		return "/manager"
	case Contractor:
		return "/contractor"
	}
	return ""
}

// MarshalText renders the destination name.
func (d Destination) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a destination name.
func (d *Destination) UnmarshalText(text []byte) error {
	for dest, name := range destinationNames {
		if name == string(text) {
			*d = dest
			return nil
		}
	}
	return fmt.Errorf("unknown destination %q", text)
}

// Route maps a session state to its destination. It is total: every role
// value other than system_admin and contractor, including unknown ones,
// lands on the manager surface.
func Route(s session.State) Destination {
	switch {
	case s.Loading:
		return Waiting
	case s.User == nil:
		return SignIn
	case s.Profile == nil:
		return Waiting
	}
	return ForRole(s.Profile.Role)
}

// ForRole returns the surface for a signed-in user with a profile.
func ForRole(r schema.Role) Destination {
	switch r {
	case schema.RoleSystemAdmin:
		return Admin
	case schema.RoleContractor:
		return Contractor
	}
	return Manager
}

// Nested navigation paths.

func SignUpPath() string { return "/auth/signup" }

func ManagerCreateVenuePath() string { return "/manager/create-venue" }

func ManagerVenueJobsPath(venueID string) string {
	return "/manager/venue/" + url.PathEscape(venueID) + "/jobs"
}

func ManagerCreateJobPath(venueID string) string {
	return "/manager/venue/" + url.PathEscape(venueID) + "/create-job"
}

func ManagerInvitePath(venueID string) string {
	return "/manager/venue/" + url.PathEscape(venueID) + "/invite"
}

func ContractorJobPath(venueID, jobID string) string {
	return "/contractor/venue/" + url.PathEscape(venueID) + "/job/" + url.PathEscape(jobID)
}
