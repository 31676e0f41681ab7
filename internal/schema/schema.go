// Package schema defines the stored shapes of venuedesk documents and the
// enumerated states they carry.
package schema

import "time"

// Role is a user's application role, stored on the profile and on venue
// memberships.
type Role string

const (
	RoleSystemAdmin Role = "system_admin"
	RoleManager     Role = "manager"
	RoleContractor  Role = "contractor"
)

// DefaultRole is assigned to profiles created on first sign-in.
const DefaultRole = RoleManager

// AllRoles lists every known role.
func AllRoles() []Role {
	return []Role{RoleSystemAdmin, RoleManager, RoleContractor}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleManager, RoleContractor:
		return true
	}
	return false
}

// MemberStatus is the state of a venue membership.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberPending, MemberActive, MemberInactive:
		return true
	}
	return false
}

// InviteStatus is the state of a venue invite.
type InviteStatus string

const (
	InviteSent     InviteStatus = "sent"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

func (s InviteStatus) Valid() bool {
	switch s {
	case InviteSent, InviteAccepted, InviteDeclined, InviteExpired:
		return true
	}
	return false
}

// CanTransition reports whether an invite may move from one status to
// another. Transitions only leave the sent state.
func (s InviteStatus) CanTransition(to InviteStatus) bool {
	if s != InviteSent {
		return false
	}
	return to == InviteAccepted || to == InviteDeclined || to == InviteExpired
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobDraft      JobStatus = "draft"
	JobOpen       JobStatus = "open"
	JobAssigned   JobStatus = "assigned"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// AllJobStatuses lists job statuses in lifecycle order.
func AllJobStatuses() []JobStatus {
	return []JobStatus{JobDraft, JobOpen, JobAssigned, JobInProgress, JobCompleted, JobCancelled}
}

func (s JobStatus) Valid() bool {
	for _, v := range AllJobStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// JobPriority ranks jobs.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityMedium JobPriority = "medium"
	PriorityHigh   JobPriority = "high"
)

// AllJobPriorities lists priorities from lowest to highest.
func AllJobPriorities() []JobPriority {
	return []JobPriority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (p JobPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// UpdateType distinguishes entries in a job's update log.
type UpdateType string

const (
	UpdateComment UpdateType = "comment"
	UpdatePhoto   UpdateType = "photo"
)

func (t UpdateType) Valid() bool {
	return t == UpdateComment || t == UpdatePhoto
}

// User is the application profile stored at users/{uid}.
type User struct {
	UID         string     `json:"uid"`
	Email       *string    `json:"email"`
	DisplayName *string    `json:"displayName"`
	Role        Role       `json:"role"`
	IsDisabled  bool       `json:"isDisabled"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Venue is a managed location that owns members, invites and jobs.
type Venue struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// VenueMember is stored at venues/{venueId}/members/{userId}; the document id
// is the member's user id, so there is at most one record per pair.
type VenueMember struct {
	UserID    string       `json:"userId"`
	Role      Role         `json:"role"`
	Status    MemberStatus `json:"status"`
	CreatedAt *time.Time   `json:"createdAt,omitempty"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
}

// VenueInvite is an invitation to join a venue with a role.
type VenueInvite struct {
	ID        string       `json:"id,omitempty"`
	Role      Role         `json:"role"`
	Status    InviteStatus `json:"status"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt *time.Time   `json:"createdAt,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
	TokenHash string       `json:"tokenHash"`
	Email     string       `json:"email,omitempty"`
}

// Job is a unit of work inside a venue. BroadcastToPool and AssignedTo are
// independent: a job may be broadcast and assigned at the same time.
type Job struct {
	ID              string      `json:"id,omitempty"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Priority        JobPriority `json:"priority"`
	Status          JobStatus   `json:"status"`
	CreatedBy       string      `json:"createdBy"`
	BroadcastToPool bool        `json:"broadcastToPool"`
	AssignedTo      *string     `json:"assignedTo"`
	CreatedAt       *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
}

// JobUpdate is an append-only entry in a job's update log.
type JobUpdate struct {
	ID        string     `json:"id,omitempty"`
	Type      UpdateType `json:"type"`
	Message   string     `json:"message,omitempty"`
	PhotoURL  string     `json:"photoUrl,omitempty"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}
