package access

import (
	"testing"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/session"
)

func profileWith(role schema.Role) *schema.User {
	return &schema.User{UID: "u1", Role: role}
}

func TestRoute(t *testing.T) {
	user := &auth.User{ID: "u1"}

	tests := []struct {
		name  string
		state session.State
		want  Destination
	}{
		{"loading", session.State{Loading: true}, Waiting},
		{"loading with user", session.State{Loading: true, User: user, Profile: profileWith(schema.RoleSystemAdmin)}, Waiting},
		{"signed out", session.State{}, SignIn},
		{"signed out with stale admin profile", session.State{Profile: profileWith(schema.RoleSystemAdmin)}, SignIn},
		{"signed out with stale contractor profile", session.State{Profile: profileWith(schema.RoleContractor)}, SignIn},
		{"user without profile", session.State{User: user}, Waiting},
		{"system admin", session.State{User: user, Profile: profileWith(schema.RoleSystemAdmin)}, Admin},
		{"contractor", session.State{User: user, Profile: profileWith(schema.RoleContractor)}, Contractor},
		{"manager", session.State{User: user, Profile: profileWith(schema.RoleManager)}, Manager},
		{"unknown role", session.State{User: user, Profile: profileWith("auditor")}, Manager},
		{"empty role", session.State{User: user, Profile: profileWith("")}, Manager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.state); got != tt.want {
				t.Fatalf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	s := session.State{User: &auth.User{ID: "u1"}, Profile: profileWith(schema.RoleContractor)}
	first := Route(s)
	for i := 0; i < 10; i++ {
		if Route(s) != first {
			t.Fatal("same state routed differently")
		}
	}
}

func TestPaths(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SignIn.Path(), "/auth/login"},
		{Admin.Path(), "/admin"},
		{Manager.Path(), "/manager"},
		{Contractor.Path(), "/contractor"},
		{Waiting.Path(), ""},
		{SignUpPath(), "/auth/signup"},
		{ManagerCreateVenuePath(), "/manager/create-venue"},
		{ManagerVenueJobsPath("v1"), "/manager/venue/v1/jobs"},
		{ManagerCreateJobPath("v1"), "/manager/venue/v1/create-job"},
		{ManagerInvitePath("v1"), "/manager/venue/v1/invite"},
		{ContractorJobPath("v1", "j 1"), "/contractor/venue/v1/job/j%201"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDestinationText(t *testing.T) {
	for _, d := range []Destination{Waiting, SignIn, Admin, Manager, Contractor} {
		text, err := d.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Destination
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != d {
			t.Errorf("round trip of %s gave %s", d, back)
		}
	}

	var d Destination
	if err := d.UnmarshalText([]byte("lobby")); err == nil {
		t.Error("expected error for unknown destination")
	}
}
