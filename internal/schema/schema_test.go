package schema

import "testing"

func TestInviteStatusTransitions(t *testing.T) {
	all := []InviteStatus{InviteSent, InviteAccepted, InviteDeclined, InviteExpired}
	allowed := map[[2]InviteStatus]bool{
		{InviteSent, InviteAccepted}: true,
		{InviteSent, InviteDeclined}: true,
		{InviteSent, InviteExpired}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]InviteStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
	if InviteSent.CanTransition("revoked") {
		t.Error("transition to an unknown status allowed")
	}
}

func TestEnumValidity(t *testing.T) {
	for _, r := range AllRoles() {
		if !r.Valid() {
			t.Errorf("role %q listed but invalid", r)
		}
	}
	for _, s := range AllJobStatuses() {
		if !s.Valid() {
			t.Errorf("job status %q listed but invalid", s)
		}
	}
	for _, p := range AllJobPriorities() {
		if !p.Valid() {
			t.Errorf("priority %q listed but invalid", p)
		}
	}

	invalid := []interface{ Valid() bool }{
		Role("auditor"), MemberStatus("banned"), InviteStatus("revoked"),
		JobStatus("paused"), JobPriority("urgent"), UpdateType("video"),
	}
	for _, v := range invalid {
		if v.Valid() {
			t.Errorf("%v reported valid", v)
		}
	}
}
