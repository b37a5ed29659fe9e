package domain

import "testing"

func TestRegistrationPartStatusPredicates(t *testing.T) {
	cases := []struct {
		status   RegistrationPartStatus
		involved bool
		pays     bool
		present  bool
	}{
		{StatusNotApplied, false, false, false},
		{StatusApplied, true, true, false},
		{StatusParticipant, true, true, true},
		{StatusWaitlist, true, true, false},
		{StatusGuest, true, false, true},
		{StatusCancelled, false, false, false},
		{StatusRejected, false, false, false},
	}
	for _, c := range cases {
		if got := c.status.IsInvolved(); got != c.involved {
			t.Errorf("status %d IsInvolved = %v, want %v", c.status, got, c.involved)
		}
		if got := c.status.HasToPay(); got != c.pays {
			t.Errorf("status %d HasToPay = %v, want %v", c.status, got, c.pays)
		}
		if got := c.status.IsPresent(); got != c.present {
			t.Errorf("status %d IsPresent = %v, want %v", c.status, got, c.present)
		}
	}
}

func TestSchemaVersionCompatible(t *testing.T) {
	server := SchemaVersion{Major: 2, Minor: 3}
	cases := []struct {
		payload SchemaVersion
		want    bool
	}{
		{SchemaVersion{2, 3}, true},
		{SchemaVersion{2, 0}, true},
		{SchemaVersion{2, 4}, false},
		{SchemaVersion{1, 3}, false},
		{SchemaVersion{3, 0}, false},
	}
	for _, c := range cases {
		if got := c.payload.Compatible(server); got != c.want {
			t.Errorf("%+v compatible with %+v = %v, want %v", c.payload, server, got, c.want)
		}
	}
}
