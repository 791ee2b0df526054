package access

import "testing"

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name   string
		check  Capability
		caller Caller
		want   bool
	}{
		{"organizer manages", MasterOrOrganizer, Caller{Roles: []string{"Organizer"}}, true},
		{"member cannot manage", MasterOrOrganizer, Caller{Roles: []string{"Member"}}, false},
		{"admin manages", MasterOrOrganizer, Caller{Admin: true}, true},
		{"member sees leaderboards", MemberOrAbove, Caller{Roles: []string{"Guest", "Member"}}, true},
		{"master sees leaderboards", MemberOrAbove, Caller{Roles: []string{"Master"}}, true},
		{"guest cannot see leaderboards", MemberOrAbove, Caller{Roles: []string{"Guest"}}, false},
		{"no roles", MemberOrAbove, Caller{}, false},
		{"role names are case sensitive", MemberOrAbove, Caller{Roles: []string{"member"}}, false},
		{"everyone", Everyone, Caller{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.caller); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAny(t *testing.T) {
	guest := AnyRole("Guest")
	combined := Any(guest, MasterOrOrganizer)

	if !combined(Caller{Roles: []string{"Guest"}}) {
		t.Error("guest should pass the combined capability")
	}
	if combined(Caller{Roles: []string{"Member"}}) {
		t.Error("member should not pass the combined capability")
	}
	if Any()(Caller{Admin: true}) {
		t.Error("an empty Any passes nobody")
	}
}
