// Package access decides who may run which bot command. A Capability is
// checked against the caller's role names and administrator permission,
// so it can be evaluated without a live Discord session.
package access

import "slices"

// Role names the community uses for its ranks.
const (
	RoleMaster    = "Master"
	RoleOrganizer = "Organizer"
	RoleMember    = "Member"
)

// Caller is what a capability sees of the member running a command.
type Caller struct {
	Roles []string
	Admin bool
}

// Capability reports whether a caller may proceed.
type Capability func(Caller) bool

// Everyone lets any caller through.
func Everyone(Caller) bool { return true }

// AnyRole passes callers holding at least one of roles. Administrators
// always pass.
func AnyRole(roles ...string) Capability {
	return func(c Caller) bool {
		if c.Admin {
			return true
		}
		for _, r := range c.Roles {
			if slices.Contains(roles, r) {
				return true
			}
		}
		return false
	}
}

// Any passes when one of caps passes.
func Any(caps ...Capability) Capability {
	return func(c Caller) bool {
		for _, check := range caps {
			if check(c) {
				return true
			}
		}
		return false
	}
}

var (
	// MasterOrOrganizer guards the management commands.
	MasterOrOrganizer = AnyRole(RoleMaster, RoleOrganizer)
	// MemberOrAbove guards the leaderboards.
	MemberOrAbove = AnyRole(RoleMaster, RoleOrganizer, RoleMember)
)
