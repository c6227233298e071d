package auth

import (
	"fmt"
	"strings"
)

// Role is a tenant membership role. Values are totally ordered: a higher
// role holds every permission of the roles below it.
type Role int

const (
	RoleNone Role = iota
	RoleClient
	RoleViewer
	RoleStaff
	RoleAdmin
	RoleOwner
)

var roleNames = [...]string{
	RoleNone:   "none",
	RoleClient: "client",
	RoleViewer: "viewer",
	RoleStaff:  "staff",
	RoleAdmin:  "admin",
	RoleOwner:  "owner",
}

// ParseRole converts a stored role name into a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == name && Role(r) != RoleNone {
			return Role(r), nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if r < RoleNone || int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r != RoleNone && r >= min
}
