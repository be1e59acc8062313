package shared

import (
	"fmt"
	"strings"
)

// Role is the closed set of authorization tags an account can carry.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// ParseRole converts a stored or transmitted value into a Role. Unknown values are
// rejected rather than mapped to a default.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	}
	return "", fmt.Errorf("shared: unknown role %q", raw)
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (r Role) String() string {
	return string(r)
}
